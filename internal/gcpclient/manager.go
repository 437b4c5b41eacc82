// Package gcpclient creates and caches the Google Cloud clients a run needs.
// Every client is built from the same credentials option; the process
// environment is never touched.
package gcpclient

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/bigquery"
	dataproc "cloud.google.com/go/dataproc/v2/apiv1"
	"cloud.google.com/go/storage"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

type Options struct {
	ProjectID string
	Region    string
	// CredentialsFile is a service account key. Empty uses Application
	// Default Credentials.
	CredentialsFile string
	// BigQueryLocation pins load jobs to a location; empty lets the service
	// pick it from the dataset.
	BigQueryLocation string
}

// Manager lazily builds clients and hands out the same instance on every
// call. Close releases all of them.
type Manager struct {
	sync.RWMutex
	opts   Options
	tracer trace.Tracer

	storage  *storage.Client
	bigquery *bigquery.Client
	jobs     *dataproc.JobControllerClient
}

func NewManager(opts Options) *Manager {
	return &Manager{
		opts:   opts,
		tracer: otel.Tracer("sluice/gcpclient"),
	}
}

// startSpan traces the construction of one client. end records err.
func (m *Manager) startSpan(ctx context.Context, client string) (context.Context, func(error)) {
	ctx, span := m.tracer.Start(ctx, "gcpclient.New",
		trace.WithAttributes(
			attribute.String("gcp.client", client),
			attribute.String("gcp.project_id", m.opts.ProjectID),
		))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (m *Manager) clientOptions(extra ...option.ClientOption) []option.ClientOption {
	var out []option.ClientOption
	if m.opts.CredentialsFile != "" {
		out = append(out, option.WithCredentialsFile(m.opts.CredentialsFile))
	}
	return append(out, extra...)
}

// DataprocEndpoint is the regional Dataproc API endpoint.
func DataprocEndpoint(region string) string {
	return fmt.Sprintf("%s-dataproc.googleapis.com:443", region)
}

func (m *Manager) Storage(ctx context.Context) (*storage.Client, error) {
	m.RLock()
	c := m.storage
	m.RUnlock()
	if c != nil {
		return c, nil
	}

	m.Lock()
	defer m.Unlock()
	if m.storage != nil {
		return m.storage, nil
	}
	ctx, end := m.startSpan(ctx, "storage")
	c, err := storage.NewClient(ctx, m.clientOptions()...)
	end(err)
	if err != nil {
		return nil, fmt.Errorf("creating GCP storage client: %w", err)
	}
	m.storage = c
	return c, nil
}

func (m *Manager) BigQuery(ctx context.Context) (*bigquery.Client, error) {
	m.RLock()
	c := m.bigquery
	m.RUnlock()
	if c != nil {
		return c, nil
	}

	m.Lock()
	defer m.Unlock()
	if m.bigquery != nil {
		return m.bigquery, nil
	}
	if m.opts.ProjectID == "" {
		return nil, fmt.Errorf("creating BigQuery client: no project id configured")
	}
	ctx, end := m.startSpan(ctx, "bigquery")
	c, err := bigquery.NewClient(ctx, m.opts.ProjectID, m.clientOptions()...)
	end(err)
	if err != nil {
		return nil, fmt.Errorf("creating BigQuery client: %w", err)
	}
	if m.opts.BigQueryLocation != "" {
		c.Location = m.opts.BigQueryLocation
	}
	m.bigquery = c
	return c, nil
}

// JobController returns a Dataproc job client bound to the regional
// endpoint.
func (m *Manager) JobController(ctx context.Context) (*dataproc.JobControllerClient, error) {
	m.RLock()
	c := m.jobs
	m.RUnlock()
	if c != nil {
		return c, nil
	}

	m.Lock()
	defer m.Unlock()
	if m.jobs != nil {
		return m.jobs, nil
	}
	if m.opts.Region == "" {
		return nil, fmt.Errorf("creating Dataproc client: no region configured")
	}
	ctx, end := m.startSpan(ctx, "dataproc")
	c, err := dataproc.NewJobControllerClient(ctx,
		m.clientOptions(option.WithEndpoint(DataprocEndpoint(m.opts.Region)))...)
	end(err)
	if err != nil {
		return nil, fmt.Errorf("creating Dataproc client: %w", err)
	}
	m.jobs = c
	return c, nil
}

func (m *Manager) Close() error {
	m.Lock()
	defer m.Unlock()

	var errs *multierror.Error
	if m.storage != nil {
		errs = multierror.Append(errs, m.storage.Close())
		m.storage = nil
	}
	if m.bigquery != nil {
		errs = multierror.Append(errs, m.bigquery.Close())
		m.bigquery = nil
	}
	if m.jobs != nil {
		errs = multierror.Append(errs, m.jobs.Close())
		m.jobs = nil
	}
	return errs.ErrorOrNil()
}
