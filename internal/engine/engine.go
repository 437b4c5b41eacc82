package engine

import (
	"context"
	"io"
	"sync"

	"sluice/internal/config"
	"sluice/internal/gcpclient"
	"sluice/internal/jobsubmit"
	"sluice/internal/logging"
	"sluice/internal/objstore"
	"sluice/internal/pipeline"
	"sluice/internal/spec"
	"sluice/internal/telemetry"
	"sluice/internal/warehouse"
)

type Engine struct {
	cfg   config.Config
	gcp   *gcpclient.Manager
	store objstore.Store
}

// Transform compiles the pipeline for this run and executes it. Errors that
// stop the pipeline from being built are returned; everything after that is
// in the report.
func (e *Engine) Transform(ctx context.Context, file spec.File, args pipeline.Args) (*pipeline.Report, error) {
	deps := pipeline.Deps{
		Store:         e.store,
		StagingBucket: e.cfg.Warehouse.StagingBucket,
	}
	if needsWarehouse(file) {
		if err := e.cfg.ValidateWarehouse(); err != nil {
			return nil, err
		}
		bq, err := e.gcp.BigQuery(ctx)
		if err != nil {
			return nil, err
		}
		deps.Warehouse = warehouse.NewBigQueryClient(bq)
	}

	r, err := pipeline.Compile(file, args, deps)
	if err != nil {
		return nil, err
	}
	logging.L().Info("pipeline compiled", "run", r.RunID(), "input", args.Input, "output", args.Output, "table", args.Table)
	return r.Run(ctx), nil
}

func needsWarehouse(file spec.File) bool {
	for _, s := range file.Stages {
		if s.Kind == "reference_schema" {
			return true
		}
	}
	for _, s := range file.Sinks {
		if s == "warehouse" {
			return true
		}
	}
	return false
}

// Submit runs the configured Dataproc job and prints its driver output.
func (e *Engine) Submit(ctx context.Context, out io.Writer) (string, error) {
	if err := e.cfg.ValidateSubmit(); err != nil {
		return "", err
	}
	jc, err := e.gcp.JobController(ctx)
	if err != nil {
		return "", err
	}
	s := jobsubmit.NewSubmitter(jobsubmit.NewDataprocController(jc), e.store, e.cfg)
	if out != nil {
		s.WithOutput(out)
	}
	return s.Run(ctx)
}

// Close pushes metrics when a Pushgateway is configured and releases the
// cloud clients.
func (e *Engine) Close(ctx context.Context, job string) error {
	if url := e.cfg.Metrics.PushURL; url != "" {
		if err := telemetry.Push(ctx, url, job); err != nil {
			logging.L().Warn("metrics push failed", "err", err)
		}
	}
	return e.gcp.Close()
}

// lazyGCS creates the storage client on first use.
type lazyGCS struct {
	gcp  *gcpclient.Manager
	once sync.Once
	s    *objstore.GCSStore
	err  error
}

func (l *lazyGCS) get(ctx context.Context) (*objstore.GCSStore, error) {
	l.once.Do(func() {
		c, err := l.gcp.Storage(ctx)
		if err != nil {
			l.err = err
			return
		}
		l.s = objstore.NewGCSStore(c)
	})
	return l.s, l.err
}

func (l *lazyGCS) Open(ctx context.Context, u objstore.URI) (io.ReadCloser, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, u)
}

func (l *lazyGCS) Create(ctx context.Context, u objstore.URI, contentType string) (io.WriteCloser, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, u, contentType)
}

func (l *lazyGCS) List(ctx context.Context, u objstore.URI) ([]objstore.URI, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, u)
}

func (l *lazyGCS) Delete(ctx context.Context, u objstore.URI) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.Delete(ctx, u)
}
