package warehouse

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sluice/internal/logging"
	"sluice/internal/transform"
)

// Client is what the pipeline needs from the warehouse.
type Client interface {
	// LoadParquet replaces the contents of table with the parquet object at
	// sourceURI (gs://...). The table must already exist.
	LoadParquet(ctx context.Context, sourceURI string, table TableRef) error
	// TableSchema returns the table's top-level columns in declared order.
	TableSchema(ctx context.Context, table TableRef) (transform.Schema, error)
}

type BigQueryClient struct {
	client *bigquery.Client
	tracer trace.Tracer
}

func NewBigQueryClient(c *bigquery.Client) *BigQueryClient {
	return &BigQueryClient{client: c, tracer: otel.Tracer("sluice/warehouse")}
}

func (c *BigQueryClient) table(t TableRef) *bigquery.Table {
	if t.Project != "" {
		return c.client.DatasetInProject(t.Project, t.Dataset).Table(t.Table)
	}
	return c.client.Dataset(t.Dataset).Table(t.Table)
}

func (c *BigQueryClient) LoadParquet(ctx context.Context, sourceURI string, t TableRef) error {
	ctx, span := c.tracer.Start(ctx, "warehouse.LoadParquet", trace.WithAttributes(
		attribute.String("source", sourceURI),
		attribute.String("table", t.String()),
	))
	defer span.End()

	ref := bigquery.NewGCSReference(sourceURI)
	ref.SourceFormat = bigquery.Parquet

	loader := c.table(t).LoaderFrom(ref)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateNever

	job, err := loader.Run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load job submit failed")
		return fmt.Errorf("start load into %s: %w", t, err)
	}
	logging.L().Info("warehouse load started", "job", job.ID(), "table", t.String())

	status, err := job.Wait(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load job wait failed")
		return fmt.Errorf("wait for load job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load job failed")
		return fmt.Errorf("load job %s into %s: %w", job.ID(), t, err)
	}
	if status.Statistics != nil {
		if st, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
			span.SetAttributes(attribute.Int64("rows", st.OutputRows))
			logging.L().Info("warehouse load done", "job", job.ID(), "rows", st.OutputRows)
		}
	}
	return nil
}

func (c *BigQueryClient) TableSchema(ctx context.Context, t TableRef) (transform.Schema, error) {
	ctx, span := c.tracer.Start(ctx, "warehouse.TableSchema", trace.WithAttributes(
		attribute.String("table", t.String()),
	))
	defer span.End()

	md, err := c.table(t).Metadata(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "metadata failed")
		return nil, fmt.Errorf("read metadata of %s: %w", t, err)
	}
	return fromBigQuery(md.Schema), nil
}

func fromBigQuery(s bigquery.Schema) transform.Schema {
	out := make(transform.Schema, 0, len(s))
	for _, f := range s {
		out = append(out, transform.Field{Name: f.Name, Type: columnType(f.Type)})
	}
	return out
}

// columnType maps BigQuery types onto the coercion types. Types with no
// counterpart keep their lowercased BigQuery name so they show up as
// mismatches.
func columnType(t bigquery.FieldType) transform.Type {
	switch t {
	case bigquery.StringFieldType:
		return transform.TypeString
	case bigquery.IntegerFieldType:
		return transform.TypeInteger
	case bigquery.FloatFieldType:
		return transform.TypeDouble
	case bigquery.DateFieldType:
		return transform.TypeDate
	}
	return transform.Type(strings.ToLower(string(t)))
}
