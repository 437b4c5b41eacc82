package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GCSStore implements Store on Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
	tracer trace.Tracer
}

func NewGCSStore(client *storage.Client) *GCSStore {
	return &GCSStore{client: client, tracer: otel.Tracer("sluice/objstore")}
}

func (s *GCSStore) span(ctx context.Context, op string, u URI) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "objstore.gcs"+op, trace.WithAttributes(
		attribute.String("bucket", u.Bucket),
		attribute.String("key", u.Key),
	))
}

func (s *GCSStore) Open(ctx context.Context, u URI) (io.ReadCloser, error) {
	ctx, span := s.span(ctx, "Open", u)
	defer span.End()

	r, err := s.client.Bucket(u.Bucket).Object(u.Key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("open %s: %w", u, err)
	}
	return r, nil
}

func (s *GCSStore) Create(ctx context.Context, u URI, contentType string) (io.WriteCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	obj := s.client.Bucket(u.Bucket).Object(u.Key).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"writer": "sluice"}
	return &gcsWriter{Writer: w, uri: u, cancel: cancel}, nil
}

type gcsWriter struct {
	*storage.Writer
	uri    URI
	cancel context.CancelFunc
}

// Abort cancels the upload; the object is never created.
func (w *gcsWriter) Abort() error {
	w.cancel()
	_ = w.Writer.Close()
	return nil
}

func (w *gcsWriter) Close() error {
	err := w.Writer.Close()
	w.cancel()
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("%w: %s", ErrExists, w.uri)
	}
	return fmt.Errorf("upload %s: %w", w.uri, err)
}

func (s *GCSStore) List(ctx context.Context, u URI) ([]URI, error) {
	ctx, span := s.span(ctx, "List", u)
	defer span.End()

	it := s.client.Bucket(u.Bucket).Objects(ctx, &storage.Query{Prefix: u.Key})
	var out []URI
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("list %s: %w", u, err)
		}
		out = append(out, URI{Scheme: u.Scheme, Bucket: u.Bucket, Key: attrs.Name})
	}
	span.SetAttributes(attribute.Int("object_count", len(out)))
	return out, nil
}

// Delete treats a missing object as already deleted.
func (s *GCSStore) Delete(ctx context.Context, u URI) error {
	ctx, span := s.span(ctx, "Delete", u)
	defer span.End()

	if err := s.client.Bucket(u.Bucket).Object(u.Key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("delete %s: %w", u, err)
	}
	return nil
}
