// Package objectstore writes a frame as one part file under an object-store
// prefix, the way the engine appends to a directory: every run adds a
// uniquely named part and a _SUCCESS marker, nothing is overwritten.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"sluice/internal/encode"
	"sluice/internal/frame"
	"sluice/internal/logging"
	"sluice/internal/objstore"
	"sluice/internal/transform"
	"sluice/sink"
)

type Config struct {
	Output objstore.URI
	Store  objstore.Store
	Format string
	RunID  string
	Schema transform.Schema

	CSVHeader    bool
	CSVDelimiter rune
}

const SuccessMarker = "_SUCCESS"

// ErrNoSuccessMarker is returned when the part was committed but the marker
// could not be written. Readers that wait for the marker will not see the
// run.
var ErrNoSuccessMarker = errors.New("success marker not written")

type driver struct {
	cfg    Config
	format encode.Format
}

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("objectstore-sink: expected Config, got %T", raw)
	}
	if c.Store == nil {
		return errors.New("objectstore-sink: no store")
	}
	if c.RunID == "" {
		return errors.New("objectstore-sink: no run id")
	}
	f, err := encode.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	d.cfg, d.format = c, f
	return nil
}

// PartName is the object name of the single part a run writes.
func PartName(runID string, f encode.Format) string {
	return fmt.Sprintf("part-00000-%s-c000.%s", runID, f.Extension())
}

func (d *driver) Write(ctx context.Context, f *frame.Frame) error {
	dir := d.cfg.Output.Dir()
	part := dir.Join(PartName(d.cfg.RunID, d.format))

	w, err := d.cfg.Store.Create(ctx, part, d.format.ContentType())
	if err != nil {
		return fmt.Errorf("create %s: %w", part, err)
	}
	if err := encode.Write(w, d.format, f, encode.Options{
		Schema:       d.cfg.Schema,
		CSVHeader:    d.cfg.CSVHeader,
		CSVDelimiter: d.cfg.CSVDelimiter,
	}); err != nil {
		objstore.Abort(w)
		return fmt.Errorf("encode %s: %w", part, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit %s: %w", part, err)
	}

	if err := d.touchSuccess(ctx, dir); err != nil {
		logging.L().Warn("part written without success marker", "part", part.String(), "err", err)
		return fmt.Errorf("part %s written: %w: %w", part, ErrNoSuccessMarker, err)
	}
	logging.L().Info("object store write done", "part", part.String(), "rows", f.Len(), "format", string(d.format))
	return nil
}

// touchSuccess writes the empty marker. A marker left by an earlier run
// already says the same thing.
func (d *driver) touchSuccess(ctx context.Context, dir objstore.URI) error {
	marker := dir.Join(SuccessMarker)
	w, err := d.cfg.Store.Create(ctx, marker, "application/octet-stream")
	if err != nil {
		return fmt.Errorf("create %s: %w", marker, err)
	}
	if err := w.Close(); err != nil && !errors.Is(err, objstore.ErrExists) {
		return fmt.Errorf("commit %s: %w", marker, err)
	}
	return nil
}

func (d *driver) Close() error { return nil }

func init() {
	sink.Register("objectstore", func() sink.Adapter { return &driver{} })
}
