// Package delimited reads separator-delimited text files (CSV and friends)
// from an object store into a frame. Every cell stays a string; empty fields
// are null.
package delimited

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"sluice/internal/frame"
	"sluice/internal/logging"
	"sluice/internal/objstore"
	"sluice/internal/telemetry"
	"sluice/source"
)

const bom = "\ufeff"

type driver struct {
	cfg source.Config
}

func (d *driver) Configure(c source.Config) error {
	if c.Store == nil {
		return errors.New("delimited: no object store")
	}
	if c.Delimiter == 0 {
		c.Delimiter = ';'
	}
	if c.Delimiter == '"' || c.Delimiter == '\r' || c.Delimiter == '\n' {
		return fmt.Errorf("delimited: invalid delimiter %q", c.Delimiter)
	}
	d.cfg = c
	return nil
}

// Read loads every object named by the input URI. With a header, each
// object's first line is its header and the first object's header names
// the columns; later objects are matched to it by position.
func (d *driver) Read(ctx context.Context) (*frame.Frame, error) {
	objects, err := objstore.Resolve(ctx, d.cfg.Store, d.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("resolve input %s: %w", d.cfg.Input, err)
	}

	var f *frame.Frame
	for _, u := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err = d.readObject(ctx, u, f)
		if err != nil {
			return nil, err
		}
	}
	if f == nil {
		// only empty objects, nothing to name the columns after
		f = frame.New(nil)
	}
	return f, nil
}

func (d *driver) readObject(ctx context.Context, u objstore.URI, f *frame.Frame) (*frame.Frame, error) {
	rc, err := d.cfg.Store.Open(ctx, u)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	r := csv.NewReader(rc)
	r.Comma = d.cfg.Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	src := u.String()
	log := logging.With("object", src)
	rows := 0

	first := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src, err)
		}
		if first {
			first = false
			if len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], bom)
			}
			if d.cfg.Header {
				if f == nil {
					f = frame.New(slices.Clone(rec))
				} else if !slices.Equal(f.Columns(), rec) {
					log.Warn("header differs from first object; columns matched by position",
						"want", f.Columns(), "got", rec)
				}
				continue
			}
			if f == nil {
				f = frame.New(positionalNames(len(rec)))
			}
		}
		f.Append(cells(rec), src)
		rows++
	}
	telemetry.RowsRead.WithLabelValues(u.Scheme).Add(float64(rows))
	log.Info("read object", "rows", rows)
	return f, nil
}

// positionalNames follows the engine's naming for headerless files.
func positionalNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("_c%d", i)
	}
	return out
}

func cells(rec []string) []any {
	out := make([]any, len(rec))
	for i, s := range rec {
		if s == "" {
			continue
		}
		out[i] = s
	}
	return out
}

func (d *driver) Close() error { return nil }

func init() {
	source.Register("delimited", func() source.Adapter { return &driver{} })
}
