// Package stdout prints the frame's schema and its first rows. It is a
// debugging sink; nothing it prints is meant to be parsed.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"

	"sluice/internal/frame"
	"sluice/internal/transform"
	"sluice/sink"
)

const DefaultRows = 20

type Config struct {
	Rows   int              // rows shown, 0 = DefaultRows
	Schema transform.Schema // column types for the schema listing
	Out    io.Writer        // nil = os.Stdout
}

type driver struct {
	cfg Config
}

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	if c.Rows <= 0 {
		c.Rows = DefaultRows
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	d.cfg = c
	return nil
}

func (d *driver) Write(_ context.Context, f *frame.Frame) error {
	if err := d.printSchema(f); err != nil {
		return err
	}
	return d.show(f)
}

func (d *driver) printSchema(f *frame.Frame) error {
	types := make(map[string]transform.Type, len(d.cfg.Schema))
	for _, fld := range d.cfg.Schema {
		types[fld.Name] = fld.Type
	}
	if _, err := fmt.Fprintln(d.cfg.Out, "root"); err != nil {
		return err
	}
	for _, c := range f.Columns() {
		t, ok := types[c]
		if !ok {
			t = transform.TypeString
		}
		if _, err := fmt.Fprintf(d.cfg.Out, " |-- %s: %s (nullable = true)\n", c, t); err != nil {
			return err
		}
	}
	return nil
}

func (d *driver) show(f *frame.Frame) error {
	tw := tablewriter.NewWriter(d.cfg.Out)
	tw.SetHeader(f.Columns())
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)

	n := min(f.Len(), d.cfg.Rows)
	for i := 0; i < n; i++ {
		row := f.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				cells[j] = "null"
				continue
			}
			cells[j] = transform.FormatValue(v)
		}
		tw.Append(cells)
	}
	tw.Render()

	if f.Len() > n {
		_, err := fmt.Fprintf(d.cfg.Out, "only showing top %d rows\n", n)
		return err
	}
	return nil
}

func (d *driver) Close() error { return nil }

func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
