// Package encode serializes a frame into the file formats the sinks write.
package encode

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/parquet-go/parquet-go"

	"sluice/internal/frame"
	"sluice/internal/transform"
)

type Format string

const (
	Parquet Format = "parquet"
	CSV     Format = "csv"
	JSON    Format = "json"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

// ParseFormat is case-insensitive.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Parquet, CSV, JSON:
		return f, nil
	}
	return "", fmt.Errorf("%w %q (want parquet, csv or json)", ErrUnsupportedFormat, s)
}

func (f Format) Extension() string {
	switch f {
	case Parquet:
		return "snappy.parquet"
	case JSON:
		return "json"
	}
	return string(f)
}

func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv"
	case JSON:
		return "application/x-ndjson"
	}
	return "application/octet-stream"
}

type Options struct {
	// Schema types the parquet columns. Columns it does not name are
	// written as strings.
	Schema       transform.Schema
	CSVHeader    bool
	CSVDelimiter rune
}

// Write serializes f to w in format.
func Write(w io.Writer, format Format, f *frame.Frame, opts Options) error {
	switch format {
	case Parquet:
		return writeParquet(w, f, opts.Schema)
	case CSV:
		return writeCSV(w, f, opts.CSVHeader, opts.CSVDelimiter)
	case JSON:
		return writeJSONLines(w, f)
	}
	return fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
}

func writeCSV(w io.Writer, f *frame.Frame, header bool, delim rune) error {
	cw := csv.NewWriter(w)
	if delim != 0 {
		cw.Comma = delim
	}
	if header {
		if err := cw.Write(f.Columns()); err != nil {
			return err
		}
	}
	rec := make([]string, len(f.Columns()))
	for i := 0; i < f.Len(); i++ {
		for j, v := range f.Row(i) {
			rec[j] = ""
			if !isNull(v) {
				rec[j] = transform.FormatValue(v)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// isNull reports cells every format writes as null. JSON has no encoding
// for NaN or infinities, so they are nulled everywhere alike.
func isNull(v any) bool {
	if x, ok := v.(float64); ok {
		return math.IsNaN(x) || math.IsInf(x, 0)
	}
	return v == nil
}

// writeJSONLines emits one object per row, keys in column order, with null
// fields left out.
func writeJSONLines(w io.Writer, f *frame.Frame) error {
	cols := f.Columns()
	keys := make([][]byte, len(cols))
	for j, c := range cols {
		k, err := json.Marshal(c)
		if err != nil {
			return err
		}
		keys[j] = k
	}

	var buf []byte
	for i := 0; i < f.Len(); i++ {
		buf = append(buf[:0], '{')
		first := true
		for j, v := range f.Row(i) {
			if isNull(v) {
				continue
			}
			val, err := json.Marshal(jsonValue(v))
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", i, cols[j], err)
			}
			if !first {
				buf = append(buf, ',')
			}
			first = false
			buf = append(buf, keys[j]...)
			buf = append(buf, ':')
			buf = append(buf, val...)
		}
		buf = append(buf, '}', '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func jsonValue(v any) any {
	if d, ok := v.(civil.Date); ok {
		return d.String()
	}
	return v
}

var epoch = civil.Date{Year: 1970, Month: time.January, Day: 1}

func parquetNode(t transform.Type) parquet.Node {
	switch t {
	case transform.TypeInteger:
		return parquet.Optional(parquet.Int(64))
	case transform.TypeDouble:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	case transform.TypeDate:
		return parquet.Optional(parquet.Date())
	}
	return parquet.Optional(parquet.String())
}

// ParquetSchema builds the file schema for f's columns.
func ParquetSchema(f *frame.Frame, schema transform.Schema) (*parquet.Schema, map[string]transform.Type) {
	types := make(map[string]transform.Type, len(schema))
	for _, fld := range schema {
		if t, err := transform.ParseType(string(fld.Type)); err == nil {
			types[fld.Name] = t
		}
	}
	group := parquet.Group{}
	colTypes := make(map[string]transform.Type, len(f.Columns()))
	for _, c := range f.Columns() {
		t, ok := types[c]
		if !ok {
			t = transform.TypeString
		}
		colTypes[c] = t
		group[c] = parquetNode(t)
	}
	return parquet.NewSchema("sluice", group), colTypes
}

func writeParquet(w io.Writer, f *frame.Frame, schema transform.Schema) error {
	ps, types := ParquetSchema(f, schema)
	pw := parquet.NewGenericWriter[map[string]any](w, ps, parquet.Compression(&parquet.Snappy))

	cols := f.Columns()
	batch := make([]map[string]any, 0, 1024)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pw.Write(batch); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
		batch = batch[:0]
		return nil
	}
	for i := 0; i < f.Len(); i++ {
		row := make(map[string]any, len(cols))
		for j, v := range f.Row(i) {
			if isNull(v) {
				continue
			}
			pv, err := parquetValue(v, types[cols[j]])
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", i, cols[j], err)
			}
			row[cols[j]] = pv
		}
		batch = append(batch, row)
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return pw.Close()
}

// parquetValue converts a cell to the physical value of its column: dates
// are days since the Unix epoch.
func parquetValue(v any, t transform.Type) (any, error) {
	switch t {
	case transform.TypeDate:
		d, ok := v.(civil.Date)
		if !ok {
			return nil, fmt.Errorf("want date, got %T", v)
		}
		return int32(d.DaysSince(epoch)), nil
	case transform.TypeInteger:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("want integer, got %T", v)
		}
		return n, nil
	case transform.TypeDouble:
		x, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("want double, got %T", v)
		}
		return x, nil
	}
	return transform.FormatValue(v), nil
}
