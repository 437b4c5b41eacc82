// Package frame is the in-memory columnar table the pipeline stages operate
// on. A Frame holds every row of one run; cells are untyped (nil is null)
// until a coercion stage assigns them Go types.
package frame

import "fmt"

type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]any
	sources []string
}

// New returns an empty frame with the given column order. Duplicate names
// keep the index of their last occurrence.
func New(columns []string) *Frame {
	f := &Frame{columns: append([]string(nil), columns...)}
	f.reindex()
	return f
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.columns))
	for i, c := range f.columns {
		f.index[c] = i
	}
}

// Append adds a row. Short rows are padded with nulls and long rows are cut
// to the column count. source records where the row was read from.
func (f *Frame) Append(row []any, source string) {
	r := make([]any, len(f.columns))
	copy(r, row)
	f.rows = append(f.rows, r)
	f.sources = append(f.sources, source)
}

func (f *Frame) Columns() []string { return append([]string(nil), f.columns...) }
func (f *Frame) Len() int          { return len(f.rows) }

func (f *Frame) Row(i int) []any     { return f.rows[i] }
func (f *Frame) Source(i int) string { return f.sources[i] }

func (f *Frame) Index(name string) (int, bool) {
	i, ok := f.index[name]
	return i, ok
}

// Value returns the cell at row i of the named column, or nil when the
// column does not exist.
func (f *Frame) Value(i int, name string) any {
	c, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.rows[i][c]
}

// RenameColumns replaces every column name with fn(name).
func (f *Frame) RenameColumns(fn func(string) string) {
	for i, c := range f.columns {
		f.columns[i] = fn(c)
	}
	f.reindex()
}

// WithColumn sets name to fn(i, row) for every row, replacing the column
// when it already exists and appending it otherwise.
func (f *Frame) WithColumn(name string, fn func(i int, row []any) any) {
	c, ok := f.index[name]
	if !ok {
		f.columns = append(f.columns, name)
		c = len(f.columns) - 1
		f.index[name] = c
		for i := range f.rows {
			f.rows[i] = append(f.rows[i], nil)
		}
	}
	for i, row := range f.rows {
		row[c] = fn(i, row)
	}
}

// Select projects the frame onto names, in that order. Columns missing from
// f are all-null in the result. Provenance is carried over.
func (f *Frame) Select(names []string) *Frame {
	out := New(names)
	src := make([]int, len(names))
	for j, n := range names {
		if c, ok := f.index[n]; ok {
			src[j] = c
		} else {
			src[j] = -1
		}
	}
	out.rows = make([][]any, len(f.rows))
	for i, row := range f.rows {
		r := make([]any, len(names))
		for j, c := range src {
			if c >= 0 {
				r[j] = row[c]
			}
		}
		out.rows[i] = r
	}
	out.sources = append([]string(nil), f.sources...)
	return out
}

// Map returns a new frame with the same shape where every cell has been
// passed through fn(column, value).
func (f *Frame) Map(fn func(col int, v any) any) *Frame {
	out := New(f.columns)
	out.rows = make([][]any, len(f.rows))
	for i, row := range f.rows {
		r := make([]any, len(row))
		for j, v := range row {
			r[j] = fn(j, v)
		}
		out.rows[i] = r
	}
	out.sources = append([]string(nil), f.sources...)
	return out
}

func (f *Frame) String() string {
	return fmt.Sprintf("frame(%d columns, %d rows)", len(f.columns), len(f.rows))
}
