package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"sluice/internal/frame"
)

const (
	ColumnYear          = "year"
	ColumnSemestre      = "semestre"
	ColumnInputFileName = "input_file_name"
)

// Fixed windows into the date column, 1-based. The layout is assumed to be
// dd/mm/yyyy; nothing checks it.
const (
	monthPos, monthLen = 4, 2
	yearPos, yearLen   = 7, 4
)

// substring mirrors the engine's 1-based substring: a window running past the
// end is shortened, one starting past the end is empty.
func substring(s string, pos, length int) string {
	rs := []rune(s)
	start := pos - 1
	if start < 0 {
		start = 0
	}
	if start >= len(rs) || length <= 0 {
		return ""
	}
	end := start + length
	if end > len(rs) {
		end = len(rs)
	}
	return string(rs[start:end])
}

// castInt64 applies the engine's string-to-integer cast: surrounding spaces
// are ignored and a fractional part of plain digits is truncated ("12.0" is
// 12, "-1.5" is -1). Anything else is null.
func castInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int64:
		return x, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int64(x), true
	case string:
		s := strings.TrimSpace(x)
		if whole, frac, ok := strings.Cut(s, "."); ok {
			for i := 0; i < len(frac); i++ {
				if !isDigit(frac[i]) {
					return 0, false
				}
			}
			s = whole
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return castInt64(fmt.Sprint(x))
	}
}

func window(v any, pos, length int) any {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return substring(s, pos, length)
}

func requireColumn(f *frame.Frame, column string) (int, error) {
	c, ok := f.Index(column)
	if !ok {
		return 0, fmt.Errorf("column %q not found in %v", column, f.Columns())
	}
	return c, nil
}

// AddYear adds year = int(substring(column, 7, 4)), null when not numeric.
func AddYear(f *frame.Frame, column string) error {
	c, err := requireColumn(f, column)
	if err != nil {
		return fmt.Errorf("add_year: %w", err)
	}
	f.WithColumn(ColumnYear, func(_ int, row []any) any {
		if y, ok := castInt64(window(row[c], yearPos, yearLen)); ok {
			return y
		}
		return nil
	})
	return nil
}

// Semestre maps a date-like value to its half of the year. The month window
// is not range checked; when it cannot be parsed the result is 2.
func Semestre(v any) int64 {
	m, ok := castInt64(window(v, monthPos, monthLen))
	if ok && m <= 6 {
		return 1
	}
	return 2
}

// AddSemestre adds semestre (1 or 2) from the month window of column.
func AddSemestre(f *frame.Frame, column string) error {
	c, err := requireColumn(f, column)
	if err != nil {
		return fmt.Errorf("add_semestre: %w", err)
	}
	f.WithColumn(ColumnSemestre, func(_ int, row []any) any {
		return Semestre(row[c])
	})
	return nil
}

// AddInputFileName adds input_file_name from each row's provenance.
func AddInputFileName(f *frame.Frame) {
	f.WithColumn(ColumnInputFileName, func(i int, _ []any) any {
		return f.Source(i)
	})
}
