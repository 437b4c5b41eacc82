package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"sluice/internal/frame"
)

var DefaultDateLayouts = []string{"2006-01-02", "02/01/2006"}

type CoerceOptions struct {
	// DateLayouts are tried in order for string to date casts.
	DateLayouts []string
	// DecimalComma reads "5,49" as 5.49 in double casts.
	DecimalComma bool
}

func (o CoerceOptions) layouts() []string {
	if len(o.DateLayouts) == 0 {
		return DefaultDateLayouts
	}
	return o.DateLayouts
}

// CoerceStats counts, per column, values that were present before the cast
// and null after it.
type CoerceStats map[string]int

func (s CoerceStats) Total() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

// Coerce returns a frame holding exactly the schema columns, in order, with
// every value cast to its declared type. Values that cannot be cast become
// null; columns absent from f are all-null.
func Coerce(f *frame.Frame, schema Schema, opts CoerceOptions) (*frame.Frame, CoerceStats) {
	stats := CoerceStats{}
	out := f.Select(schema.Names()).Map(func(col int, v any) any {
		if v == nil {
			return nil
		}
		fld := schema[col]
		c, ok := Cast(v, fld.Type, opts)
		if !ok {
			stats[fld.Name]++
			return nil
		}
		return c
	})
	return out, stats
}

// Cast converts v to t. ok is false when the value cannot be represented,
// including when v is nil.
func Cast(v any, t Type, opts CoerceOptions) (out any, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = nil, false
		}
	}()
	if v == nil {
		return nil, false
	}
	switch t {
	case TypeString:
		return FormatValue(v), true
	case TypeInteger:
		n, ok := castInt64(v)
		if !ok {
			return nil, false
		}
		return n, true
	case TypeDouble:
		return castDouble(v, opts.DecimalComma)
	case TypeDate:
		return castDate(v, opts.layouts())
	}
	return nil, false
}

// FormatValue renders a cell the way the string cast does.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case civil.Date:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// castDouble accepts plain decimal literals only. Non-finite values and
// Go-specific forms (hex, underscores, "Inf", "NaN") are null.
func castDouble(v any, decimalComma bool) (any, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int64:
		n = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if decimalComma && strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		if !isDecimalLiteral(s) {
			return nil, false
		}
		var err error
		if n, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, false
		}
	default:
		return nil, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, false
	}
	return n, true
}

// isDecimalLiteral reports whether s is [+-]digits[.digits][e[+-]digits]
// with at least one mantissa digit.
func isDecimalLiteral(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(s) && isDigit(s[i]); i++ {
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && isDigit(s[i]); i++ {
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		start := i
		for ; i < len(s) && isDigit(s[i]); i++ {
		}
		if i == start {
			return false
		}
	}
	return i == len(s)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func castDate(v any, layouts []string) (any, bool) {
	switch x := v.(type) {
	case civil.Date:
		return x, true
	case time.Time:
		return civil.DateOf(x), true
	case string:
		s := strings.TrimSpace(x)
		for _, l := range layouts {
			if t, err := time.Parse(l, s); err == nil {
				return civil.DateOf(t), true
			}
		}
	}
	return nil, false
}
