package transform

import (
	"fmt"
	"strings"

	"sluice/internal/frame"
)

// MaxColumnNameLen is the length, in characters, normalized names are cut to.
const MaxColumnNameLen = 300

type replacement struct{ old, new string }

// columnNameRules run in order; " - " has to go before " " and "-".
var columnNameRules = []replacement{
	{" - ", "_"},
	{" ", "_"},
	{"-", "_"},
	{".", "_"},
	{"#", "num"},
	{"@", "at"},
	{"$", "s"},
	{"%", "percent"},
	{"/", "_"},
	{"[", "_"},
	{"]", "_"},
	{"(", "_"},
	{")", "_"},
	{"{", "_"},
	{"}", "_"},
}

// NormalizeColumnName turns a raw header into a warehouse-safe identifier.
func NormalizeColumnName(raw string) string {
	s := strings.ToLower(raw)
	for _, r := range columnNameRules {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	if rs := []rune(s); len(rs) > MaxColumnNameLen {
		s = string(rs[:MaxColumnNameLen])
	}
	return s
}

// DuplicateColumnError reports two headers that normalize to the same name.
type DuplicateColumnError struct {
	Name     string
	First    string
	Second   string
	Position int
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("columns %q and %q both normalize to %q (position %d)", e.First, e.Second, e.Name, e.Position)
}

// NormalizeColumns renames every column of f in place. It refuses to produce
// duplicate names and leaves f untouched when it does.
func NormalizeColumns(f *frame.Frame) error {
	cols := f.Columns()
	seen := make(map[string]string, len(cols))
	for i, c := range cols {
		n := NormalizeColumnName(c)
		if prev, dup := seen[n]; dup {
			return &DuplicateColumnError{Name: n, First: prev, Second: c, Position: i}
		}
		seen[n] = c
	}
	f.RenameColumns(NormalizeColumnName)
	return nil
}
