// Package warehouse loads staged files into BigQuery tables and reads the
// schema of the destination table.
package warehouse

import (
	"fmt"
	"strings"
)

// TableRef names a BigQuery table. Project is optional and defaults to the
// client's project.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

// ParseTable accepts "dataset.table" or "project.dataset.table".
func ParseTable(s string) (TableRef, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	for _, p := range parts {
		if p == "" {
			return TableRef{}, fmt.Errorf("table %q: empty name component", s)
		}
	}
	switch len(parts) {
	case 2:
		return TableRef{Dataset: parts[0], Table: parts[1]}, nil
	case 3:
		return TableRef{Project: parts[0], Dataset: parts[1], Table: parts[2]}, nil
	}
	return TableRef{}, fmt.Errorf("table %q: want dataset.table or project.dataset.table", s)
}

func (t TableRef) String() string {
	if t.Project == "" {
		return t.Dataset + "." + t.Table
	}
	return t.Project + "." + t.Dataset + "." + t.Table
}
