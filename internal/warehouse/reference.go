package warehouse

import (
	"context"
	"fmt"

	"sluice/internal/frame"
	"sluice/internal/logging"
	"sluice/internal/transform"
)

type MismatchKind string

const (
	MissingInTable  MismatchKind = "missing_in_table"
	MissingInTarget MismatchKind = "missing_in_target"
	TypeDiffers     MismatchKind = "type_differs"
)

type Mismatch struct {
	Column string
	Kind   MismatchKind
	Target transform.Type // empty for MissingInTarget
	Table  transform.Type // empty for MissingInTable
}

func (m Mismatch) String() string {
	switch m.Kind {
	case MissingInTable:
		return fmt.Sprintf("%s: not in table (target %s)", m.Column, m.Target)
	case MissingInTarget:
		return fmt.Sprintf("%s: not in target schema (table %s)", m.Column, m.Table)
	}
	return fmt.Sprintf("%s: target %s, table %s", m.Column, m.Target, m.Table)
}

// Diff compares the target schema with the table's. Target columns come
// first in target order, then table-only columns in table order. Target
// types are compared after alias normalization.
func Diff(target, table transform.Schema) []Mismatch {
	tableTypes := make(map[string]transform.Type, len(table))
	for _, f := range table {
		tableTypes[f.Name] = f.Type
	}
	inTarget := make(map[string]bool, len(target))

	var out []Mismatch
	for _, f := range target {
		inTarget[f.Name] = true
		want := f.Type
		if t, err := transform.ParseType(string(f.Type)); err == nil {
			want = t
		}
		got, ok := tableTypes[f.Name]
		switch {
		case !ok:
			out = append(out, Mismatch{Column: f.Name, Kind: MissingInTable, Target: want})
		case got != want:
			out = append(out, Mismatch{Column: f.Name, Kind: TypeDiffers, Target: want, Table: got})
		}
	}
	for _, f := range table {
		if !inTarget[f.Name] {
			out = append(out, Mismatch{Column: f.Name, Kind: MissingInTarget, Table: f.Type})
		}
	}
	return out
}

// ReferenceStage reads the destination table's schema, logs it and warns
// about every difference from target. It leaves the frame untouched. A
// failed metadata read fails the stage.
func ReferenceStage(c Client, table TableRef, target transform.Schema) transform.Stage {
	return transform.StageFunc{Label: "reference_schema", Fn: func(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
		ref, err := c.TableSchema(ctx, table)
		if err != nil {
			return nil, err
		}
		log := logging.With("table", table.String())
		for _, col := range ref {
			log.Info("reference column", "name", col.Name, "type", string(col.Type))
		}
		for _, m := range Diff(target, ref) {
			log.Warn("reference schema mismatch", "column", m.Column, "kind", string(m.Kind), "detail", m.String())
		}
		return f, nil
	}}
}
