package transform

import (
	"context"

	"sluice/internal/frame"
)

// Stage is one step of the pipeline. Stages may mutate f in place and return
// it, or return a new frame.
type Stage interface {
	Name() string
	Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error)
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc struct {
	Label string
	Fn    func(context.Context, *frame.Frame) (*frame.Frame, error)
}

func (s StageFunc) Name() string { return s.Label }
func (s StageFunc) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	return s.Fn(ctx, f)
}

func NormalizeColumnsStage() Stage {
	return StageFunc{Label: "normalize_columns", Fn: func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
		return f, NormalizeColumns(f)
	}}
}

func AddYearStage(column string) Stage {
	return StageFunc{Label: "add_year", Fn: func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
		return f, AddYear(f, column)
	}}
}

func AddSemestreStage(column string) Stage {
	return StageFunc{Label: "add_semestre", Fn: func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
		return f, AddSemestre(f, column)
	}}
}

func AddInputFileNameStage() Stage {
	return StageFunc{Label: "add_input_file_name", Fn: func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
		AddInputFileName(f)
		return f, nil
	}}
}

// CoerceStage casts f onto schema. report, when non-nil, receives the
// per-column count of values lost to failed casts.
func CoerceStage(schema Schema, opts CoerceOptions, report func(CoerceStats)) Stage {
	return StageFunc{Label: "coerce_schema", Fn: func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
		out, stats := Coerce(f, schema, opts)
		if report != nil {
			report(stats)
		}
		return out, nil
	}}
}
