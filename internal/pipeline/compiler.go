package pipeline

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"sluice/internal/objstore"
	"sluice/internal/spec"
	"sluice/internal/transform"
	"sluice/internal/warehouse"
	"sluice/sink"
	"sluice/sink/objectstore"
	"sluice/sink/stdout"
	whsink "sluice/sink/warehouse"
	"sluice/source"
	_ "sluice/source/delimited"
)

// Args are the per-run values that come from the command line.
type Args struct {
	Input  string
	Output string
	Format string
	Table  string
}

// Deps are the clients the compiled pipeline talks to. Warehouse may be nil
// when neither the reference_schema stage nor the warehouse sink is used.
type Deps struct {
	Store         objstore.Store
	Warehouse     warehouse.Client
	StagingBucket string
	RunID         string // empty = random
}

// Compile turns a pipeline file plus the run's arguments into a Runner.
func Compile(file spec.File, args Args, deps Deps) (*Runner, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("compile: no object store")
	}
	runID := deps.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	r := NewRunner(runID)

	schema := file.TargetSchema
	if len(schema) == 0 {
		schema = transform.DefaultSchema()
	}
	schema, err := schema.Normalized()
	if err != nil {
		return nil, fmt.Errorf("target_schema: %w", err)
	}

	table, err := warehouse.ParseTable(args.Table)
	if err != nil {
		return nil, err
	}

	/*──────── source ───────*/
	src, err := compileSource(file.Source, args.Input, deps.Store)
	if err != nil {
		return nil, err
	}
	r.SetSource(src)

	/*──────── stages ───────*/
	for i, st := range file.Stages {
		stage, err := compileStage(st, schema, table, deps, r)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, st.Kind, err)
		}
		r.AddStage(stage)
	}

	/*──────── sinks ───────*/
	for _, name := range file.Sinks {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			return nil, err
		}

		switch name {
		case "stdout":
			err = sDrv.Configure(stdout.Config{
				Rows:   file.SinkConfigs.Stdout.Rows,
				Schema: schema,
			})

		case "objectstore":
			var out objstore.URI
			out, err = objstore.Parse(args.Output)
			if err != nil {
				break
			}
			var delim rune
			delim, err = parseDelimiter(file.SinkConfigs.ObjectStore.CSVDelimiter, ',')
			if err != nil {
				break
			}
			err = sDrv.Configure(objectstore.Config{
				Output:       out,
				Store:        deps.Store,
				Format:       args.Format,
				RunID:        runID,
				Schema:       schema,
				CSVHeader:    file.SinkConfigs.ObjectStore.CSVHeader,
				CSVDelimiter: delim,
			})

		case "warehouse":
			bucket := deps.StagingBucket
			if b := file.SinkConfigs.Warehouse.StagingBucket; b != "" {
				bucket = b
			}
			err = sDrv.Configure(whsink.Config{
				Table:         table,
				Client:        deps.Warehouse,
				Store:         deps.Store,
				StagingBucket: bucket,
				RunID:         runID,
				Schema:        schema,
			})

		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			// reported when the sink's turn comes; the other sinks still run
			r.AddSink(name, brokenSink{err: fmt.Errorf("configure: %w", err)})
			continue
		}
		r.AddSink(name, sDrv)
	}
	return r, nil
}

func compileSource(s spec.SourceSpec, input string, store objstore.Store) (source.Adapter, error) {
	kind := s.Kind
	if kind == "" {
		kind = "delimited"
	}
	src, err := source.NewAdapter(kind)
	if err != nil {
		return nil, err
	}
	in, err := objstore.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	delim, err := parseDelimiter(s.Delimiter, ';')
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	header := true
	if s.Header != nil {
		header = *s.Header
	}
	if err := src.Configure(source.Config{Input: in, Store: store, Delimiter: delim, Header: header}); err != nil {
		return nil, err
	}
	return src, nil
}

func compileStage(st spec.StageSpec, schema transform.Schema, table warehouse.TableRef, deps Deps, r *Runner) (transform.Stage, error) {
	column := st.Column
	if column == "" {
		column = spec.DateColumn
	}
	switch st.Kind {
	case "normalize_columns":
		return transform.NormalizeColumnsStage(), nil
	case "add_year":
		return transform.AddYearStage(column), nil
	case "add_semestre":
		return transform.AddSemestreStage(column), nil
	case "add_input_file_name":
		return transform.AddInputFileNameStage(), nil
	case "reference_schema":
		if deps.Warehouse == nil {
			return nil, fmt.Errorf("no warehouse client")
		}
		return warehouse.ReferenceStage(deps.Warehouse, table, schema), nil
	case "coerce_schema":
		opts := transform.CoerceOptions{DecimalComma: st.DecimalComma, DateLayouts: st.DateLayouts}
		return transform.CoerceStage(schema, opts, r.recordNulled), nil
	}
	return nil, fmt.Errorf("unknown stage kind %q", st.Kind)
}

func parseDelimiter(s string, def rune) (rune, error) {
	if s == "" {
		return def, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
