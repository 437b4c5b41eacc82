package spec

import "sluice/internal/transform"

type SourceSpec struct {
	Kind      string `yaml:"kind"`      // "delimited"
	Delimiter string `yaml:"delimiter"` // single character, default ";"
	Header    *bool  `yaml:"header"`    // default true
}

type StageSpec struct {
	Kind   string `yaml:"kind"`
	Column string `yaml:"column"` // add_year, add_semestre

	// coerce_schema
	DecimalComma bool     `yaml:"decimal_comma"`
	DateLayouts  []string `yaml:"date_layouts"`
}

type ObjectStoreSink struct {
	CSVHeader    bool   `yaml:"csv_header"`
	CSVDelimiter string `yaml:"csv_delimiter"`
}

type WarehouseSink struct {
	StagingBucket string `yaml:"staging_bucket"`
}

type StdoutSink struct {
	Rows int `yaml:"rows"`
}

type sinkConfigs struct {
	ObjectStore ObjectStoreSink `yaml:"objectstore"`
	Warehouse   WarehouseSink   `yaml:"warehouse"`
	Stdout      StdoutSink      `yaml:"stdout"`
}

type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Source SourceSpec `yaml:"source"`

	// Ordered list of stages applied between source and sinks.
	Stages []StageSpec `yaml:"stages"`

	Sinks       []string    `yaml:"sinks"`
	SinkConfigs sinkConfigs `yaml:"sink_configs"`

	// Empty means transform.DefaultSchema.
	TargetSchema transform.Schema `yaml:"target_schema"`
}

// DateColumn is the normalized header the derived columns are computed from.
const DateColumn = "data_da_coleta"

// Default is the built-in pipeline: the fuel price job as it has always run.
func Default() File {
	return File{
		SchemaVersion: "v1",
		Source:        SourceSpec{Kind: "delimited", Delimiter: ";"},
		Stages: []StageSpec{
			{Kind: "normalize_columns"},
			{Kind: "add_year", Column: DateColumn},
			{Kind: "add_semestre", Column: DateColumn},
			{Kind: "add_input_file_name"},
			{Kind: "reference_schema"},
			{Kind: "coerce_schema"},
		},
		Sinks: []string{"stdout", "objectstore", "warehouse"},
	}
}
