package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sluice/internal/spec"
)

const SupportedSchema = "v1"

// LoadPipelineSpec parses a pipeline YAML and validates schema_version and
// target_schema. An empty path yields the built-in default pipeline.
func LoadPipelineSpec(path string) (spec.File, error) {
	if path == "" {
		return spec.Default(), nil
	}
	var cfg spec.File
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SupportedSchema
	}
	if cfg.SchemaVersion != SupportedSchema {
		return cfg, fmt.Errorf("pipeline schema_version %q not supported (want %q)", cfg.SchemaVersion, SupportedSchema)
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "delimited"
	}
	if len(cfg.TargetSchema) > 0 {
		if err := cfg.TargetSchema.Validate(); err != nil {
			return cfg, fmt.Errorf("target_schema: %w", err)
		}
	}
	return cfg, nil
}
