package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix selects the environment overlay: SLUICE__GCP__PROJECT_ID sets
// gcp.project_id.
const EnvPrefix = "SLUICE__"

type JobKind string

const (
	JobPySpark JobKind = "pyspark"
	JobSpark   JobKind = "spark"
)

type GCP struct {
	ProjectID        string `koanf:"project_id"`
	Region           string `koanf:"region"`
	CredentialsFile  string `koanf:"credentials_file"` // empty → application default credentials
	BigQueryLocation string `koanf:"bigquery_location"`
}

type Warehouse struct {
	StagingBucket string `koanf:"staging_bucket"`
}

type Submit struct {
	ClusterName  string   `koanf:"cluster_name"`
	JobKind      JobKind  `koanf:"job_kind"`
	MainURI      string   `koanf:"main_uri"`
	MainClass    string   `koanf:"main_class"`
	JarURIs      []string `koanf:"jar_uris"`
	Args         []string `koanf:"args"`
	OutputSuffix string   `koanf:"output_suffix"`
}

type Log struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

type Metrics struct {
	Port    int    `koanf:"port"`     // >0 serves /metrics
	PushURL string `koanf:"push_url"` // Pushgateway, pushed once at end of run
}

type Config struct {
	GCP       GCP       `koanf:"gcp"`
	Warehouse Warehouse `koanf:"warehouse"`
	Submit    Submit    `koanf:"submit"`
	Log       Log       `koanf:"log"`
	Metrics   Metrics   `koanf:"metrics"`
}

// Load merges YAML (if present) with env-vars (prefix SLUICE__, delimiter
// __) and fills defaults.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return Config{}, fmt.Errorf("config schema_version %q not supported (want %s)", sv, SupportedSchema)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func applyDefaults(c *Config) {
	if c.GCP.Region == "" {
		c.GCP.Region = "us-central1"
	}
	if c.Submit.JobKind == "" {
		c.Submit.JobKind = JobPySpark
	}
	if c.Submit.OutputSuffix == "" {
		c.Submit.OutputSuffix = ".000000000"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ValidateSubmit checks the fields the job submitter cannot run without.
func (c Config) ValidateSubmit() error {
	var missing []string
	if c.GCP.ProjectID == "" {
		missing = append(missing, "gcp.project_id")
	}
	if c.Submit.ClusterName == "" {
		missing = append(missing, "submit.cluster_name")
	}
	if c.Submit.MainURI == "" {
		missing = append(missing, "submit.main_uri")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing config: %s", strings.Join(missing, ", "))
	}
	switch c.Submit.JobKind {
	case JobPySpark, JobSpark:
	default:
		return fmt.Errorf("submit.job_kind %q not supported (want pyspark or spark)", c.Submit.JobKind)
	}
	return nil
}

// ValidateWarehouse checks the fields the warehouse sink needs.
func (c Config) ValidateWarehouse() error {
	if c.GCP.ProjectID == "" {
		return errors.New("missing config: gcp.project_id")
	}
	return nil
}
