// Package config loads process configuration from a YAML file with
// DATAGRAPH_* environment variable overrides. Environment variables
// win over the file, the file wins over defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the process.
type Config struct {
	// EnvironmentsRoot is the parent directory for environment
	// directories opened by relative name.
	EnvironmentsRoot string `yaml:"environments_root"`

	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig selects the snapshot persistence driver.
type StorageConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver      string `yaml:"driver"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects the blob payload backend.
type BlobConfig struct {
	// Driver is one of memory, fs, s3.
	Driver      string `yaml:"driver"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// MetricsConfig selects the metrics recorder.
type MetricsConfig struct {
	// Recorder is one of none, expvar, prometheus.
	Recorder string `yaml:"recorder"`
	// Listen is the address of the debug/metrics HTTP listener; empty
	// disables it.
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file and no overrides
// are present.
func Default() Config {
	return Config{
		EnvironmentsRoot: ".",
		Storage:          StorageConfig{Driver: "sqlite"},
		Blob:             BlobConfig{Driver: "fs"},
		Metrics:          MetricsConfig{Recorder: "expvar"},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist) and applies DATAGRAPH_* environment overrides on
// top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// No file is fine; defaults plus env overrides apply.
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override(&c.EnvironmentsRoot, "DATAGRAPH_ENVIRONMENTS_ROOT")
	override(&c.Storage.Driver, "DATAGRAPH_STORAGE_DRIVER")
	override(&c.Storage.PostgresDSN, "DATAGRAPH_POSTGRES_DSN")
	override(&c.Blob.Driver, "DATAGRAPH_BLOB_DRIVER")
	override(&c.Blob.S3Bucket, "DATAGRAPH_S3_BUCKET")
	override(&c.Blob.S3Region, "DATAGRAPH_S3_REGION")
	override(&c.Blob.S3Endpoint, "DATAGRAPH_S3_ENDPOINT")
	if v, ok := os.LookupEnv("DATAGRAPH_S3_PATH_STYLE"); ok {
		c.Blob.S3PathStyle = v == "1" || v == "true"
	}
	override(&c.Metrics.Recorder, "DATAGRAPH_METRICS_RECORDER")
	override(&c.Metrics.Listen, "DATAGRAPH_METRICS_LISTEN")
}

func override(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*target = v
	}
}

// Validate checks driver names and cross-field requirements.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: storage driver postgres requires postgres_dsn")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "memory", "fs":
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("config: blob driver s3 requires s3_bucket")
		}
	default:
		return fmt.Errorf("config: unknown blob driver %q", c.Blob.Driver)
	}
	switch c.Metrics.Recorder {
	case "", "none", "expvar", "prometheus":
	default:
		return fmt.Errorf("config: unknown metrics recorder %q", c.Metrics.Recorder)
	}
	return nil
}
