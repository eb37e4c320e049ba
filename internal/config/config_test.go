package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Blob.Driver != "fs" || cfg.Metrics.Recorder != "expvar" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.EnvironmentsRoot != "." {
		t.Fatalf("environments root = %q", cfg.EnvironmentsRoot)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := `
environments_root: /var/lib/datagraph
storage:
  driver: postgres
  postgres_dsn: postgres://localhost/datagraph
blob:
  driver: s3
  s3_bucket: payloads
  s3_region: us-east-1
  s3_path_style: true
metrics:
  recorder: prometheus
  listen: :9090
`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EnvironmentsRoot != "/var/lib/datagraph" {
		t.Fatalf("environments root = %q", cfg.EnvironmentsRoot)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.PostgresDSN != "postgres://localhost/datagraph" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != "s3" || cfg.Blob.S3Bucket != "payloads" || !cfg.Blob.S3PathStyle {
		t.Fatalf("blob = %+v", cfg.Blob)
	}
	if cfg.Metrics.Recorder != "prometheus" || cfg.Metrics.Listen != ":9090" {
		t.Fatalf("metrics = %+v", cfg.Metrics)
	}
}

func TestEnvironmentOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  driver: sqlite\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DATAGRAPH_STORAGE_DRIVER", "memory")
	t.Setenv("DATAGRAPH_BLOB_DRIVER", "memory")
	t.Setenv("DATAGRAPH_S3_PATH_STYLE", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "memory" || cfg.Blob.Driver != "memory" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.Blob.S3PathStyle {
		t.Fatal("boolean override not applied")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown storage driver", func(c *Config) { c.Storage.Driver = "etcd" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"unknown blob driver", func(c *Config) { c.Blob.Driver = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Blob.Driver = "s3" }},
		{"unknown metrics recorder", func(c *Config) { c.Metrics.Recorder = "statsd" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate accepted %+v", cfg)
			}
		})
	}
}
