package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"cuckoofilter/pkg/config"
)

func TestConfigLoading(t *testing.T) {
	t.Run("Default_Configuration", func(t *testing.T) {
		cfg, err := config.Load("/non/existent/path")
		if err != nil {
			t.Fatalf("Failed to load default config: %v", err)
		}

		if cfg.Instance.Name != "cuckoofilter-1" {
			t.Errorf("expected default instance name, got %s", cfg.Instance.Name)
		}
		if len(cfg.Filters) != 1 {
			t.Fatalf("expected one default filter, got %d", len(cfg.Filters))
		}
		if cfg.Filters[0].SizeToken != "64M" {
			t.Errorf("expected default size token 64M, got %s", cfg.Filters[0].SizeToken)
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
		}
	})

	t.Run("YAML_Configuration_Loading", func(t *testing.T) {
		yamlContent := `
instance:
  name: "guid-dedup"
  data_dir: "/tmp/cf"

filters:
  - name: "guids"
    size_token: "256M"
    fingerprint_width: 2
    max_eviction_attempts: 500

persistence:
  enabled: true
  snapshot_dir: "snapshots"
  compression_level: 6
  retain_snapshots: 2

logging:
  level: "debug"
  enable_console: true
`
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
			t.Fatalf("failed to write temp config: %v", err)
		}

		cfg, err := config.Load(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if cfg.Instance.Name != "guid-dedup" {
			t.Errorf("expected instance name guid-dedup, got %s", cfg.Instance.Name)
		}
		if len(cfg.Filters) != 1 || cfg.Filters[0].SizeToken != "256M" {
			t.Errorf("unexpected filters: %+v", cfg.Filters)
		}
		if cfg.Persistence.RetainSnapshots != 2 {
			t.Errorf("expected retain_snapshots 2, got %d", cfg.Persistence.RetainSnapshots)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
		}
	})

	t.Run("Invalid_Configuration_Rejected", func(t *testing.T) {
		yamlContent := `
instance:
  name: "bad"
filters:
  - name: "nosize"
`
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
			t.Fatalf("failed to write temp config: %v", err)
		}

		if _, err := config.Load(path); err == nil {
			t.Error("expected validation error for filter with no byte_size or size_token")
		}
	})

	t.Run("Duplicate_Filter_Names_Rejected", func(t *testing.T) {
		cfg, err := config.Load("/non/existent/path")
		if err != nil {
			t.Fatalf("failed to load default config: %v", err)
		}
		cfg.Filters = append(cfg.Filters, cfg.Filters[0])
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for duplicate filter names")
		}
	})
}
