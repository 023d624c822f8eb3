package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cuckoofilter/internal/filter"
)

// Config is the top-level configuration loaded from YAML: one instance
// identity, the set of filters to initialize at startup, and the
// persistence and logging sections that apply to all of them.
type Config struct {
	Instance    InstanceConfig        `yaml:"instance"`
	Filters     []filter.FilterConfig `yaml:"filters"`
	Persistence PersistenceConfig     `yaml:"persistence"`
	Logging     LoggingConfig         `yaml:"logging"`
}

// InstanceConfig identifies this process for logging and snapshot naming.
type InstanceConfig struct {
	Name    string `yaml:"name"`
	DataDir string `yaml:"data_dir"`
}

// PersistenceConfig controls whether and how filters are snapshotted to
// disk (see internal/persistence).
type PersistenceConfig struct {
	Enabled          bool   `yaml:"enabled"`
	SnapshotDir      string `yaml:"snapshot_dir"`
	CompressionLevel int    `yaml:"compression_level"` // 1-9 gzip levels; 0 selects gzip's default
	RetainSnapshots  int    `yaml:"retain_snapshots"`
}

// LoggingConfig mirrors internal/logging.LogConfig's YAML shape.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	EnableConsole bool   `yaml:"enable_console"`
	EnableFile    bool   `yaml:"enable_file"`
	LogFile       string `yaml:"log_file"`
	LogDir        string `yaml:"log_dir"`
}

// Load reads and parses the configuration file, falling back to defaults
// tuned for a single GUID-keyed filter if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Instance: InstanceConfig{
			Name:    "cuckoofilter-1",
			DataDir: "/tmp/cuckoofilter",
		},
		Filters: []filter.FilterConfig{
			*filter.DefaultCuckooConfig("default", 0),
		},
		Persistence: PersistenceConfig{
			Enabled:          true,
			SnapshotDir:      "snapshots",
			CompressionLevel: 6,
			RetainSnapshots:  3,
		},
		Logging: LoggingConfig{
			Level:         "info",
			EnableConsole: true,
			EnableFile:    false,
			LogDir:        "logs",
		},
	}
	cfg.Filters[0].SizeToken = "64M"

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("configuration file %s not found, using defaults\n", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for obvious mistakes before any
// filter is initialized.
func (c *Config) Validate() error {
	if c.Instance.Name == "" {
		return fmt.Errorf("instance.name cannot be empty")
	}
	if len(c.Filters) == 0 {
		return fmt.Errorf("at least one filter must be configured")
	}

	names := make(map[string]bool)
	for _, f := range c.Filters {
		if f.Name == "" {
			return fmt.Errorf("filter name cannot be empty")
		}
		if names[f.Name] {
			return fmt.Errorf("duplicate filter name: %s", f.Name)
		}
		names[f.Name] = true

		if f.ByteSize == 0 && f.SizeToken == "" {
			return fmt.Errorf("filter %s: either byte_size or size_token must be set", f.Name)
		}
		if f.FingerprintWidth != 0 && f.FingerprintWidth != 1 && f.FingerprintWidth != 2 && f.FingerprintWidth != 4 {
			return fmt.Errorf("filter %s: fingerprint_width must be 1, 2 or 4", f.Name)
		}
	}

	if c.Persistence.Enabled {
		if c.Persistence.CompressionLevel < 0 || c.Persistence.CompressionLevel > 9 {
			return fmt.Errorf("persistence.compression_level must be between 0 and 9")
		}
	}

	return nil
}
