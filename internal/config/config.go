package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete boqbuilder configuration.
type Config struct {
	Version    string           `yaml:"version"`
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Conversion ConversionConfig `yaml:"conversion"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Queue      QueueConfig      `yaml:"queue"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	NATS       NATSConfig       `yaml:"nats"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WorkspaceConfig locates per-job directories.
type WorkspaceConfig struct {
	BaseDir   string        `yaml:"base_dir"`
	Retention time.Duration `yaml:"retention"` // job directories older than this are swept; 0 keeps forever
}

// ConversionConfig controls the DWG to DXF conversion stage.
type ConversionConfig struct {
	TargetVersion string          `yaml:"target_version"`
	Timeout       time.Duration   `yaml:"timeout"`
	MinSizeRatio  float64         `yaml:"min_size_ratio"`
	MaxSizeRatio  float64         `yaml:"max_size_ratio"`
	Backends      []BackendConfig `yaml:"backends"`
}

// BackendConfig describes one external converter.
type BackendConfig struct {
	Name     string `yaml:"name"`           // libredwg | oda
	Binary   string `yaml:"binary"`         // looked up on PATH
	Path     string `yaml:"path,omitempty"` // explicit location, checked first
	Priority int    `yaml:"priority"`       // lower runs first
	Disabled bool   `yaml:"disabled,omitempty"`
}

// ExtractionConfig tunes the spatial heuristics.
type ExtractionConfig struct {
	MinRoomArea     float64  `yaml:"min_room_area"`
	WallKeywords    []string `yaml:"wall_keywords"`
	DoorKeywords    []string `yaml:"door_keywords"`
	WindowKeywords  []string `yaml:"window_keywords"`
	OpeningKeywords []string `yaml:"opening_keywords"`
}

// CatalogConfig points at the block-name mapping table.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// QueueConfig sizes the worker pool and job-level retry.
type QueueConfig struct {
	Workers           int              `yaml:"workers"`
	Capacity          int              `yaml:"capacity"`
	MaxRetries        int              `yaml:"max_retries"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff"`
	RetryInitialDelay time.Duration    `yaml:"retry_initial_delay"`
	RetryMaxDelay     time.Duration    `yaml:"retry_max_delay"`
	HistorySize       int              `yaml:"history_size"`

	maxRetriesSpecified bool
}

// DaemonConfig covers the long-running service.
type DaemonConfig struct {
	HTTPAddr       string        `yaml:"http_addr"`
	MaxConnections int           `yaml:"max_connections"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	InboxDir       string        `yaml:"inbox_dir,omitempty"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	RescanInterval time.Duration `yaml:"rescan_interval"`
	StorePath      string        `yaml:"store_path"`
}

// NATSConfig enables job lifecycle events on JetStream.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// UnmarshalYAML records whether max_retries was present so an explicit 0 survives defaults.
func (q *QueueConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain QueueConfig
	if err := node.Decode((*plain)(q)); err != nil {
		return err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "max_retries" {
			q.maxRetriesSpecified = true
		}
	}
	return nil
}

// Load reads path, expands environment variables, applies environment
// overrides and defaults, then validates. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("configuration file not found: %s", path)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Parse([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	if err := ApplyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, rejecting unknown fields.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = ApplyDefaults(cfg)
	return cfg
}

// Init writes a default configuration file to path.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}
	var buf bytes.Buffer
	buf.WriteString("# boqbuilder configuration\n# Values may reference environment variables as ${VAR}.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
