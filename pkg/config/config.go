// Package config loads tool configuration from YAML with environment
// overrides. Priority: defaults < file < env.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all mastoflow configuration.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Paths      PathsConfig      `yaml:"paths"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Publish    PublishConfig    `yaml:"publish"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// InstanceConfig describes the Mastodon instance collection targets.
type InstanceConfig struct {
	// URL is the instance base URL, e.g. "https://mastodon.social".
	URL string `yaml:"url"`

	// Hashtags to collect timelines for.
	Hashtags []string `yaml:"hashtags"`

	// PageLimit is the per-request status count (API maximum is 40).
	PageLimit int `yaml:"page_limit"`

	// MaxPages bounds pagination per timeline.
	MaxPages int `yaml:"max_pages"`
}

// PathsConfig locates the on-disk working directories.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir"`
	Database  string `yaml:"database"`
	ExportDir string `yaml:"export_dir"`
	DLQDir    string `yaml:"dlq_dir"`
}

// CheckpointConfig enables the Redis imported-file ledger.
type CheckpointConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
}

// PublishConfig enables pushing export bundles to S3.
type PublishConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"` // non-AWS S3 compatibles
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the default configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".mastoflow")

	return &Config{
		Instance: InstanceConfig{
			URL:       "https://mastodon.social",
			Hashtags:  []string{"opensource", "fediverse", "golang"},
			PageLimit: 40,
			MaxPages:  5,
		},
		Paths: PathsConfig{
			DataDir:   filepath.Join(base, "data"),
			Database:  filepath.Join(base, "mastodon.duckdb"),
			ExportDir: filepath.Join(base, "exports"),
			DLQDir:    filepath.Join(base, "dlq"),
		},
		Checkpoint: CheckpointConfig{
			Address: "localhost:6379",
		},
		Publish: PublishConfig{
			Region: "us-east-1",
			Prefix: "mastoflow",
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4317",
		},
	}
}

// Load builds the effective configuration. A missing file at path is not
// an error; an unreadable or invalid one is. path may be empty to use
// defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.loadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("MASTOFLOW_INSTANCE_URL"); v != "" {
		c.Instance.URL = v
	}
	if v := os.Getenv("MASTOFLOW_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("MASTOFLOW_DATABASE"); v != "" {
		c.Paths.Database = v
	}
	if v := os.Getenv("MASTOFLOW_REDIS_ADDR"); v != "" {
		c.Checkpoint.Enabled = true
		c.Checkpoint.Address = v
	}
	if v := os.Getenv("MASTOFLOW_REDIS_PASSWORD"); v != "" {
		c.Checkpoint.Password = v
	}
	if v := os.Getenv("MASTOFLOW_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Checkpoint.Database = n
		}
	}
	if v := os.Getenv("MASTOFLOW_S3_BUCKET"); v != "" {
		c.Publish.Enabled = true
		c.Publish.Bucket = v
	}
	if v := os.Getenv("MASTOFLOW_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Enabled = true
		c.Telemetry.Endpoint = v
	}
}

// Validate rejects configurations the commands cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Instance.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid instance URL %q", c.Instance.URL)
	}
	if c.Instance.PageLimit <= 0 || c.Instance.PageLimit > 40 {
		return fmt.Errorf("page_limit must be in 1..40, got %d", c.Instance.PageLimit)
	}
	if c.Instance.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be positive, got %d", c.Instance.MaxPages)
	}
	if c.Publish.Enabled && c.Publish.Bucket == "" {
		return fmt.Errorf("publish enabled but no bucket configured")
	}
	return nil
}

// EnsureDirs creates the working directories.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.Paths.DataDir,
		filepath.Dir(c.Paths.Database),
		c.Paths.ExportDir,
		c.Paths.DLQDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
