package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all agentcluster configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Simulated step durations
	Timings TimingsConfig `yaml:"timings"`

	// Retry budget for validation and tool activation steps
	Retry RetryConfig `yaml:"retry"`

	// HTTP / WebSocket / MCP surface
	Server ServerConfig `yaml:"server"`

	// Finished-run journal
	Journal JournalConfig `yaml:"journal"`

	Logging LoggingConfig `yaml:"logging"`

	// OTLP export; off when endpoint is empty
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// TimingsConfig holds the fixed suspension intervals of a build run.
// Values are Go duration strings ("1s", "200ms").
type TimingsConfig struct {
	Initialize     string `yaml:"initialize"`
	Architecture   string `yaml:"architecture"`
	Scan           string `yaml:"scan"`
	GapAnalysis    string `yaml:"gap_analysis"`
	Fragment       string `yaml:"fragment"`
	ToolActivation string `yaml:"tool_activation"`
	Assimilate     string `yaml:"assimilate"`
	Line           string `yaml:"line"`
	Correction     string `yaml:"correction"`
	Package        string `yaml:"package"`
	Intent         string `yaml:"intent"`
}

// RetryConfig configures per-step retries.
type RetryConfig struct {
	MaxRetries  int    `yaml:"max_retries"`  // attempts per step before the run fails
	BackoffBase string `yaml:"backoff_base"` // first retry delay
	BackoffMax  string `yaml:"backoff_max"`  // retry delay cap
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	EnableMCP    bool   `yaml:"enable_mcp"`
	StreamBuffer int    `yaml:"stream_buffer"`
	WriteTimeout string `yaml:"write_timeout"`
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TelemetryConfig selects the OTLP/HTTP collector.
type TelemetryConfig struct {
	Endpoint       string `yaml:"endpoint"` // host:port
	Insecure       bool   `yaml:"insecure"`
	MetricInterval string `yaml:"metric_interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "agentcluster",
		Version: "0.3.0",

		Timings: TimingsConfig{
			Initialize:     "1s",
			Architecture:   "1500ms",
			Scan:           "800ms",
			GapAnalysis:    "1s",
			Fragment:       "500ms",
			ToolActivation: "2s",
			Assimilate:     "1500ms",
			Line:           "200ms",
			Correction:     "300ms",
			Package:        "2s",
			Intent:         "750ms",
		},

		Retry: RetryConfig{
			MaxRetries:  3,
			BackoffBase: "250ms",
			BackoffMax:  "5s",
		},

		Server: ServerConfig{
			Addr:         "127.0.0.1:8420",
			EnableMCP:    true,
			StreamBuffer: 64,
			WriteTimeout: "10s",
		},

		Journal: JournalConfig{
			Enabled: true,
			Path:    ".agentcluster/journal.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},

		Telemetry: TelemetryConfig{
			MetricInterval: "15s",
		},
	}
}

// Load reads path over the defaults and applies env overrides. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	defer cfg.applyEnvOverrides()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as YAML. The file is replaced by rename so a
// Watcher never reads a half-written document.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("AGENTCLUSTER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if path := os.Getenv("AGENTCLUSTER_JOURNAL"); path != "" {
		c.Journal.Path = path
		c.Journal.Enabled = true
	}
	if lvl := os.Getenv("AGENTCLUSTER_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
	if ep := os.Getenv("AGENTCLUSTER_OTLP_ENDPOINT"); ep != "" {
		c.Telemetry.Endpoint = ep
	}
	if v := os.Getenv("AGENTCLUSTER_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Retry.MaxRetries < 1 {
		return fmt.Errorf("retry.max_retries must be >= 1, got %d", c.Retry.MaxRetries)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path required when journal is enabled")
	}
	for name, raw := range c.Timings.fields() {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("timings.%s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("timings.%s must not be negative", name)
		}
	}
	return nil
}

func (t TimingsConfig) fields() map[string]string {
	return map[string]string{
		"initialize":      t.Initialize,
		"architecture":    t.Architecture,
		"scan":            t.Scan,
		"gap_analysis":    t.GapAnalysis,
		"fragment":        t.Fragment,
		"tool_activation": t.ToolActivation,
		"assimilate":      t.Assimilate,
		"line":            t.Line,
		"correction":      t.Correction,
		"package":         t.Package,
		"intent":          t.Intent,
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// GetBackoffBase returns the first retry delay.
func (c *Config) GetBackoffBase() time.Duration {
	return parseDuration(c.Retry.BackoffBase, 250*time.Millisecond)
}

// GetBackoffMax returns the retry delay cap.
func (c *Config) GetBackoffMax() time.Duration {
	return parseDuration(c.Retry.BackoffMax, 5*time.Second)
}

// GetMetricInterval returns the OTLP metric export interval.
func (c *Config) GetMetricInterval() time.Duration {
	return parseDuration(c.Telemetry.MetricInterval, 15*time.Second)
}

// GetWriteTimeout returns the server write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 10*time.Second)
}
