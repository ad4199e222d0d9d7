// CLAUDE:SUMMARY Configuration structs (server, observer, browser, suggest) and YAML loader for domveil.
// Package domveil holds top-level configuration for the suppression
// service. Subsystem packages receive their slices of this config.
package domveil

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all domveil configuration.
type Config struct {
	DBPath   string         `yaml:"db_path"`
	Server   ServerConfig   `yaml:"server"`
	Observer ObserverConfig `yaml:"observer"`
	Browser  BrowserConfig  `yaml:"browser"`
	Suggest  SuggestConfig  `yaml:"suggest"`
	Report   ReportConfig   `yaml:"report"`
}

// ServerConfig controls the HTTP/MCP surface.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	AuthUser string `yaml:"auth_user"`
	AuthHash string `yaml:"auth_hash"` // bcrypt hash of the password
}

// ObserverConfig controls mutation batching.
type ObserverConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Settle   time.Duration `yaml:"settle"`
}

// BrowserConfig controls the live-page bridge.
type BrowserConfig struct {
	Enabled    bool          `yaml:"enabled"`
	RemoteURL  string        `yaml:"remote_url"`
	Headless   *bool         `yaml:"headless"`
	NavTimeout time.Duration `yaml:"nav_timeout"`
}

// SuggestConfig controls the remote selector-suggestion backend.
type SuggestConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ReportConfig controls the JSONL audit trail.
type ReportConfig struct {
	Path string `yaml:"path"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "domveil.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8344"
	}
	if c.Observer.Debounce <= 0 {
		c.Observer.Debounce = 100 * time.Millisecond
	}
	if c.Observer.Settle <= 0 {
		c.Observer.Settle = 500 * time.Millisecond
	}
	if c.Browser.Headless == nil {
		t := true
		c.Browser.Headless = &t
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Suggest.Timeout <= 0 {
		c.Suggest.Timeout = 10 * time.Second
	}
}

// LoadConfigFile reads a YAML config file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}
