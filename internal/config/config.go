// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file >
// embedded defaults > hardcoded defaults. The loaded Config is immutable — nothing
// reloads or rewrites it after startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "1s", "250ms", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all agent configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Scrape     ScrapeConfig     `yaml:"scrape"`
	Collectors CollectorsConfig `yaml:"collectors"`
}

// HTTPConfig holds the scrape endpoint listener settings.
type HTTPConfig struct {
	Listen  string   `yaml:"listen"`
	Timeout Duration `yaml:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	File    string `yaml:"file"`
}

// ScrapeConfig holds refresh timing settings. TTL is the minimum interval
// between two collection fan-outs; SampleGap is the minimum spacing between
// the two counter reads of one rate sample.
type ScrapeConfig struct {
	TTL       Duration `yaml:"ttl"`
	SampleGap Duration `yaml:"sample_gap"`
}

// CollectorsConfig holds the per-collector sections. Each collector is
// switched by its own `enabled` flag; disabled collectors are replaced by
// no-ops at startup and never consulted again.
type CollectorsConfig struct {
	CPU     CPUConfig     `yaml:"cpu"`
	Memory  MemoryConfig  `yaml:"memory"`
	Network NetworkConfig `yaml:"network"`
	DiskIO  DiskIOConfig  `yaml:"disk_io"`
	SMART   SMARTConfig   `yaml:"smart"`
	Docker  DockerConfig  `yaml:"docker"`
	UPS     UPSConfig     `yaml:"ups"`
	ZFS     ZFSConfig     `yaml:"zfs"`
	Host    HostConfig    `yaml:"host"`
}

// CPUConfig configures the CPU usage/frequency collector.
type CPUConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MemoryConfig configures the memory collector. ReportSwap additionally
// exports the swap series.
type MemoryConfig struct {
	Enabled    bool `yaml:"enabled"`
	ReportSwap bool `yaml:"report_swap"`
}

// NetworkConfig configures the network I/O collector. When Watch is
// non-empty only the listed interfaces are exported and Ignore is not
// consulted; otherwise Ignore filters interfaces out.
type NetworkConfig struct {
	Enabled bool     `yaml:"enabled"`
	Watch   []string `yaml:"watch"`
	Ignore  []string `yaml:"ignore"`
}

// DiskIOConfig configures the disk I/O collector.
type DiskIOConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SMARTConfig configures the SMART disk health collector. Binary is the
// smartctl executable to invoke.
type SMARTConfig struct {
	Enabled bool   `yaml:"enabled"`
	Binary  string `yaml:"binary"`
}

// DockerConfig configures the container collector. Endpoint discovery is
// delegated to the runtime client (DOCKER_HOST et al.).
type DockerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// UPSConfig configures the UPS collector and the NUT server it queries.
type UPSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// ZFSConfig configures the ZFS ARC/dataset collector.
type ZFSConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HostConfig configures the host snapshot collector (uptime, load, CPU count).
type HostConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default configuration: localhost-only probes on,
// everything that talks to external daemons or hardware off.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Listen:  ":8081",
			Timeout: Duration{10 * time.Second},
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
			File:    "",
		},
		Scrape: ScrapeConfig{
			TTL:       Duration{1 * time.Second},
			SampleGap: Duration{250 * time.Millisecond},
		},
		Collectors: CollectorsConfig{
			CPU:     CPUConfig{Enabled: true},
			Memory:  MemoryConfig{Enabled: true, ReportSwap: true},
			Network: NetworkConfig{Enabled: true},
			DiskIO:  DiskIOConfig{Enabled: true},
			SMART:   SMARTConfig{Enabled: false, Binary: "smartctl"},
			Docker:  DockerConfig{Enabled: false},
			UPS:     UPSConfig{Enabled: false, Host: "127.0.0.1", Port: 3493},
			ZFS:     ZFSConfig{Enabled: false},
			Host:    HostConfig{Enabled: true},
		},
	}
}

// CLIOverrides holds values from command-line flags.
// Empty strings are treated as "not set" and skipped.
type CLIOverrides struct {
	Listen   string
	LogLevel string
}

// DefaultPath returns the preferred config file location for this platform,
// used when writing the initial config on first run.
func DefaultPath() string {
	return configSearchPaths()[0]
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	candidates := configSearchPaths()
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value → use that path ("" means no external file)
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	// Layer 1: embedded config (lowest priority data layer)
	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	// Layer 2: external YAML file
	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0] // caller-supplied (may be "")
	} else {
		filePath = Locate() // auto-discover
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		}
	}

	// Layer 3: environment variables
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	// Layer 4: CLI flags (highest priority)
	if cli.Listen != "" {
		cfg.HTTP.Listen = cli.Listen
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}

	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed values are a load error, not a silent fallback to defaults.
func applyEnvOverrides(cfg *Config) error {
	if listen := os.Getenv("ANVIL_LISTEN"); listen != "" {
		cfg.HTTP.Listen = listen
	}
	if level := os.Getenv("ANVIL_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if file := os.Getenv("ANVIL_LOG_FILE"); file != "" {
		cfg.Log.File = file
	}
	if ttl := os.Getenv("ANVIL_SCRAPE_TTL"); ttl != "" {
		parsed, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid ANVIL_SCRAPE_TTL %q: %w", ttl, err)
		}
		cfg.Scrape.TTL = Duration{parsed}
	}
	if host := os.Getenv("ANVIL_UPS_HOST"); host != "" {
		cfg.Collectors.UPS.Host = host
	}
	if port := os.Getenv("ANVIL_UPS_PORT"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid ANVIL_UPS_PORT %q: %w", port, err)
		}
		cfg.Collectors.UPS.Port = parsed
	}
	return nil
}

// Validate checks that the configuration is usable. It is called once after
// the layers are merged; a Config that passed Validate never changes again.
func (c *Config) Validate() error {
	if c.HTTP.Listen == "" {
		return fmt.Errorf("http.listen is required")
	}
	if c.HTTP.Timeout.Duration <= 0 {
		return fmt.Errorf("http.timeout must be positive (got %v)", c.HTTP.Timeout.Duration)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug/info/warn/error (got %q)", c.Log.Level)
	}
	if c.Scrape.TTL.Duration <= 0 {
		return fmt.Errorf("scrape.ttl must be positive (got %v)", c.Scrape.TTL.Duration)
	}
	if c.Scrape.SampleGap.Duration <= 0 {
		return fmt.Errorf("scrape.sample_gap must be positive (got %v)", c.Scrape.SampleGap.Duration)
	}
	if c.Collectors.SMART.Enabled && c.Collectors.SMART.Binary == "" {
		return fmt.Errorf("collectors.smart.binary is required when the smart collector is enabled")
	}
	if c.Collectors.UPS.Enabled {
		if c.Collectors.UPS.Host == "" {
			return fmt.Errorf("collectors.ups.host is required when the ups collector is enabled")
		}
		if c.Collectors.UPS.Port <= 0 || c.Collectors.UPS.Port > 65535 {
			return fmt.Errorf("collectors.ups.port out of range (got %d)", c.Collectors.UPS.Port)
		}
	}
	return nil
}
