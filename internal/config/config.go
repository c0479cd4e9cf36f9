// Package config loads the meshkernel host's TOML configuration file
// and fills in defaults for anything left unset.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level host configuration.
type Config struct {
	Host    HostConfig    `toml:"host"`
	Metrics MetricsConfig `toml:"metrics"`
	Log     LogConfig     `toml:"log"`
}

// HostConfig controls the modules directory and the scheduling tick.
type HostConfig struct {
	ModulesDir string `toml:"modules_dir"`
	TickMillis int    `toml:"tick_millis"`
}

// TickInterval returns HostConfig.TickMillis as a time.Duration.
func (h HostConfig) TickInterval() time.Duration {
	return time.Duration(h.TickMillis) * time.Millisecond
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// LogConfig controls structured log output.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ApplyDefaults fills in zero-value fields with their default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Host.ModulesDir == "" {
		cfg.Host.ModulesDir = "./modules"
	}
	if cfg.Host.TickMillis == 0 {
		cfg.Host.TickMillis = 5
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = "127.0.0.1:9469"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Load reads and decodes the TOML file at path, applying defaults to
// anything the file leaves unset. A missing file is not an error:
// Load returns the all-default Config in that case.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		ApplyDefaults(&cfg)
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		ApplyDefaults(&cfg)
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	ApplyDefaults(&cfg)
	return cfg, nil
}
