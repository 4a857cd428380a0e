// Package config loads abv settings from a TOML file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/abverdict/abverdict/internal/stats"
)

// Environment overrides, applied after the file.
const (
	EnvDBPath     = "ABV_DB_PATH"
	EnvPort       = "ABV_PORT"
	EnvConfidence = "ABV_CONFIDENCE"
)

// MinIterations is the smallest Monte Carlo run Validate accepts.
const MinIterations = 1000

// Config holds all abv configuration.
type Config struct {
	Analysis AnalysisConfig `toml:"analysis"`
	Impact   ImpactConfig   `toml:"impact"`
	Storage  StorageConfig  `toml:"storage"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// AnalysisConfig holds significance settings.
type AnalysisConfig struct {
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	Iterations          int     `toml:"iterations"`
	// Seed makes analyses reproducible; 0 seeds randomly.
	Seed uint64 `toml:"seed"`
}

// ImpactConfig holds the traffic assumptions for impact estimates.
type ImpactConfig struct {
	DailyTraffic float64 `toml:"daily_traffic"`
	TrafficSplit float64 `toml:"traffic_split"`
}

// StorageConfig holds database settings.
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `toml:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Analysis: AnalysisConfig{
			ConfidenceThreshold: stats.DefaultConfidenceThreshold,
			Iterations:          stats.DefaultIterations,
		},
		Impact: ImpactConfig{
			DailyTraffic: stats.DefaultDailyTraffic,
			TrafficSplit: stats.DefaultTrafficSplit,
		},
		Storage: StorageConfig{DBPath: "./abv.db"},
		Server:  ServerConfig{Port: 8080},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "abverdict")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "abverdict")
}

// ConfigPath returns the full path to the default config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file at path (the default path when empty), falls
// back to defaults for anything it does not set, then applies environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// LoadFile is Load without the environment overrides. Use it before Save
// so that overrides are not written back to the file.
func LoadFile(path string) (Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvPort, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvConfidence); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvConfidence, err)
		}
		c.Analysis.ConfidenceThreshold = threshold
	}
	return nil
}

// fillDefaults replaces zero values a file may have left behind.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Analysis.ConfidenceThreshold == 0 {
		c.Analysis.ConfidenceThreshold = def.Analysis.ConfidenceThreshold
	}
	if c.Analysis.Iterations == 0 {
		c.Analysis.Iterations = def.Analysis.Iterations
	}
	if c.Impact.TrafficSplit == 0 {
		c.Impact.TrafficSplit = def.Impact.TrafficSplit
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = def.Storage.DBPath
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate reports the first setting that is out of range.
func (c Config) Validate() error {
	if err := stats.ValidateThreshold(c.Analysis.ConfidenceThreshold); err != nil {
		return err
	}
	if c.Analysis.Iterations < MinIterations {
		return &stats.ValidationError{Field: "iterations", Reason: fmt.Sprintf("must be at least %d, got %d", MinIterations, c.Analysis.Iterations)}
	}
	if err := c.ImpactOptions().Validate(); err != nil {
		return err
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &stats.ValidationError{Field: "port", Reason: fmt.Sprintf("must be between 1 and 65535, got %d", c.Server.Port)}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return &stats.ValidationError{Field: "log.level", Reason: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return &stats.ValidationError{Field: "log.format", Reason: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	return nil
}

// ImpactOptions converts the impact section for the analyzer.
func (c Config) ImpactOptions() stats.ImpactOptions {
	return stats.ImpactOptions{
		DailyTraffic: c.Impact.DailyTraffic,
		TrafficSplit: c.Impact.TrafficSplit,
	}
}

// Save writes cfg to path (the default path when empty).
func Save(path string, cfg Config) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists at path.
func Exists(path string) bool {
	if path == "" {
		path = ConfigPath()
	}
	_, err := os.Stat(path)
	return err == nil
}
