package config

import (
	"os"
	"time"

	cerr "github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config собирает все настройки утилиты
type Config struct {
	Security  SecurityConfig  `yaml:"security"`
	Wipe      WipeConfig      `yaml:"wipe"`
	Verify    VerifyConfig    `yaml:"verify"`
	Logging   LoggingConfig   `yaml:"logging"`
	Reporting ReportingConfig `yaml:"reporting"`
}

type SecurityConfig struct {
	ProtectedPaths   []string `yaml:"protected_paths"`
	AbortAllOnDenial bool     `yaml:"abort_all_on_denial"`
}

type WipeConfig struct {
	ChunkSize     int64   `yaml:"chunk_size"`
	MaxConcurrent int     `yaml:"max_concurrent"`
	MaxSpeedMBps  float64 `yaml:"max_speed_mbps"`
	SyncInterval  int64   `yaml:"sync_interval"`
	UnitTimeout   string  `yaml:"unit_timeout"`
}

type VerifyConfig struct {
	Policy       string `yaml:"policy"`
	SampleCount  int    `yaml:"sample_count"`
	SampleWindow int    `yaml:"sample_window"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Structured bool   `yaml:"structured"`
}

type ReportingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	LocalPath string `yaml:"local_path"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Security: SecurityConfig{
			ProtectedPaths:   []string{},
			AbortAllOnDenial: false,
		},
		Wipe: WipeConfig{
			ChunkSize:     4 * 1024 * 1024, // 4MB
			MaxConcurrent: 0,               // 0 = auto
			MaxSpeedMBps:  0,               // 0 = unlimited
			SyncInterval:  512 * 1024 * 1024,
			UnitTimeout:   "",
		},
		Verify: VerifyConfig{
			Policy:       "full",
			SampleCount:  16,
			SampleWindow: 4096,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			Structured: false,
		},
		Reporting: ReportingConfig{
			Enabled:   true,
			LocalPath: "reports",
		},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerr.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, cerr.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// ParsedUnitTimeout converts the configured per-unit timeout. Empty means
// no timeout.
func (c *Config) ParsedUnitTimeout() (time.Duration, error) {
	if c.Wipe.UnitTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Wipe.UnitTimeout)
	if err != nil {
		return 0, cerr.Wrapf(err, "invalid unit_timeout %q", c.Wipe.UnitTimeout)
	}
	return d, nil
}
