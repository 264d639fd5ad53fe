package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/callstat/internal/model"
	"github.com/tinytelemetry/callstat/internal/report"
)

const (
	defaultFormat       = model.DefaultFormat
	defaultWorkers      = model.DefaultWorkers
	defaultMaxLineSize  = model.DefaultMaxLineSize
	defaultProgress     = progressAuto
	defaultQueryTimeout = 30 * time.Second
)

// Progress bar modes.
const (
	progressAuto   = "auto"
	progressAlways = "always"
	progressNever  = "never"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Format       string        `mapstructure:"format"`
	Output       string        `mapstructure:"output"`
	Transpose    bool          `mapstructure:"transpose"`
	Year         int           `mapstructure:"year"`
	Workers      int           `mapstructure:"workers"`
	Progress     string        `mapstructure:"progress"`
	MaxLineSize  int           `mapstructure:"max-line-size"`
	DuckDBPath   string        `mapstructure:"duckdb-path"`
	QueryTimeout time.Duration `mapstructure:"query-timeout"`
	ServeAddr    string        `mapstructure:"serve-addr"`
	LogFile      string        `mapstructure:"log-file"`
	ConfigPath   string        `mapstructure:"-"` // not from config file
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CALLSTAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("format", defaultFormat)
	v.SetDefault("output", "")
	v.SetDefault("transpose", false)
	v.SetDefault("year", 0)
	v.SetDefault("workers", defaultWorkers)
	v.SetDefault("progress", defaultProgress)
	v.SetDefault("max-line-size", defaultMaxLineSize)
	v.SetDefault("duckdb-path", "")
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("serve-addr", "")
	v.SetDefault("log-file", filepath.Join(home, ".local", "state", "callstat", "callstat.log"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "callstat", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	cfg.DuckDBPath = expandHome(home, cfg.DuckDBPath)
	cfg.LogFile = expandHome(home, cfg.LogFile)
	cfg.Output = expandHome(home, cfg.Output)

	return cfg, validateConfig(cfg)
}

func validateConfig(cfg appConfig) error {
	if _, err := report.New(report.Options{Format: cfg.Format}); err != nil {
		return fmt.Errorf("invalid format: %q", cfg.Format)
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("invalid workers: %d", cfg.Workers)
	}
	if cfg.MaxLineSize <= 0 {
		return fmt.Errorf("invalid max-line-size: %d", cfg.MaxLineSize)
	}
	if cfg.Year < 0 || cfg.Year > 9999 {
		return fmt.Errorf("invalid year: %d", cfg.Year)
	}
	switch cfg.Progress {
	case progressAuto, progressAlways, progressNever:
	default:
		return fmt.Errorf("invalid progress mode: %q (want auto, always or never)", cfg.Progress)
	}
	return nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
