package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"github.com/MeKo-Tech/mvgeo/internal/normalize"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		Verbose:       false,
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,
		Estimation: EstimationConfig{
			RankTolerance:    linalg.DefaultRankTolerance,
			Normalize:        true,
			FallbackScale:    normalize.FallbackScale,
			RefineIterations: 200,
		},
		Output: OutputConfig{
			Format:    "text",
			Precision: 6,
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxBodyKB:         4096,
			TimeoutSec:        30,
			ShutdownTimeout:   10,
			RequestsPerSecond: 10,
			Burst:             20,
			RequestsPerHour:   10000,
			MaxRequestsPerDay: 50000,
			MaxDataPerDay:     512 * 1024 * 1024,
		},
		Batch: BatchConfig{
			Workers:         runtime.NumCPU(),
			ContinueOnError: false,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "yaml", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if c.Output.Precision < 0 || c.Output.Precision > 17 {
		return fmt.Errorf("invalid output precision: %d (must be between 0 and 17)", c.Output.Precision)
	}

	if err := c.Estimation.Validate(); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxBodyKB <= 0 {
		return fmt.Errorf("invalid max body size: %d (must be positive)", c.Server.MaxBodyKB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimitEnabled && c.Server.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid requests per second: %g (must be positive)", c.Server.RequestsPerSecond)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.LogFile != "" && c.LogMaxSizeMB <= 0 {
		return fmt.Errorf("invalid log max size: %d (must be positive)", c.LogMaxSizeMB)
	}
	return nil
}

// Validate checks the estimator settings.
func (e EstimationConfig) Validate() error {
	if e.RankTolerance <= 0 || e.RankTolerance >= 1 {
		return fmt.Errorf("invalid estimation.rank_tolerance: %g (must be in (0, 1))", e.RankTolerance)
	}
	if e.FallbackScale <= 0 {
		return fmt.Errorf("invalid estimation.fallback_scale: %g (must be positive)", e.FallbackScale)
	}
	return nil
}

// ToEstimateConfig converts the config to the estimation pipeline settings.
func (c *Config) ToEstimateConfig() estimate.Config {
	return estimate.Config{
		RankTolerance:    c.Estimation.RankTolerance,
		Normalize:        c.Estimation.Normalize,
		FallbackScale:    c.Estimation.FallbackScale,
		RefineIterations: c.Estimation.RefineIterations,
		KeepPerPoint:     c.Estimation.PerPoint,
	}
}

// SlogLevel maps the configured level to slog. Verbose wins over log_level.
func (c *Config) SlogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogWriter returns the destination for structured logs: a rotating file
// when log_file is set, fallback otherwise.
func (c *Config) LogWriter(fallback io.Writer) io.Writer {
	if c.LogFile == "" {
		if fallback == nil {
			return os.Stderr
		}
		return fallback
	}
	return &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
	}
}

// NewLogger builds the JSON logger described by the configuration.
func (c *Config) NewLogger(fallback io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(c.LogWriter(fallback), &slog.HandlerOptions{
		Level: c.SlogLevel(),
	}))
}
