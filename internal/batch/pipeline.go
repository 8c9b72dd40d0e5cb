package batch

import (
	"log/slog"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
)

// buildPipeline creates the estimation pipeline from the batch configuration.
func buildPipeline(config *Config, logger *slog.Logger) (*estimate.Pipeline, error) {
	cfg := config.Estimation
	if cfg == (estimate.Config{}) {
		cfg = estimate.DefaultConfig()
	}
	// plots need the individual residuals
	if config.PlotDir != "" {
		cfg.KeepPerPoint = true
	}
	return estimate.NewBuilder().WithConfig(cfg).WithLogger(logger).Build()
}

// progressFor picks the progress reporter for the configuration.
func progressFor(config *Config) ProgressCallback {
	if !config.ShowProgress || config.Quiet {
		return NoOpProgressCallback{}
	}
	cb := NewConsoleProgressCallback(config.Progress, "Estimating: ")
	if config.ProgressInterval > 0 {
		cb = cb.WithUpdateInterval(config.ProgressInterval)
	}
	return cb
}
