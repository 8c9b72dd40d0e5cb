// Package batch estimates relations for many correspondence files in parallel.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoFiles is returned when discovery finds nothing to process.
var ErrNoFiles = errors.New("no correspondence files found")

// ProcessBatch discovers the files under paths and estimates each of them.
// With ContinueOnError a failed file is recorded in its Item; otherwise the
// first failure aborts the batch and is returned with the partial items.
func ProcessBatch(ctx context.Context, paths []string, config *Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	files, err := discoverFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	pl, err := buildPipeline(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build estimation pipeline: %w", err)
	}

	start := time.Now()
	items, err := processFilesParallel(ctx, pl, files, config, progressFor(config), logger)
	res := &Result{
		Items:       items,
		Duration:    time.Since(start),
		WorkerCount: config.Workers,
	}
	if err != nil {
		return res, fmt.Errorf("batch processing failed: %w", err)
	}
	logger.Info("Batch finished", "files", len(files), "failed", res.Failed(), "duration", res.Duration)
	return res, nil
}
