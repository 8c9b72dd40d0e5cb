package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/visualize"
	"golang.org/x/sync/errgroup"
)

// processSingleFile reads one correspondence file and runs the estimation.
func processSingleFile(ctx context.Context, pl *estimate.Pipeline, path string, config *Config,
	logger *slog.Logger) (*estimate.Result, error) {
	c, err := dataio.ReadFile(path)
	if err != nil {
		return nil, err
	}
	req, err := c.Request(config.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res, err := pl.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %s estimation: %w", path, req.Kind, err)
	}

	if config.PlotDir != "" {
		savePlot(res, path, config.PlotDir, logger)
	}
	return res, nil
}

// savePlot writes the residual histogram next to the other plots. Failures
// are logged and do not fail the file.
func savePlot(res *estimate.Result, path, plotDir string, logger *slog.Logger) {
	if err := os.MkdirAll(plotDir, 0o750); err != nil {
		logger.Warn("cannot create plot directory", "dir", plotDir, "error", err)
		return
	}
	base := filepath.Base(path)
	out := filepath.Join(plotDir, strings.TrimSuffix(base, filepath.Ext(base))+"_residuals.png")
	if err := visualize.SaveResidualHistogram(res, out); err != nil {
		logger.Warn("residual plot failed", "file", path, "error", err)
	}
}

// processFilesParallel estimates every file on a bounded errgroup. Without
// ContinueOnError the first failure cancels the remaining work.
func processFilesParallel(ctx context.Context, pl *estimate.Pipeline, files []string, config *Config,
	progress ProgressCallback, logger *slog.Logger) ([]Item, error) {
	items := make([]Item, len(files))
	for i, f := range files {
		items[i].File = f
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	progress.OnStart(len(files))
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := processSingleFile(gctx, pl, path, config, logger)
			n := int(done.Add(1))
			if err != nil {
				items[i].Error = err.Error()
				progress.OnError(n, err)
				if !config.ContinueOnError {
					return err
				}
				logger.Warn("skipping file", "file", path, "error", err)
			} else {
				items[i].Result = res
			}
			progress.OnProgress(n, len(files))
			return nil
		})
	}

	err := g.Wait()
	progress.OnComplete()
	if err != nil {
		return items, err
	}
	if err := ctx.Err(); err != nil {
		return items, err
	}
	return items, nil
}
