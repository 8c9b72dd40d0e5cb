package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/mvgeo/internal/config"
	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/visualize"
	"github.com/spf13/cobra"
)

// estimateJob describes one estimating command invocation.
type estimateJob struct {
	kind estimate.Kind
	path string
	// overlay and plot are optional PNG destinations.
	overlay string
	plot    string
	// mutate adjusts the request after it was read from the file.
	mutate func(*estimate.Request)
	// configure adjusts the pipeline settings.
	configure func(*estimate.Config)
}

// runEstimateJob reads the correspondences, estimates and writes the result.
func runEstimateJob(cmd *cobra.Command, job estimateJob) error {
	cfg := GetConfig()
	logger := slog.Default()

	corr, err := dataio.ReadFile(job.path)
	if err != nil {
		return err
	}
	req, err := corr.Request(job.kind)
	if err != nil {
		return fmt.Errorf("%s: %w", job.path, err)
	}
	if job.mutate != nil {
		job.mutate(&req)
	}

	ecfg := cfg.ToEstimateConfig()
	if job.plot != "" {
		ecfg.KeepPerPoint = true
	}
	if job.configure != nil {
		job.configure(&ecfg)
	}
	pl, err := estimate.NewBuilder().WithConfig(ecfg).WithLogger(logger).Build()
	if err != nil {
		return fmt.Errorf("invalid estimation settings: %w", err)
	}

	res, err := pl.Run(commandContext(cmd), req)
	if err != nil {
		return fmt.Errorf("%s estimation failed: %w", req.Kind, err)
	}
	logger.Debug("Estimated relation", "file", job.path, "kind", string(res.Kind), "rank", res.Rank)

	if err := writeResult(cmd.OutOrStdout(), cfg, res); err != nil {
		return err
	}

	if job.overlay != "" {
		if err := saveOverlay(res, req, job.overlay); err != nil {
			return err
		}
	}
	if job.plot != "" {
		if err := visualize.SaveResidualHistogram(res, job.plot); err != nil {
			return fmt.Errorf("failed to save residual plot: %w", err)
		}
	}
	return nil
}

// writeResult writes res to output.file or to w.
func writeResult(w io.Writer, cfg *config.Config, res *estimate.Result) error {
	format, err := dataio.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	if cfg.Output.File == "" {
		return dataio.WriteResult(w, res, format, cfg.Output.Precision)
	}

	f, err := os.Create(cfg.Output.File)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := dataio.WriteResult(f, res, format, cfg.Output.Precision); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func saveOverlay(res *estimate.Result, req estimate.Request, path string) error {
	if res.Kind != estimate.KindFundamental && res.Kind != estimate.KindEssential {
		return fmt.Errorf("overlay needs a fundamental or essential matrix, got %s", res.Kind)
	}
	if req.K1 != nil || req.K2 != nil {
		return errors.New("overlay draws pixel observations and cannot be used with intrinsics")
	}
	opts := visualize.DefaultOverlayOptions()
	opts.Label = fmt.Sprintf("%s rank %d", res.Kind, res.Rank)
	img, err := visualize.EpipolarOverlay(res.Dense(), req.Pairs, opts)
	if err != nil {
		return fmt.Errorf("failed to render overlay: %w", err)
	}
	if err := visualize.SavePNG(img, path); err != nil {
		return fmt.Errorf("failed to save overlay: %w", err)
	}
	return nil
}

// commandContext returns the command context or a background one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
