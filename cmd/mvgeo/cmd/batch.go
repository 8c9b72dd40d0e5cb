package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/MeKo-Tech/mvgeo/internal/batch"
	"github.com/MeKo-Tech/mvgeo/internal/config"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command for parallel estimation.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Estimate relations for many correspondence files in parallel",
	Long: `Estimate the relation stored in each correspondence file. Directories are
scanned for .json, .yaml, .yml and .csv files. The relation is taken from the
"kind" field of each file (or inferred from its data) unless --kind is given.

Examples:
  mvgeo batch data/
  mvgeo batch data/ --recursive --workers 8
  mvgeo batch a.json b.yaml --format json --output results.json
  mvgeo batch scenes/ --kind homography --continue-on-error --plot-dir plots/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatchCommand,
}

// configToBatchConfig maps centralized configuration to batch.Config.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	batchConfig := &batch.Config{
		Estimation: cfg.ToEstimateConfig(),
		Format:     cfg.Output.Format,
		OutputFile: cfg.Output.File,
		PlotDir:    cfg.Output.PlotDir,
		Progress:   cmd.ErrOrStderr(),
	}

	if cmd.Flags().Changed("kind") {
		s, _ := cmd.Flags().GetString("kind")
		kind, err := estimate.ParseKind(s)
		if err != nil {
			return nil, err
		}
		batchConfig.Kind = kind
	}

	// batch.output_dir collects the results file when no output file is given
	if batchConfig.OutputFile == "" && cfg.Batch.OutputDir != "" {
		batchConfig.OutputFile = filepath.Join(cfg.Batch.OutputDir, "results."+resultExtension(batchConfig.Format))
	}

	if cmd.Flags().Changed("plot-dir") {
		batchConfig.PlotDir, _ = cmd.Flags().GetString("plot-dir")
	}

	batchConfig.Workers = cfg.Batch.Workers
	if cmd.Flags().Changed("workers") {
		batchConfig.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if batchConfig.Workers <= 0 {
		batchConfig.Workers = runtime.NumCPU()
	}

	batchConfig.ContinueOnError = cfg.Batch.ContinueOnError
	if cmd.Flags().Changed("continue-on-error") {
		batchConfig.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}

	// File discovery and progress settings are CLI-only
	batchConfig.Recursive, _ = cmd.Flags().GetBool("recursive")
	batchConfig.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	batchConfig.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	batchConfig.ShowProgress, _ = cmd.Flags().GetBool("progress")
	batchConfig.Quiet, _ = cmd.Flags().GetBool("quiet")
	batchConfig.ProgressInterval, _ = cmd.Flags().GetDuration("progress-interval")

	return batchConfig, nil
}

func resultExtension(format string) string {
	switch format {
	case "json", "yaml", "csv":
		return format
	}
	return "txt"
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	batchConfig, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}

	if batchConfig.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(batchConfig.OutputFile), 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	result, err := batch.ProcessBatch(commandContext(cmd), args, batchConfig, slog.Default())
	if err != nil {
		return err
	}

	if err := result.SaveResults(cmd.OutOrStdout(), batchConfig.Format, batchConfig.OutputFile,
		cfg.Output.Precision, batchConfig.Quiet); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	result.PrintStats(cmd.ErrOrStderr(), batchConfig.Quiet)

	if failed := result.Failed(); failed > 0 {
		slog.Warn("Some files could not be estimated", "failed", failed, "total", len(result.Items))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("kind", "", "relation to estimate for every file (default: per file)")
	batchCmd.Flags().String("plot-dir", "", "directory for per-file residual histograms")

	// Parallel processing flags
	batchCmd.Flags().IntP("workers", "w", 0, fmt.Sprintf("number of parallel workers (default: %d)", runtime.NumCPU()))
	batchCmd.Flags().Bool("continue-on-error", false, "record failing files and keep going")

	// File discovery flags
	batchCmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	batchCmd.Flags().StringSlice("include", []string{}, "file patterns to include (e.g. *.json)")
	batchCmd.Flags().StringSlice("exclude", []string{}, "file patterns to exclude")

	// Progress flags
	batchCmd.Flags().Bool("progress", false, "show progress bar")
	batchCmd.Flags().Bool("quiet", false, "suppress progress output and statistics")
	batchCmd.Flags().Duration("progress-interval", 500*time.Millisecond, "progress update interval")
}
