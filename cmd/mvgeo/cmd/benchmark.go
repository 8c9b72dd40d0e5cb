package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/mvgeo/internal/benchmark"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Time the estimators on synthetic scenes",
	Long: `Run every selected estimator repeatedly on noise free synthetic scenes and
report the mean time, bytes and allocations per estimate. The estimation
settings come from the configuration like for the other commands.

Examples:
  mvgeo benchmark
  mvgeo benchmark --kind homography --sizes 8,100,1000 --iterations 200
  mvgeo benchmark --format csv > timings.csv`,
	Args: cobra.NoArgs,
	RunE: runBenchmarkCommand,
}

func runBenchmarkCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	kinds, err := benchmarkKinds(cmd)
	if err != nil {
		return err
	}
	sizes, _ := cmd.Flags().GetIntSlice("sizes")
	iterations, _ := cmd.Flags().GetInt("iterations")
	seed, _ := cmd.Flags().GetUint64("seed")
	if len(sizes) == 0 {
		return errors.New("at least one scene size is needed")
	}
	if iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	pl, err := estimate.NewBuilder().WithConfig(cfg.ToEstimateConfig()).Build()
	if err != nil {
		return fmt.Errorf("invalid estimation settings: %w", err)
	}
	suite, err := benchmark.NewEstimationSuite(commandContext(cmd), pl, benchmark.Scenes(kinds, sizes), seed)
	if err != nil {
		return err
	}

	slog.Info("Running benchmarks", "scenes", len(suite.Names()), "iterations", iterations)
	results := suite.RunAll(iterations)

	w := cmd.OutOrStdout()
	switch cfg.Output.Format {
	case "csv":
		err = benchmark.WriteCSV(w, results)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(benchmarkRows(results))
	case "yaml":
		err = yaml.NewEncoder(w).Encode(benchmarkRows(results))
	default:
		benchmark.WriteText(w, results)
	}
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("benchmark %s failed: %w", r.Name, r.Error)
		}
	}
	return nil
}

// benchmarkRow is the encoded form of one result.
type benchmarkRow struct {
	Name        string `json:"name" yaml:"name"`
	Iterations  int    `json:"iterations" yaml:"iterations"`
	NsPerOp     int64  `json:"ns_per_op" yaml:"ns_per_op"`
	BytesPerOp  uint64 `json:"bytes_per_op" yaml:"bytes_per_op"`
	AllocsPerOp uint64 `json:"allocs_per_op" yaml:"allocs_per_op"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

func benchmarkRows(results []benchmark.Result) []benchmarkRow {
	rows := make([]benchmarkRow, len(results))
	for i, r := range results {
		rows[i] = benchmarkRow{
			Name:        r.Name,
			Iterations:  r.Iterations,
			NsPerOp:     r.PerOp().Nanoseconds(),
			BytesPerOp:  r.BytesPerOp(),
			AllocsPerOp: r.AllocsPerOp(),
		}
		if r.Error != nil {
			rows[i].Error = r.Error.Error()
		}
	}
	return rows
}

// benchmarkKinds parses --kind, defaulting to every relation.
func benchmarkKinds(cmd *cobra.Command) ([]estimate.Kind, error) {
	names, _ := cmd.Flags().GetStringSlice("kind")
	if len(names) == 0 {
		return estimate.Kinds(), nil
	}
	kinds := make([]estimate.Kind, 0, len(names))
	for _, n := range names {
		k, err := estimate.ParseKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)
	benchmarkCmd.Flags().StringSlice("kind", nil, "relations to time (default all)")
	benchmarkCmd.Flags().IntSlice("sizes", []int{20, 100, 500}, "correspondence counts per scene")
	benchmarkCmd.Flags().IntP("iterations", "n", 20, "estimates per scene")
	benchmarkCmd.Flags().Uint64("seed", 1, "seed for the synthetic scenes")
}
