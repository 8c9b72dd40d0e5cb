package cmd

import (
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/spf13/cobra"
)

// trifocalCmd estimates a trifocal tensor.
var trifocalCmd = &cobra.Command{
	Use:   "trifocal FILE",
	Short: "Estimate the trifocal tensor from point triples",
	Long: `Estimate the trifocal tensor relating three views from at least 7 point
triples. The linear estimate fixes the epipoles, then the tensor is
re-estimated so that it is geometrically valid.

Examples:
  mvgeo trifocal triples.json
  mvgeo trifocal triples.csv --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plot, _ := cmd.Flags().GetString("plot")
		return runEstimateJob(cmd, estimateJob{
			kind: estimate.KindTrifocal,
			path: args[0],
			plot: plot,
		})
	},
}

func init() {
	rootCmd.AddCommand(trifocalCmd)
	trifocalCmd.Flags().String("plot", "", "write a residual histogram PNG to this path")
}
