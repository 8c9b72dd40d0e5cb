package cmd

import (
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/spf13/cobra"
)

// fundamentalCmd estimates a fundamental or essential matrix.
var fundamentalCmd = &cobra.Command{
	Use:   "fundamental FILE",
	Short: "Estimate the fundamental (or essential) matrix from point pairs",
	Long: `Estimate the fundamental matrix relating two views with the normalized
eight-point algorithm. At least 8 point pairs are required. The linear
solution is projected onto the rank 2 matrices.

With --essential the pairs are treated as normalized camera coordinates, or
mapped through the intrinsics k1/k2 from the input file, and the result is
projected onto the essential manifold (two equal singular values).

Examples:
  mvgeo fundamental pairs.json
  mvgeo fundamental pairs.csv --format json --output f.json
  mvgeo fundamental calibrated.yaml --essential
  mvgeo fundamental pairs.json --overlay lines.png --plot residuals.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := estimate.KindFundamental
		if essential, _ := cmd.Flags().GetBool("essential"); essential {
			kind = estimate.KindEssential
		}
		overlay, _ := cmd.Flags().GetString("overlay")
		plot, _ := cmd.Flags().GetString("plot")

		return runEstimateJob(cmd, estimateJob{
			kind:    kind,
			path:    args[0],
			overlay: overlay,
			plot:    plot,
		})
	},
}

func init() {
	rootCmd.AddCommand(fundamentalCmd)
	fundamentalCmd.Flags().Bool("essential", false, "estimate the essential matrix instead")
	fundamentalCmd.Flags().String("overlay", "", "write an epipolar line overlay PNG to this path")
	fundamentalCmd.Flags().String("plot", "", "write a residual histogram PNG to this path")
}
