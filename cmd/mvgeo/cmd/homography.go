package cmd

import (
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/spf13/cobra"
)

// homographyCmd estimates a plane induced homography.
var homographyCmd = &cobra.Command{
	Use:   "homography FILE",
	Short: "Estimate a homography from point pairs",
	Long: `Estimate the homography H with p2 ~ H·p1 from at least 4 point pairs.
The normalized linear solution is refined by minimising the transfer error
and then scaled and signed so that the first correspondence maps exactly.

With --line the first line correspondence of the input file fixes scale and
sign instead of the first point.

Examples:
  mvgeo homography plane.json
  mvgeo homography plane.yaml --line --format yaml
  mvgeo homography plane.csv --refine-iterations 50`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		useLine, _ := cmd.Flags().GetBool("line")
		plot, _ := cmd.Flags().GetString("plot")

		job := estimateJob{
			kind: estimate.KindHomography,
			path: args[0],
			plot: plot,
			mutate: func(req *estimate.Request) {
				if !useLine {
					req.Lines = nil
				}
			},
		}
		if cmd.Flags().Changed("refine-iterations") {
			n, _ := cmd.Flags().GetInt("refine-iterations")
			job.configure = func(c *estimate.Config) { c.RefineIterations = n }
		}
		return runEstimateJob(cmd, job)
	},
}

func init() {
	rootCmd.AddCommand(homographyCmd)
	homographyCmd.Flags().Bool("line", false, "adjust scale and sign with the first line correspondence")
	homographyCmd.Flags().Int("refine-iterations", 200, "maximum refinement iterations (<= 0 keeps the default)")
	homographyCmd.Flags().String("plot", "", "write a residual histogram PNG to this path")
}
