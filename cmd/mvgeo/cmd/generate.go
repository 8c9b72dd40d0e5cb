package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/synth"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

// generateCmd writes synthetic correspondence files.
var generateCmd = &cobra.Command{
	Use:   "generate [FILE]",
	Short: "Generate synthetic correspondences for testing",
	Long: `Generate correspondences from a random synthetic scene. The file encoding
follows the extension of FILE (.json, .yaml, .yml, .csv). Without FILE the
data is written to stdout as JSON, or YAML with --format yaml.

Kinds:
  fundamental  point pairs in pixel coordinates
  essential    point pairs in normalized camera coordinates, or pixel
               coordinates plus k1/k2 with --intrinsics
  homography   point pairs and line pairs on a plane
  trifocal     point triples in pixel coordinates

Examples:
  mvgeo generate --kind fundamental -n 50 pairs.json
  mvgeo generate --kind homography --noise 0.5 plane.yaml
  mvgeo generate --kind essential --intrinsics calibrated.json
  mvgeo generate --kind trifocal --seed 7 triples.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kindStr, _ := cmd.Flags().GetString("kind")
		kind, err := estimate.ParseKind(kindStr)
		if err != nil {
			return err
		}
		n, _ := cmd.Flags().GetInt("count")
		seed, _ := cmd.Flags().GetUint64("seed")
		noise, _ := cmd.Flags().GetFloat64("noise")
		withK, _ := cmd.Flags().GetBool("intrinsics")

		corr, err := generateCorrespondences(kind, n, seed, noise, withK)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			if err := dataio.WriteFile(args[0], corr); err != nil {
				return err
			}
			if !isQuiet(cmd) {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d %s correspondences to %s\n", n, kind, args[0])
			}
			return nil
		}

		format := dataio.FormatJSON
		if GetConfig().Output.Format == string(dataio.FormatYAML) {
			format = dataio.FormatYAML
		}
		return dataio.Encode(cmd.OutOrStdout(), corr, format)
	},
}

// generateCorrespondences builds a synthetic scene of n observations.
func generateCorrespondences(kind estimate.Kind, n int, seed uint64, noise float64, withK bool) (*dataio.Correspondences, error) {
	if n <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", n)
	}
	if noise < 0 {
		return nil, fmt.Errorf("noise must not be negative, got %g", noise)
	}
	if withK && kind != estimate.KindEssential {
		return nil, fmt.Errorf("--intrinsics only applies to essential, not %s", kind)
	}

	g := synth.NewGenerator(seed)
	corr := &dataio.Correspondences{Kind: string(kind)}

	switch kind {
	case estimate.KindFundamental:
		corr.Pairs = g.TwoView(n, false).Pairs
	case estimate.KindEssential:
		scene := g.TwoView(n, !withK)
		corr.Pairs = scene.Pairs
		if withK {
			corr.K1 = denseRows(scene.Cam1.K)
			corr.K2 = denseRows(scene.Cam2.K)
		}
	case estimate.KindHomography:
		scene := g.Planar(n)
		corr.Pairs = scene.Pairs
		corr.Lines = scene.Lines
	case estimate.KindTrifocal:
		corr.Triples = g.ThreeView(n, false).Triples
	}

	if noise > 0 && len(corr.Pairs) > 0 {
		corr.Pairs = g.AddNoise(corr.Pairs, noise)
	}
	return corr, nil
}

func denseRows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}

func isQuiet(cmd *cobra.Command) bool {
	q, err := cmd.Flags().GetBool("quiet")
	return err == nil && q
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().String("kind", "fundamental", "relation the data is generated for: fundamental, essential, homography, trifocal")
	generateCmd.Flags().IntP("count", "n", 20, "number of correspondences")
	generateCmd.Flags().Uint64("seed", 1, "random seed")
	generateCmd.Flags().Float64("noise", 0, "standard deviation of Gaussian noise added to the second view of pairs")
	generateCmd.Flags().Bool("intrinsics", false, "essential only: pixel observations plus k1/k2")
	generateCmd.Flags().Bool("quiet", false, "do not report the written file")
}
