package dataio

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"gopkg.in/yaml.v3"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("output format %q: %w", s, ErrUnsupportedFormat)
}

// WriteResult encodes res. precision applies to the text format only.
func WriteResult(w io.Writer, res *estimate.Result, format Format, precision int) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		_, err := io.WriteString(w, RenderText(res, precision))
		return err
	}
	return fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
}

// RenderText renders res for a terminal.
func RenderText(res *estimate.Result, precision int) string {
	if precision <= 0 {
		precision = 6
	}
	num := func(v float64) string { return strconv.FormatFloat(v, 'g', precision, 64) }

	var b strings.Builder
	fmt.Fprintf(&b, "%s", res.Kind)
	if res.ID != "" {
		fmt.Fprintf(&b, " [%s]", res.ID)
	}
	fmt.Fprintf(&b, " from %d correspondences\n", res.Correspondences)

	writeMatrix := func(name string, m [][]float64) {
		fmt.Fprintf(&b, "%s:\n", name)
		for _, row := range m {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprintf("%*s", precision+8, num(v))
			}
			fmt.Fprintf(&b, "  %s\n", strings.Join(cells, " "))
		}
	}
	if len(res.Matrix) > 0 {
		writeMatrix("matrix", res.Matrix)
	}
	for i, t := range res.Tensor {
		writeMatrix(fmt.Sprintf("T%d", i+1), t)
	}
	for i, e := range res.Epipoles {
		fmt.Fprintf(&b, "epipole e%d: (%s, %s, %s)\n", i+2, num(e.X), num(e.Y), num(e.Z))
	}

	sv := make([]string, len(res.SingularValues))
	for i, v := range res.SingularValues {
		sv[i] = num(v)
	}
	fmt.Fprintf(&b, "singular values: %s\n", strings.Join(sv, " "))
	fmt.Fprintf(&b, "rank: %d\n", res.Rank)
	fmt.Fprintf(&b, "%s residual: mean %s rms %s max %s\n",
		res.Residuals.Metric, num(res.Residuals.Mean), num(res.Residuals.RMS), num(res.Residuals.Max))
	if res.Residuals.NonFinite > 0 {
		fmt.Fprintf(&b, "non-finite residuals: %d\n", res.Residuals.NonFinite)
	}
	return b.String()
}
