package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"gopkg.in/yaml.v3"
)

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(items []Item, format string, precision int) (string, error) {
	switch format {
	case "json":
		return formatJSON(items)
	case "yaml":
		return formatYAML(items)
	case "csv":
		return formatCSV(items)
	case "", "text":
		return formatText(items, precision), nil
	}
	return "", fmt.Errorf("batch output %q: %w", format, dataio.ErrUnsupportedFormat)
}

type batchDocument struct {
	Files []Item `json:"files" yaml:"files"`
}

func formatJSON(items []Item) (string, error) {
	bts, err := json.MarshalIndent(batchDocument{Files: items}, "", "  ")
	return string(bts), err
}

func formatYAML(items []Item) (string, error) {
	bts, err := yaml.Marshal(batchDocument{Files: items})
	return string(bts), err
}

// formatCSV writes one summary row per file.
func formatCSV(items []Item) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	header := []string{"file", "kind", "correspondences", "rank", "metric", "mean", "rms", "max", "error"}
	if err := writer.Write(header); err != nil {
		return "", err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }
	for _, it := range items {
		row := []string{it.File, "", "", "", "", "", "", "", it.Error}
		if r := it.Result; r != nil {
			row[1] = string(r.Kind)
			row[2] = strconv.Itoa(r.Correspondences)
			row[3] = strconv.Itoa(r.Rank)
			row[4] = r.Residuals.Metric
			row[5] = f(r.Residuals.Mean)
			row[6] = f(r.Residuals.RMS)
			row[7] = f(r.Residuals.Max)
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

func formatText(items []Item, precision int) string {
	var output strings.Builder
	for i, it := range items {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(fmt.Sprintf("# %s\n", it.File))
		switch {
		case it.Result != nil:
			output.WriteString(dataio.RenderText(it.Result, precision))
		case it.Error != "":
			output.WriteString(fmt.Sprintf("error: %s\n", it.Error))
		default:
			output.WriteString("skipped\n")
		}
	}
	return output.String()
}
