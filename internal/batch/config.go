package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Kind overrides the relation stored in each file. Empty means per-file.
	Kind       estimate.Kind
	Estimation estimate.Config

	Format     string
	OutputFile string
	// PlotDir receives a residual histogram per file when set.
	PlotDir string

	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
	Progress         io.Writer
}

// Item is the outcome for one input file.
type Item struct {
	File   string           `json:"file" yaml:"file"`
	Result *estimate.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result holds the result of batch processing.
type Result struct {
	Items       []Item
	Duration    time.Duration
	WorkerCount int
}

// Failed counts the items that did not produce a result.
func (r *Result) Failed() int {
	n := 0
	for _, it := range r.Items {
		if it.Result == nil {
			n++
		}
	}
	return n
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string, precision int) (string, error) {
	return formatBatchResults(r.Items, format, precision)
}

// SaveResults writes the formatted results to outputFile, or to w when no
// file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, precision int, quiet bool) error {
	output, err := r.FormatResults(format, precision)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

// Summary renders processing statistics with locale-aware number formatting.
func (r *Result) Summary(tag language.Tag) string {
	p := message.NewPrinter(tag)
	total := len(r.Items)
	failed := r.Failed()

	var throughput float64
	var avg time.Duration
	if r.Duration > 0 && total > 0 {
		throughput = float64(total) / r.Duration.Seconds()
		avg = r.Duration / time.Duration(total)
	}

	var correspondences int
	for _, it := range r.Items {
		if it.Result != nil {
			correspondences += it.Result.Correspondences
		}
	}

	return p.Sprintf("\nProcessing Statistics:\n") +
		p.Sprintf("  Total files: %d\n", total) +
		p.Sprintf("  Processed: %d\n", total-failed) +
		p.Sprintf("  Failed: %d\n", failed) +
		p.Sprintf("  Correspondences: %d\n", correspondences) +
		p.Sprintf("  Workers: %d\n", r.WorkerCount) +
		p.Sprintf("  Duration: %v\n", r.Duration.Round(time.Millisecond)) +
		p.Sprintf("  Avg per file: %v\n", avg.Round(time.Microsecond)) +
		p.Sprintf("  Throughput: %.1f files/sec\n", throughput)
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	_, _ = fmt.Fprint(w, r.Summary(language.English))
}
