// Package dataio reads correspondence files and writes estimation results.
package dataio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Format is a file encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for unknown file encodings.
var ErrUnsupportedFormat = errors.New("unsupported format")

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// IsSupported reports whether path has a correspondence file extension.
func IsSupported(path string) bool {
	_, err := FormatFromPath(path)
	return err == nil
}

// Correspondences is the content of one input file.
type Correspondences struct {
	Kind    string                 `json:"kind,omitempty" yaml:"kind,omitempty"`
	Pairs   []geo.AssociatedPair   `json:"pairs,omitempty" yaml:"pairs,omitempty"`
	Lines   []geo.PairLineNorm     `json:"lines,omitempty" yaml:"lines,omitempty"`
	Triples []geo.AssociatedTriple `json:"triples,omitempty" yaml:"triples,omitempty"`
	K1      [][]float64            `json:"k1,omitempty" yaml:"k1,omitempty"`
	K2      [][]float64            `json:"k2,omitempty" yaml:"k2,omitempty"`
}

// Request converts the file content into an estimation request. kind
// overrides the kind stored in the file; when both are empty the kind is
// inferred from the data.
func (c *Correspondences) Request(kind estimate.Kind) (estimate.Request, error) {
	if kind == "" && c.Kind != "" {
		k, err := estimate.ParseKind(c.Kind)
		if err != nil {
			return estimate.Request{}, err
		}
		kind = k
	}
	if kind == "" {
		if len(c.Triples) > 0 {
			kind = estimate.KindTrifocal
		} else {
			kind = estimate.KindFundamental
		}
	}
	req := estimate.Request{Kind: kind, Pairs: c.Pairs, Lines: c.Lines, Triples: c.Triples}
	var err error
	if req.K1, err = intrinsics(c.K1); err != nil {
		return estimate.Request{}, fmt.Errorf("k1: %w", err)
	}
	if req.K2, err = intrinsics(c.K2); err != nil {
		return estimate.Request{}, fmt.Errorf("k2: %w", err)
	}
	return req, nil
}

func intrinsics(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) != 3 {
		return nil, fmt.Errorf("intrinsics have %d rows, want 3: %w", len(rows), geo.ErrInvalidInput)
	}
	k := mat.NewDense(3, 3, nil)
	for i, r := range rows {
		if len(r) != 3 {
			return nil, fmt.Errorf("intrinsics row %d has %d values, want 3: %w", i, len(r), geo.ErrInvalidInput)
		}
		k.SetRow(i, r)
	}
	return k, nil
}

// ReadFile loads correspondences from path.
func ReadFile(path string) (*Correspondences, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	c, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return c, nil
}

// Decode reads correspondences in the given encoding.
func Decode(r io.Reader, format Format) (*Correspondences, error) {
	var c Correspondences
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&c); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&c); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatCSV:
		return decodeCSV(r)
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}
	return &c, nil
}

// decodeCSV reads x1,y1,x2,y2 rows as pairs and x1,y1,x2,y2,x3,y3 rows as
// triples. A non-numeric first row is treated as a header.
func decodeCSV(r io.Reader) (*Correspondences, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	if len(records) > 0 {
		if _, err := strconv.ParseFloat(records[0][0], 64); err != nil {
			records = records[1:]
		}
	}

	var c Correspondences
	for i, rec := range records {
		vals := make([]float64, len(rec))
		for j, s := range rec {
			if vals[j], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("csv row %d column %d: %w", i+1, j+1, err)
			}
		}
		switch len(vals) {
		case 4:
			c.Pairs = append(c.Pairs, geo.AssociatedPair{
				P1: geo.Point2{X: vals[0], Y: vals[1]},
				P2: geo.Point2{X: vals[2], Y: vals[3]},
			})
		case 6:
			c.Triples = append(c.Triples, geo.AssociatedTriple{
				P1: geo.Point2{X: vals[0], Y: vals[1]},
				P2: geo.Point2{X: vals[2], Y: vals[3]},
				P3: geo.Point2{X: vals[4], Y: vals[5]},
			})
		default:
			return nil, fmt.Errorf("csv row %d has %d columns, want 4 or 6: %w", i+1, len(vals), geo.ErrInvalidInput)
		}
	}
	return &c, nil
}

// Encode writes correspondences. CSV drops lines and intrinsics.
func Encode(w io.Writer, c *Correspondences, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		cw := csv.NewWriter(w)
		f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
		if len(c.Triples) > 0 {
			_ = cw.Write([]string{"x1", "y1", "x2", "y2", "x3", "y3"})
			for _, t := range c.Triples {
				_ = cw.Write([]string{f(t.P1.X), f(t.P1.Y), f(t.P2.X), f(t.P2.Y), f(t.P3.X), f(t.P3.Y)})
			}
		} else {
			_ = cw.Write([]string{"x1", "y1", "x2", "y2"})
			for _, p := range c.Pairs {
				_ = cw.Write([]string{f(p.P1.X), f(p.P1.Y), f(p.P2.X), f(p.P2.Y)})
			}
		}
		cw.Flush()
		return cw.Error()
	}
	return fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
}

// WriteFile writes correspondences to path in the encoding of its extension.
func WriteFile(path string, c *Correspondences) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(f, c, format); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
