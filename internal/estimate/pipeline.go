// Package estimate is the entry point shared by the CLI, the HTTP server and
// batch processing. It selects the estimator for a relation, runs it with a
// pooled workspace and reports diagnostics.
package estimate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/mvgeo/internal/homography"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"github.com/MeKo-Tech/mvgeo/internal/normalize"
)

// Config holds the numeric settings of every estimator.
type Config struct {
	RankTolerance    float64
	Normalize        bool
	FallbackScale    float64
	RefineIterations int
	// KeepPerPoint keeps the individual residuals in the result.
	KeepPerPoint bool
}

// DefaultConfig returns the default estimation settings.
func DefaultConfig() Config {
	return Config{
		RankTolerance:    linalg.DefaultRankTolerance,
		Normalize:        true,
		FallbackScale:    normalize.FallbackScale,
		RefineIterations: homography.DefaultIterations,
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg    Config
	logger *slog.Logger
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithRankTolerance sets the relative tolerance of the trifocal rank test.
func (b *Builder) WithRankTolerance(tol float64) *Builder {
	b.cfg.RankTolerance = tol
	return b
}

// WithNormalize toggles coordinate conditioning.
func (b *Builder) WithNormalize(on bool) *Builder {
	b.cfg.Normalize = on
	return b
}

// WithFallbackScale sets the normalization scale for coincident points.
func (b *Builder) WithFallbackScale(s float64) *Builder {
	b.cfg.FallbackScale = s
	return b
}

// WithRefineIterations bounds the homography refinement. Values <= 0 keep
// the default.
func (b *Builder) WithRefineIterations(n int) *Builder {
	b.cfg.RefineIterations = n
	return b
}

// WithPerPointResiduals keeps the individual residuals in every result.
func (b *Builder) WithPerPointResiduals(on bool) *Builder {
	b.cfg.KeepPerPoint = on
	return b
}

// WithLogger sets the logger passed to the estimators.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Config returns the builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane.
func (b *Builder) Validate() error {
	if b.cfg.RankTolerance <= 0 || b.cfg.RankTolerance >= 1 {
		return fmt.Errorf("rank tolerance must be in (0, 1), got %g", b.cfg.RankTolerance)
	}
	if b.cfg.FallbackScale <= 0 {
		return errors.New("fallback scale must be > 0")
	}
	return nil
}

// Build validates the configuration and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.cfg.RefineIterations <= 0 {
		b.cfg.RefineIterations = homography.DefaultIterations
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: b.cfg, logger: logger}, nil
}

// Pipeline runs estimations. It is safe for concurrent use: every call takes
// its own workspace from the pool.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Info returns key pipeline properties.
func (p *Pipeline) Info() map[string]any {
	kinds := make([]string, 0, len(Kinds()))
	for _, k := range Kinds() {
		kinds = append(kinds, string(k))
	}
	return map[string]any{
		"rank_tolerance":    p.cfg.RankTolerance,
		"normalize":         p.cfg.Normalize,
		"fallback_scale":    p.cfg.FallbackScale,
		"refine_iterations": p.cfg.RefineIterations,
		"relations":         kinds,
	}
}
