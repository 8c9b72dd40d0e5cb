package estimate

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/homography"
	"github.com/MeKo-Tech/mvgeo/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewBuilder().WithPerPointResiduals(true).Build()
	require.NoError(t, err)
	return p
}

func TestBuilder_Validate(t *testing.T) {
	tests := []struct {
		name    string
		b       *Builder
		wantErr bool
	}{
		{"defaults", NewBuilder(), false},
		{"zero tolerance", NewBuilder().WithRankTolerance(0), true},
		{"tolerance too large", NewBuilder().WithRankTolerance(1), true},
		{"bad fallback", NewBuilder().WithFallbackScale(0), true},
		{"custom", NewBuilder().WithRankTolerance(1e-10).WithNormalize(false).WithFallbackScale(2).WithRefineIterations(10).WithLogger(nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Build()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuilder_WithConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RefineIterations = 17
	p, err := NewBuilder().WithConfig(cfg).Build()
	require.NoError(t, err)
	assert.Equal(t, 17, p.Config().RefineIterations)
	assert.Equal(t, 17, p.Info()["refine_iterations"])
}

func TestBuilder_NonPositiveIterationsKeepDefault(t *testing.T) {
	for _, n := range []int{0, -5} {
		p, err := NewBuilder().WithRefineIterations(n).Build()
		require.NoError(t, err, n)
		assert.Equal(t, homography.DefaultIterations, p.Config().RefineIterations, n)
	}
}

func TestRun_Fundamental(t *testing.T) {
	tv := synth.NewGenerator(1).TwoView(20, false)
	res, err := newPipeline(t).Fundamental(context.Background(), tv.Pairs)
	require.NoError(t, err)

	assert.Equal(t, KindFundamental, res.Kind)
	assert.Equal(t, 2, res.Rank)
	assert.Equal(t, 20, res.Correspondences)
	assert.Len(t, res.SystemSingular, 9)
	assert.Len(t, res.PerPoint, 20)
	assert.Equal(t, "sampson", res.Residuals.Metric)
	assert.Less(t, res.Residuals.Max, 1e-12)
	assert.Contains(t, res.Processing.Stages, "solve")
	assert.NotNil(t, res.Dense())
}

func TestRun_EssentialWithIntrinsics(t *testing.T) {
	tv := synth.NewGenerator(2).TwoView(20, false)
	p := newPipeline(t)
	res, err := p.Run(context.Background(), Request{Kind: KindEssential, Pairs: tv.Pairs, K1: tv.Cam1.K, K2: tv.Cam2.K})
	require.NoError(t, err)
	assert.InDelta(t, 1, res.SingularValues[0], 1e-10)
	assert.InDelta(t, 1, res.SingularValues[1], 1e-10)
	assert.Equal(t, 2, res.Rank)

	_, err = p.Run(context.Background(), Request{Kind: KindEssential, Pairs: tv.Pairs, K1: mat.NewDense(3, 3, nil)})
	assert.ErrorIs(t, err, geo.ErrInvalidInput)
}

func TestRun_Homography(t *testing.T) {
	pl := synth.NewGenerator(3).Planar(12)
	p := newPipeline(t)

	res, err := p.Homography(context.Background(), pl.Pairs, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rank)
	assert.InDelta(t, 1, res.SingularValues[1], 1e-10)
	assert.Less(t, res.Residuals.Max, 1e-6)
	assert.Contains(t, res.Processing.Stages, "refine")

	withLines, err := p.Homography(context.Background(), pl.Pairs, pl.Lines)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(res.Dense(), withLines.Dense(), 1e-8))
}

func TestRun_Trifocal(t *testing.T) {
	tv := synth.NewGenerator(4).ThreeView(15, false)
	res, err := newPipeline(t).Trifocal(context.Background(), tv.Triples)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Rank)
	assert.Len(t, res.Tensor, 3)
	assert.Len(t, res.Epipoles, 2)
	assert.Equal(t, "algebraic", res.Residuals.Metric)
	require.NotNil(t, res.TrifocalTensor())
	assert.InDelta(t, 1, res.TrifocalTensor().Norm(), 1e-12)
}

func TestRun_Errors(t *testing.T) {
	p := newPipeline(t)
	_, err := p.Run(context.Background(), Request{Kind: "quadrifocal"})
	assert.ErrorIs(t, err, geo.ErrInvalidInput)

	_, err = p.Fundamental(context.Background(), nil)
	assert.ErrorIs(t, err, geo.ErrInvalidInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Fundamental(ctx, synth.NewGenerator(1).TwoView(10, false).Pairs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ConcurrentCalls(t *testing.T) {
	p := newPipeline(t)
	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tv := synth.NewGenerator(uint64(i + 1)).TwoView(10+i, false)
			res, err := p.Fundamental(context.Background(), tv.Pairs)
			if err == nil && res.Rank != 2 {
				err = assert.AnError
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Trifocal ")
	require.NoError(t, err)
	assert.Equal(t, KindTrifocal, k)

	_, err = ParseKind("affine")
	assert.ErrorIs(t, err, geo.ErrInvalidInput)
}

func TestStats(t *testing.T) {
	s := Stats([]float64{1, 2, 3, math.Inf(1)})
	assert.Equal(t, 1, s.NonFinite)
	assert.InDelta(t, 2, s.Mean, 1e-12)
	assert.InDelta(t, 3, s.Max, 1e-12)
	assert.InDelta(t, math.Sqrt(14.0/3), s.RMS, 1e-12)
	assert.InDelta(t, 1, s.StdDev, 1e-12)

	assert.Equal(t, ResidualStats{}, Stats(nil))
}
