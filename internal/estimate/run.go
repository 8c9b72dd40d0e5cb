package estimate

import (
	"context"
	"fmt"
	"math"

	"github.com/MeKo-Tech/mvgeo/internal/common"
	"github.com/MeKo-Tech/mvgeo/internal/epipolar"
	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/homography"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"github.com/MeKo-Tech/mvgeo/internal/mempool"
	"github.com/MeKo-Tech/mvgeo/internal/trifocal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Run executes req. Cancellation is only checked before the fit starts;
// a single fit is short and not interruptible.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ws := mempool.GetWorkspace()
	defer mempool.PutWorkspace(ws)

	stages := common.NewStages()
	var (
		res *Result
		err error
	)
	switch req.Kind {
	case KindFundamental:
		res, err = p.epipolar(ws, epipolar.Fundamental, req.Pairs, stages)
	case KindEssential:
		pairs, nerr := calibrate(req)
		if nerr != nil {
			return nil, nerr
		}
		res, err = p.epipolar(ws, epipolar.Essential, pairs, stages)
	case KindHomography:
		res, err = p.homography(ws, req, stages)
	case KindTrifocal:
		res, err = p.trifocal(ws, req.Triples, stages)
	default:
		return nil, fmt.Errorf("unknown relation %q: %w", req.Kind, geo.ErrInvalidInput)
	}
	if err != nil {
		p.logger.Debug("Estimation failed", "kind", string(req.Kind), "error", err)
		return nil, err
	}

	res.Kind = req.Kind
	res.Processing.TotalNs = stages.Total().Nanoseconds()
	res.Processing.Stages = stages.Nanos()
	p.logger.Debug("Estimation finished",
		"kind", string(req.Kind),
		"correspondences", res.Correspondences,
		"rank", res.Rank,
		"residual_rms", res.Residuals.RMS,
		"stages", stages.String())
	return res, nil
}

// Fundamental estimates F from pixel pairs.
func (p *Pipeline) Fundamental(ctx context.Context, pairs []geo.AssociatedPair) (*Result, error) {
	return p.Run(ctx, Request{Kind: KindFundamental, Pairs: pairs})
}

// Essential estimates E from normalized pairs.
func (p *Pipeline) Essential(ctx context.Context, pairs []geo.AssociatedPair) (*Result, error) {
	return p.Run(ctx, Request{Kind: KindEssential, Pairs: pairs})
}

// Homography estimates H, using lines[0] for the sign when present.
func (p *Pipeline) Homography(ctx context.Context, pairs []geo.AssociatedPair, lines []geo.PairLineNorm) (*Result, error) {
	return p.Run(ctx, Request{Kind: KindHomography, Pairs: pairs, Lines: lines})
}

// Trifocal estimates the tensor from triples.
func (p *Pipeline) Trifocal(ctx context.Context, triples []geo.AssociatedTriple) (*Result, error) {
	return p.Run(ctx, Request{Kind: KindTrifocal, Triples: triples})
}

func (p *Pipeline) epipolar(ws *linalg.Workspace, mode epipolar.Mode, pairs []geo.AssociatedPair, st *common.Stages) (*Result, error) {
	est := epipolar.NewEstimator(mode,
		epipolar.WithWorkspace(ws),
		epipolar.WithNormalize(p.cfg.Normalize),
		epipolar.WithFallbackScale(p.cfg.FallbackScale),
		epipolar.WithLogger(p.logger),
	)
	sol, err := est.Solve(pairs)
	if err != nil {
		return nil, err
	}
	st.Mark("solve")

	res, err := p.matrixResult(ws, sol.Matrix)
	if err != nil {
		return nil, err
	}
	res.SystemSingular = sol.SystemSingular
	res.Correspondences = len(pairs)

	r := mempool.GetFloat64(len(pairs))
	defer mempool.PutFloat64(r)
	for i, pr := range pairs {
		r[i] = epipolar.SampsonError(sol.Matrix, pr)
	}
	p.fillStats(res, r, "sampson")
	st.Mark("residuals")
	return res, nil
}

func (p *Pipeline) homography(ws *linalg.Workspace, req Request, st *common.Stages) (*Result, error) {
	est := homography.NewEstimator(
		homography.WithWorkspace(ws),
		homography.WithNormalize(p.cfg.Normalize),
		homography.WithFallbackScale(p.cfg.FallbackScale),
		homography.WithIterations(p.cfg.RefineIterations),
		homography.WithLogger(p.logger),
	)
	h, err := est.Linear(req.Pairs)
	if err != nil {
		return nil, err
	}
	st.Mark("linear")
	if len(req.Pairs) > homography.MinPairs {
		if h, err = est.Refine(h, req.Pairs); err != nil {
			return nil, err
		}
		st.Mark("refine")
	}
	if len(req.Lines) > 0 {
		h, err = est.Adjuster().AdjustLine(h, req.Lines[0])
	} else {
		h, err = est.Adjuster().AdjustPoint(h, req.Pairs[0])
	}
	if err != nil {
		return nil, err
	}
	st.Mark("adjust")

	res, err := p.matrixResult(ws, h)
	if err != nil {
		return nil, err
	}
	res.Correspondences = len(req.Pairs)
	p.fillStats(res, homography.TransferErrors(h, req.Pairs), "transfer")
	st.Mark("residuals")
	return res, nil
}

func (p *Pipeline) trifocal(ws *linalg.Workspace, triples []geo.AssociatedTriple, st *common.Stages) (*Result, error) {
	est := trifocal.NewEstimator(
		trifocal.WithWorkspace(ws),
		trifocal.WithNormalize(p.cfg.Normalize),
		trifocal.WithFallbackScale(p.cfg.FallbackScale),
		trifocal.WithTolerance(p.cfg.RankTolerance),
		trifocal.WithLogger(p.logger),
	)
	sol, err := est.Estimate(triples)
	if err != nil {
		return nil, err
	}
	st.Mark("solve")

	res := &Result{
		Epipoles:        []geo.Vec3{sol.E2, sol.E3},
		SystemSingular:  sol.SystemSingular,
		Rank:            sol.Rank,
		Correspondences: len(triples),
	}
	for i := range 3 {
		res.Tensor = append(res.Tensor, rows(sol.Tensor.T[i]))
	}
	dec, err := ws.Decompose(mat.NewDense(3, 9, sol.Tensor.Vector().RawVector().Data))
	if err != nil {
		return nil, err
	}
	res.SingularValues = dec.S

	r := mempool.GetFloat64(len(triples))
	defer mempool.PutFloat64(r)
	for i, tr := range triples {
		v := trifocal.Residual(sol.Tensor, tr)
		r[i] = floats.Norm(v[:], 2)
	}
	p.fillStats(res, r, "algebraic")
	st.Mark("residuals")
	return res, nil
}

func (p *Pipeline) matrixResult(ws *linalg.Workspace, m *mat.Dense) (*Result, error) {
	dec, err := ws.Decompose(m)
	if err != nil {
		return nil, err
	}
	return &Result{
		Matrix:         rows(m),
		SingularValues: dec.S,
		Rank:           dec.Rank(p.cfg.RankTolerance),
	}, nil
}

func (p *Pipeline) fillStats(res *Result, r []float64, metric string) {
	res.Residuals = Stats(r)
	res.Residuals.Metric = metric
	if p.cfg.KeepPerPoint {
		res.PerPoint = make([]float64, len(r))
		for i, v := range r {
			// JSON has no infinity
			if math.IsInf(v, 0) || math.IsNaN(v) {
				v = -1
			}
			res.PerPoint[i] = v
		}
	}
}

// Stats summarizes residuals. Non-finite values are counted and left out.
func Stats(r []float64) ResidualStats {
	finite := make([]float64, 0, len(r))
	for _, v := range r {
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	s := ResidualStats{NonFinite: len(r) - len(finite)}
	if len(finite) == 0 {
		return s
	}
	s.Mean = stat.Mean(finite, nil)
	s.RMS = math.Sqrt(floats.Dot(finite, finite) / float64(len(finite)))
	s.Max = floats.Max(finite)
	if len(finite) > 1 {
		s.StdDev = stat.StdDev(finite, nil)
	}
	return s
}

// calibrate maps essential matrix pairs through K⁻¹ when intrinsics are given.
func calibrate(req Request) ([]geo.AssociatedPair, error) {
	if req.K1 == nil && req.K2 == nil {
		return req.Pairs, nil
	}
	k1, k2 := req.K1, req.K2
	if k1 == nil {
		k1 = k2
	}
	if k2 == nil {
		k2 = k1
	}
	var k1inv, k2inv mat.Dense
	if err := k1inv.Inverse(k1); err != nil {
		return nil, fmt.Errorf("invert K1: %v: %w", err, geo.ErrInvalidInput)
	}
	if err := k2inv.Inverse(k2); err != nil {
		return nil, fmt.Errorf("invert K2: %v: %w", err, geo.ErrInvalidInput)
	}
	out := make([]geo.AssociatedPair, len(req.Pairs))
	for i, p := range req.Pairs {
		out[i] = geo.AssociatedPair{
			P1: geo.MulVec(&k1inv, p.P1.Homogeneous()).Point(),
			P2: geo.MulVec(&k2inv, p.P2.Homogeneous()).Point(),
		}
	}
	return out, nil
}
