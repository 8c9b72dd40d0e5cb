package benchmark

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/synth"
)

// Scene is one estimation workload: a relation and a correspondence count.
type Scene struct {
	Kind estimate.Kind
	Size int
}

// Name identifies the scene in results, e.g. "homography/n=100".
func (s Scene) Name() string {
	return fmt.Sprintf("%s/n=%d", s.Kind, s.Size)
}

// SceneRequest builds a noise free request for s from seed.
func SceneRequest(s Scene, seed uint64) (estimate.Request, error) {
	if s.Size <= 0 {
		return estimate.Request{}, fmt.Errorf("scene %s: size must be positive", s.Name())
	}
	g := synth.NewGenerator(seed)
	req := estimate.Request{Kind: s.Kind}
	switch s.Kind {
	case estimate.KindFundamental:
		req.Pairs = g.TwoView(s.Size, false).Pairs
	case estimate.KindEssential:
		req.Pairs = g.TwoView(s.Size, true).Pairs
	case estimate.KindHomography:
		req.Pairs = g.Planar(s.Size).Pairs
	case estimate.KindTrifocal:
		req.Triples = g.ThreeView(s.Size, false).Triples
	default:
		return estimate.Request{}, fmt.Errorf("scene %s: unknown relation", s.Name())
	}
	return req, nil
}

// Scenes returns every combination of kinds and sizes.
func Scenes(kinds []estimate.Kind, sizes []int) []Scene {
	out := make([]Scene, 0, len(kinds)*len(sizes))
	for _, k := range kinds {
		for _, n := range sizes {
			out = append(out, Scene{Kind: k, Size: n})
		}
	}
	return out
}

// NewEstimationSuite registers one benchmark per scene. Requests are built
// up front so that only the estimation itself is timed.
func NewEstimationSuite(ctx context.Context, pl *estimate.Pipeline, scenes []Scene, seed uint64) (*Suite, error) {
	suite := NewSuite()
	for _, sc := range scenes {
		req, err := SceneRequest(sc, seed)
		if err != nil {
			return nil, err
		}
		suite.Add(sc.Name(), func() error {
			_, err := pl.Run(ctx, req)
			return err
		})
	}
	return suite, nil
}
