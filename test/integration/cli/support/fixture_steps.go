package support

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/synth"
	"github.com/cucumber/godog"
)

// fixtureSeed derives a stable seed from the fixture name.
func fixtureSeed(name string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= 1099511628211
	}
	return h
}

// writeFixture writes a noise-free scene for kind and remembers its truth.
func (testCtx *TestContext) writeFixture(kind, name string, n int) error {
	k, err := estimate.ParseKind(kind)
	if err != nil {
		return err
	}
	g := synth.NewGenerator(fixtureSeed(name))
	corr := &dataio.Correspondences{Kind: string(k)}

	switch k {
	case estimate.KindFundamental:
		scene := g.TwoView(n, false)
		corr.Pairs = scene.Pairs
		testCtx.Truths[name] = scene.F
	case estimate.KindEssential:
		scene := g.TwoView(n, true)
		corr.Pairs = scene.Pairs
		testCtx.Truths[name] = scene.E
	case estimate.KindHomography:
		scene := g.Planar(n)
		corr.Pairs = scene.Pairs
		corr.Lines = scene.Lines
		testCtx.Truths[name] = scene.H
	case estimate.KindTrifocal:
		corr.Triples = g.ThreeView(n, false).Triples
	}

	path := testCtx.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	if err := dataio.WriteFile(path, corr); err != nil {
		return fmt.Errorf("failed to write fixture %s: %w", name, err)
	}
	return nil
}

// aFixtureWithCorrespondences writes a synthetic correspondence file.
func (testCtx *TestContext) aFixtureWithCorrespondences(kind, name string, n int) error {
	return testCtx.writeFixture(kind, name, n)
}

// aDegenerateFixture writes a fundamental file with too few pairs.
func (testCtx *TestContext) aDegenerateFixture(name string) error {
	pairs := make([]geo.AssociatedPair, 3)
	for i := range pairs {
		pairs[i] = geo.AssociatedPair{
			P1: geo.Point2{X: float64(i), Y: 1},
			P2: geo.Point2{X: float64(i), Y: 2},
		}
	}
	return dataio.WriteFile(testCtx.path(name), &dataio.Correspondences{
		Kind:  string(estimate.KindFundamental),
		Pairs: pairs,
	})
}

// aDirectoryWithOneFixtureOfEachKind fills dir with every relation.
func (testCtx *TestContext) aDirectoryWithOneFixtureOfEachKind(dir string) error {
	fixtures := []struct{ kind, name string }{
		{"fundamental", "fundamental.json"},
		{"essential", "essential.yaml"},
		{"homography", "homography.yaml"},
		{"trifocal", "trifocal.csv"},
	}
	for _, f := range fixtures {
		if err := testCtx.writeFixture(f.kind, filepath.Join(dir, f.name), 16); err != nil {
			return err
		}
	}
	return nil
}

// aFileContaining writes raw content, e.g. a config file or malformed input.
func (testCtx *TestContext) aFileContaining(name string, content *godog.DocString) error {
	path := testCtx.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content.Content), 0o600)
}

// RegisterFixtureSteps registers the steps that create input files.
func (testCtx *TestContext) RegisterFixtureSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an? (fundamental|essential|homography|trifocal) fixture "([^"]*)" with (\d+) correspondences$`,
		testCtx.aFixtureWithCorrespondences)
	sc.Step(`^a degenerate fixture "([^"]*)"$`, testCtx.aDegenerateFixture)
	sc.Step(`^a directory "([^"]*)" with one fixture of each kind$`, testCtx.aDirectoryWithOneFixtureOfEachKind)
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileContaining)
}
