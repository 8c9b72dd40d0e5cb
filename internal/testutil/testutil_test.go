package testutil

import (
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestProjectRoot(t *testing.T) {
	root, err := ProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
	assert.True(t, DirExists(filepath.Join(root, "internal", "testutil")))
}

func TestCheckLayout(t *testing.T) {
	err := checkLayout(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "go.mod missing")
}

func TestFixtureInSubdirectory(t *testing.T) {
	dir := t.TempDir()
	f := WriteThreeViewFixture(t, dir, filepath.Join("scenes", "b", "tv.json"), 10, 4)

	assert.True(t, DirExists(filepath.Join(dir, "scenes", "b")))
	assert.True(t, FileExists(f.Path))
	assert.False(t, DirExists(f.Path))
	assert.False(t, FileExists(filepath.Join(dir, "scenes", "missing.json")))
}

func TestWriteFixtureSet(t *testing.T) {
	dir := t.TempDir()
	fixtures := WriteFixtureSet(t, dir)
	require.Len(t, fixtures, 3)

	for _, f := range fixtures {
		c, err := dataio.ReadFile(f.Path)
		require.NoError(t, err, f.Name)
		req, err := c.Request("")
		require.NoError(t, err)
		assert.Equal(t, f.Kind, req.Kind, f.Name)
	}
}

func TestSameUpToScale(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(2, 2, []float64{-2, -4, -6, -8})
	c := mat.NewDense(2, 2, []float64{1, 2, 3, 5})
	assert.True(t, SameUpToScale(a, b, 1e-12))
	assert.False(t, SameUpToScale(a, c, 1e-6))
}
