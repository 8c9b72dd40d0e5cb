package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCommand_Files(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		kind  string
		file  string
		check func(t *testing.T, c *dataio.Correspondences)
	}{
		{"fundamental", "f.json", func(t *testing.T, c *dataio.Correspondences) {
			assert.Len(t, c.Pairs, 15)
		}},
		{"homography", "h.yaml", func(t *testing.T, c *dataio.Correspondences) {
			assert.Len(t, c.Pairs, 15)
			assert.Len(t, c.Lines, 14)
		}},
		{"trifocal", "t.csv", func(t *testing.T, c *dataio.Correspondences) {
			assert.Len(t, c.Triples, 15)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			_, stderr, err := executeCommand(t, "generate", "--kind", tt.kind, "-n", "15", path)
			require.NoError(t, err)
			assert.Contains(t, stderr, "Wrote 15 "+tt.kind)

			c, err := dataio.ReadFile(path)
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestGenerateCommand_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "essential.json")
	_, _, err := executeCommand(t, "generate", "--kind", "essential", "--intrinsics", "--seed", "4", "--quiet", path)
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "fundamental", path, "--essential", "--format", "json")
	require.NoError(t, err)
	res := decodeResult(t, stdout)
	assert.Equal(t, estimate.KindEssential, res.Kind)
	assert.InDelta(t, res.SingularValues[0], res.SingularValues[1], 1e-9)
}

func TestGenerateCommand_Stdout(t *testing.T) {
	stdout, _, err := executeCommand(t, "generate", "--kind", "fundamental", "-n", "9", "--seed", "2")
	require.NoError(t, err)

	var c dataio.Correspondences
	require.NoError(t, json.Unmarshal([]byte(stdout), &c))
	assert.Equal(t, "fundamental", c.Kind)
	assert.Len(t, c.Pairs, 9)

	again, _, err := executeCommand(t, "generate", "--kind", "fundamental", "-n", "9", "--seed", "2")
	require.NoError(t, err)
	assert.Equal(t, stdout, again)
}

func TestGenerateCorrespondences(t *testing.T) {
	clean, err := generateCorrespondences(estimate.KindFundamental, 10, 3, 0, false)
	require.NoError(t, err)
	noisy, err := generateCorrespondences(estimate.KindFundamental, 10, 3, 1, false)
	require.NoError(t, err)
	assert.Equal(t, clean.Pairs[0].P1, noisy.Pairs[0].P1)
	assert.NotEqual(t, clean.Pairs[0].P2, noisy.Pairs[0].P2)

	calibrated, err := generateCorrespondences(estimate.KindEssential, 10, 3, 0, true)
	require.NoError(t, err)
	require.Len(t, calibrated.K1, 3)
	assert.InDelta(t, 500, calibrated.K1[0][0], 0)

	for _, tc := range []struct {
		kind  estimate.Kind
		n     int
		noise float64
		withK bool
	}{
		{estimate.KindFundamental, 0, 0, false},
		{estimate.KindFundamental, 5, -1, false},
		{estimate.KindHomography, 5, 0, true},
	} {
		_, err := generateCorrespondences(tc.kind, tc.n, 1, tc.noise, tc.withK)
		assert.Error(t, err)
	}
}
