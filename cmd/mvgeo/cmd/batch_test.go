package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchOutput struct {
	Files []struct {
		File   string           `json:"file"`
		Result *estimate.Result `json:"result"`
		Error  string           `json:"error"`
	} `json:"files"`
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	fixtures := testutil.WriteFixtureSet(t, dir)

	stdout, stderr, err := executeCommand(t, "batch", dir, "--format", "json", "--workers", "2")
	require.NoError(t, err)

	var out batchOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out), stdout)
	require.Len(t, out.Files, len(fixtures))

	kinds := map[string]estimate.Kind{}
	for _, f := range out.Files {
		require.NotNil(t, f.Result, f.Error)
		kinds[filepath.Base(f.File)] = f.Result.Kind
	}
	for _, fx := range fixtures {
		assert.Equal(t, fx.Kind, kinds[fx.Name], fx.Name)
	}
	assert.Contains(t, stderr, "Processing Statistics:")
	assert.Contains(t, stderr, "Total files: 3")
}

func TestBatchCommand_KindOverrideAndPatterns(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTwoViewFixture(t, dir, "a.json", 12, 1)
	testutil.WriteTwoViewFixture(t, dir, "b.json", 12, 2)
	testutil.WriteThreeViewFixture(t, dir, "c.csv", 12, 3)

	stdout, stderr, err := executeCommand(t, "batch", dir,
		"--include", "*.json", "--kind", "essential", "--format", "csv", "--quiet")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "Processing Statistics:")

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "file,kind,"))
	for _, l := range lines[1:] {
		assert.Contains(t, l, ",essential,12,")
	}
}

func TestBatchCommand_Recursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	testutil.WriteTwoViewFixture(t, dir, "top.json", 10, 1)
	testutil.WriteTwoViewFixture(t, sub, "deep.json", 10, 2)

	stdout, _, err := executeCommand(t, "batch", dir, "--format", "json", "--quiet")
	require.NoError(t, err)
	var flat batchOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &flat))
	assert.Len(t, flat.Files, 1)

	stdout, _, err = executeCommand(t, "batch", dir, "-r", "--format", "json", "--quiet")
	require.NoError(t, err)
	var deep batchOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &deep))
	assert.Len(t, deep.Files, 2)
}

func TestBatchCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTwoViewFixture(t, dir, "good.json", 12, 1)
	testutil.WriteDegenerateFixture(t, dir, "bad.json")

	_, _, err := executeCommand(t, "batch", dir, "--quiet", "--workers", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs at least 8")

	stdout, _, err := executeCommand(t, "batch", dir, "--quiet", "--continue-on-error", "--format", "json")
	require.NoError(t, err)
	var out batchOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out.Files, 2)
	failed := 0
	for _, f := range out.Files {
		if f.Result == nil {
			failed++
			assert.Contains(t, f.Error, "needs at least 8")
		}
	}
	assert.Equal(t, 1, failed)

	_, _, err = executeCommand(t, "batch", t.TempDir(), "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no correspondence files")

	_, _, err = executeCommand(t, "batch", dir, "--kind", "affine")
	require.Error(t, err)
}

func TestBatchCommand_OutputFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WritePlanarFixture(t, dir, "plane.yaml", 10, 6)
	out := filepath.Join(t.TempDir(), "results", "batch.yaml")
	plots := filepath.Join(t.TempDir(), "plots")

	stdout, _, err := executeCommand(t, "batch", dir, "--format", "yaml", "--output", out, "--plot-dir", plots)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Results written to")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kind: homography")

	entries, err := os.ReadDir(plots)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestResultExtension(t *testing.T) {
	assert.Equal(t, "json", resultExtension("json"))
	assert.Equal(t, "csv", resultExtension("csv"))
	assert.Equal(t, "txt", resultExtension("text"))
	assert.Equal(t, "txt", resultExtension(""))
}
