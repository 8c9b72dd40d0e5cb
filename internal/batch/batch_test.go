package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func testConfig() *Config {
	return &Config{Estimation: estimate.DefaultConfig(), Workers: 2}
}

func TestProcessBatch_AllKinds(t *testing.T) {
	dir := t.TempDir()
	fixtures := testutil.WriteFixtureSet(t, dir)

	res, err := ProcessBatch(context.Background(), []string{dir}, testConfig(), nil)
	require.NoError(t, err)
	require.Len(t, res.Items, len(fixtures))
	assert.Zero(t, res.Failed())

	kinds := map[estimate.Kind]bool{}
	for _, it := range res.Items {
		require.NotNil(t, it.Result, it.File)
		assert.Empty(t, it.Error)
		kinds[it.Result.Kind] = true
	}
	assert.True(t, kinds[estimate.KindFundamental])
	assert.True(t, kinds[estimate.KindHomography])
	assert.True(t, kinds[estimate.KindTrifocal])
}

func TestProcessBatch_KindOverride(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTwoViewFixture(t, dir, "a.json", 20, 7)

	cfg := testConfig()
	cfg.Kind = estimate.KindEssential
	res, err := ProcessBatch(context.Background(), []string{dir}, cfg, nil)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, estimate.KindEssential, res.Items[0].Result.Kind)
}

func TestProcessBatch_ContinueOnError(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTwoViewFixture(t, dir, "good.json", 20, 1)
	bad := testutil.WriteDegenerateFixture(t, dir, "bad.json")

	cfg := testConfig()
	cfg.ContinueOnError = true
	res, err := ProcessBatch(context.Background(), []string{dir}, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed())
	for _, it := range res.Items {
		if it.File == bad.Path {
			assert.Nil(t, it.Result)
			assert.Contains(t, it.Error, "bad.json")
		}
	}
}

func TestProcessBatch_StopOnError(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDegenerateFixture(t, dir, "bad.json")

	res, err := ProcessBatch(context.Background(), []string{dir}, testConfig(), nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Failed())
}

func TestProcessBatch_NoFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	_, err := ProcessBatch(context.Background(), []string{dir}, testConfig(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = ProcessBatch(context.Background(), []string{filepath.Join(dir, "missing")}, testConfig(), nil)
	assert.Error(t, err)
}

func TestProcessBatch_Cancelled(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFixtureSet(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProcessBatch(ctx, []string{dir}, testConfig(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessBatch_Plots(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTwoViewFixture(t, dir, "scene.json", 20, 3)
	plots := filepath.Join(dir, "plots")

	cfg := testConfig()
	cfg.PlotDir = plots
	res, err := ProcessBatch(context.Background(), []string{filepath.Join(dir, "scene.json")}, cfg, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Items[0].Result.PerPoint)
	assert.True(t, testutil.FileExists(filepath.Join(plots, "scene_residuals.png")))
}

type recordingProgress struct {
	mu       sync.Mutex
	started  int
	progress []int
	errors   int
	complete bool
}

func (r *recordingProgress) OnStart(total int) { r.started = total }
func (r *recordingProgress) OnProgress(current, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, current)
}
func (r *recordingProgress) OnComplete() { r.complete = true }
func (r *recordingProgress) OnError(int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func TestProcessFilesParallel_Progress(t *testing.T) {
	dir := t.TempDir()
	fixtures := testutil.WriteFixtureSet(t, dir)
	files := make([]string, len(fixtures))
	for i, f := range fixtures {
		files[i] = f.Path
	}
	cfg := testConfig()
	pl, err := buildPipeline(cfg, nil)
	require.NoError(t, err)

	rec := &recordingProgress{}
	items, err := processFilesParallel(context.Background(), pl, files, cfg, rec, discardLogger())
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, 3, rec.started)
	assert.ElementsMatch(t, []int{1, 2, 3}, rec.progress)
	assert.Zero(t, rec.errors)
	assert.True(t, rec.complete)
}

func TestResultFormatting(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFixtureSet(t, dir)
	testutil.WriteDegenerateFixture(t, dir, "bad.json")

	cfg := testConfig()
	cfg.ContinueOnError = true
	res, err := ProcessBatch(context.Background(), []string{dir}, cfg, nil)
	require.NoError(t, err)

	js, err := res.FormatResults("json", 0)
	require.NoError(t, err)
	var doc struct {
		Files []Item `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(js), &doc))
	assert.Len(t, doc.Files, 4)

	ym, err := res.FormatResults("yaml", 0)
	require.NoError(t, err)
	assert.Contains(t, ym, "files:")

	csv, err := res.FormatResults("csv", 0)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "file,kind,correspondences"))

	txt, err := res.FormatResults("text", 4)
	require.NoError(t, err)
	assert.Contains(t, txt, "# ")
	assert.Contains(t, txt, "error: ")

	_, err = res.FormatResults("xml", 0)
	assert.Error(t, err)
}

func TestSaveResults(t *testing.T) {
	res := &Result{Items: []Item{{File: "a.json", Error: "boom"}}}
	var out bytes.Buffer
	require.NoError(t, res.SaveResults(&out, "text", "", 0, false))
	assert.Contains(t, out.String(), "error: boom")

	path := filepath.Join(t.TempDir(), "out.csv")
	out.Reset()
	require.NoError(t, res.SaveResults(&out, "csv", path, 0, false))
	assert.Contains(t, out.String(), "Results written to")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "a.json")
}

func TestSummary(t *testing.T) {
	items := make([]Item, 1500)
	for i := range items {
		items[i] = Item{File: "f", Result: &estimate.Result{Correspondences: 1000}}
	}
	items[0] = Item{File: "f", Error: "x"}
	res := &Result{Items: items, Duration: 3 * time.Second, WorkerCount: 4}

	en := res.Summary(language.English)
	assert.Contains(t, en, "Total files: 1,500")
	assert.Contains(t, en, "Failed: 1\n")
	assert.Contains(t, en, "Correspondences: 1,499,000")
	assert.Contains(t, en, "Throughput: 500.0 files/sec")

	de := res.Summary(language.German)
	assert.Contains(t, de, "Total files: 1.500")

	var out bytes.Buffer
	res.PrintStats(&out, true)
	assert.Empty(t, out.String())
	res.PrintStats(&out, false)
	assert.Contains(t, out.String(), "Processing Statistics")
}

func TestConsoleProgressCallback(t *testing.T) {
	var out bytes.Buffer
	cb := NewConsoleProgressCallback(&out, "Estimating: ").WithWidth(10).WithUpdateInterval(0)
	cb.OnStart(4)
	cb.OnProgress(2, 4)
	cb.OnError(3, errors.New("bad pairs"))
	cb.OnProgress(4, 4)
	cb.OnComplete()

	s := out.String()
	assert.Contains(t, s, "0/4 (0.0%)")
	assert.Contains(t, s, "2/4 (50.0%)")
	assert.Contains(t, s, "Error at item 3: bad pairs")
	assert.Contains(t, s, "Completed in")
}

func TestProgressFor(t *testing.T) {
	assert.IsType(t, NoOpProgressCallback{}, progressFor(&Config{}))
	assert.IsType(t, NoOpProgressCallback{}, progressFor(&Config{ShowProgress: true, Quiet: true}))
	assert.IsType(t, &ConsoleProgressCallback{}, progressFor(&Config{ShowProgress: true}))
}

func TestMultiAndLogProgress(t *testing.T) {
	var buf bytes.Buffer
	rec := &recordingProgress{}
	logCb := NewLogProgressCallback(newJSONLogger(&buf), 0).WithInterval(1)
	m := NewMultiProgressCallback(rec, logCb)
	m.OnStart(2)
	m.OnProgress(1, 2)
	m.OnError(2, errors.New("x"))
	m.OnComplete()

	assert.Equal(t, 2, rec.started)
	assert.Equal(t, 1, rec.errors)
	assert.Contains(t, buf.String(), "Batch progress")
	assert.Contains(t, buf.String(), "Batch item failed")
}
