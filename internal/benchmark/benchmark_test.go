package benchmark

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuiteRun(t *testing.T) {
	suite := NewSuite()

	suite.Add("success_test", func() error {
		time.Sleep(time.Millisecond)
		return nil
	})

	calls := 0
	suite.Add("error_test", func() error {
		calls++
		if calls == 2 {
			return errors.New("test error")
		}
		return nil
	})

	result := suite.Run("success_test", 5)
	assert.Equal(t, "success_test", result.Name)
	assert.Equal(t, 5, result.Iterations)
	require.NoError(t, result.Error)
	assert.GreaterOrEqual(t, result.PerOp(), time.Millisecond)

	result = suite.Run("error_test", 3)
	require.Error(t, result.Error)
	assert.Equal(t, 1, result.Iterations)
	assert.Contains(t, result.String(), "ERROR - test error")

	result = suite.Run("non_existent", 1)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "not found")
}

func TestSuiteRunAll(t *testing.T) {
	suite := NewSuite()
	suite.Add("fast_test", func() error {
		time.Sleep(time.Millisecond)
		return nil
	})
	suite.Add("slow_test", func() error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	assert.Equal(t, []string{"fast_test", "slow_test"}, suite.Names())

	results := suite.RunAll(3)
	require.Len(t, results, 2)
	assert.Equal(t, results, suite.Results())
	assert.Greater(t, results[1].Duration, results[0].Duration)
}

func TestResultPerOpZeroIterations(t *testing.T) {
	var r Result
	assert.Zero(t, r.PerOp())
	assert.Zero(t, r.BytesPerOp())
	assert.Zero(t, r.AllocsPerOp())
}

func TestSceneRequest(t *testing.T) {
	for _, k := range estimate.Kinds() {
		req, err := SceneRequest(Scene{Kind: k, Size: 12}, 1)
		require.NoError(t, err, k)
		assert.Equal(t, k, req.Kind)
		assert.Equal(t, 12, len(req.Pairs)+len(req.Triples), k)
	}

	_, err := SceneRequest(Scene{Kind: estimate.KindFundamental}, 1)
	require.Error(t, err)
	_, err = SceneRequest(Scene{Kind: "affine", Size: 10}, 1)
	require.Error(t, err)
}

func TestScenes(t *testing.T) {
	scenes := Scenes([]estimate.Kind{estimate.KindFundamental, estimate.KindTrifocal}, []int{10, 50})
	require.Len(t, scenes, 4)
	assert.Equal(t, "fundamental/n=10", scenes[0].Name())
	assert.Equal(t, "trifocal/n=50", scenes[3].Name())
}

func TestEstimationSuite(t *testing.T) {
	pl, err := estimate.NewBuilder().Build()
	require.NoError(t, err)

	scenes := Scenes(estimate.Kinds(), []int{16})
	suite, err := NewEstimationSuite(context.Background(), pl, scenes, 3)
	require.NoError(t, err)

	results := suite.RunAll(2)
	require.Len(t, results, len(estimate.Kinds()))
	for _, r := range results {
		require.NoError(t, r.Error, r.Name)
		assert.Equal(t, 2, r.Iterations)
		assert.Positive(t, r.Duration)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(results)+1)
	assert.Equal(t, "ns_per_op", rows[0][2])
	assert.Equal(t, "fundamental/n=16", rows[1][0])

	buf.Reset()
	WriteText(&buf, results)
	assert.Contains(t, buf.String(), "trifocal/n=16: 2 iterations")
}

func TestEstimationSuiteCancelled(t *testing.T) {
	pl, err := estimate.NewBuilder().Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	suite, err := NewEstimationSuite(ctx, pl, []Scene{{Kind: estimate.KindHomography, Size: 8}}, 1)
	require.NoError(t, err)

	r := suite.Run("homography/n=8", 3)
	require.Error(t, r.Error)
	assert.Zero(t, r.Iterations)
}
