package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"zero size", 0, 256},
		{"small size gets minimum", 9, 256},
		{"exactly one step", 256, 256},
		{"just over", 257, 512},
		{"trifocal system of 50 triples", 200 * 27, 5632},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetFloat64_ZeroedAndSized(t *testing.T) {
	buf := GetFloat64(100)
	require.Len(t, buf, 100)
	for i := range buf {
		buf[i] = 1
	}
	PutFloat64(buf)

	again := GetFloat64(50)
	require.Len(t, again, 50)
	for _, v := range again {
		assert.Equal(t, 0.0, v)
	}
	PutFloat64(again)
	PutFloat64(nil)
	PutFloat64(make([]float64, 10))
}

func TestWorkspacePool_Roundtrip(t *testing.T) {
	ws := GetWorkspace()
	require.NotNil(t, ws)
	m := ws.Matrix(8, 9)
	r, c := m.Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, 9, c)
	PutWorkspace(ws)
	PutWorkspace(nil)
}

func TestWorkspacePool_ConcurrentUse(t *testing.T) {
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers*20)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 20 {
				ws := GetWorkspace()
				a := ws.Matrix(3, 3)
				a.Set(0, 0, float64(i+1))
				a.Set(1, 1, 1)
				a.Set(2, 2, 1)
				if _, err := ws.Decompose(a); err != nil {
					errs <- err
				}
				var d mat.Dense
				d.CloneFrom(a)
				PutWorkspace(ws)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
