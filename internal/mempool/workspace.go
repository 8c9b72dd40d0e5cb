package mempool

import (
	"sync"

	"github.com/MeKo-Tech/mvgeo/internal/linalg"
)

// Workspaces and float64 scratch buffers for the estimation hot paths.
// A workspace handed out by GetWorkspace belongs to one goroutine until it
// is returned.

var (
	workspaces = sync.Pool{New: func() any { return linalg.NewWorkspace() }}

	float64Pools sync.Map // key: size class (int), value: *sync.Pool
)

// GetWorkspace takes a workspace from the pool.
func GetWorkspace() *linalg.Workspace {
	ws, ok := workspaces.Get().(*linalg.Workspace)
	if !ok || ws == nil {
		return linalg.NewWorkspace()
	}
	return ws
}

// PutWorkspace returns ws to the pool. It is safe to pass nil.
func PutWorkspace(ws *linalg.Workspace) {
	if ws == nil {
		return
	}
	workspaces.Put(ws)
}

// sizeClass rounds n up to a multiple of 256 elements.
func sizeClass(n int) int {
	const step = 256
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func float64Pool(cls int) *sync.Pool {
	pAny, _ := float64Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float64, cls) }})
	return pAny.(*sync.Pool)
}

// GetFloat64 returns a zeroed buffer of length n. Return it with PutFloat64.
func GetFloat64(n int) []float64 {
	cls := sizeClass(n)
	buf, ok := float64Pool(cls).Get().([]float64)
	if !ok || cap(buf) < cls {
		buf = make([]float64, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// PutFloat64 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat64(buf []float64) {
	if buf == nil {
		return
	}
	// buffers are filed under the class they can fully serve
	cls := sizeClass(cap(buf))
	if cls > cap(buf) {
		cls -= 256
	}
	if cls <= 0 {
		return
	}
	float64Pool(cls).Put(buf[:cap(buf)]) //nolint:staticcheck
}
