package linalg

import "gonum.org/v1/gonum/mat"

// Workspace holds the scratch buffers of one estimation call.
// A workspace must not be shared between concurrent calls.
type Workspace struct {
	Decomposer Decomposer

	buf []float64
}

// NewWorkspace returns a workspace with a gonum backend.
func NewWorkspace() *Workspace {
	return &Workspace{Decomposer: NewGonum()}
}

// Matrix returns a zeroed rows×cols matrix backed by the workspace buffer.
// The matrix is only valid until the next call to Matrix.
func (w *Workspace) Matrix(rows, cols int) *mat.Dense {
	n := rows * cols
	if cap(w.buf) < n {
		w.buf = make([]float64, n)
	}
	w.buf = w.buf[:n]
	clear(w.buf)
	return mat.NewDense(rows, cols, w.buf)
}

// Cap reports the size of the backing buffer.
func (w *Workspace) Cap() int { return cap(w.buf) }

// Decompose runs the workspace decomposer, creating a gonum one if unset.
func (w *Workspace) Decompose(a mat.Matrix) (*Decomposition, error) {
	if w.Decomposer == nil {
		w.Decomposer = NewGonum()
	}
	return w.Decomposer.Decompose(a)
}
