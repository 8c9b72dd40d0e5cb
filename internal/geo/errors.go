package geo

import "errors"

// ErrNotConverged is returned when a singular value decomposition fails to
// converge. It is a per-call failure: callers may retry with another subset.
var ErrNotConverged = errors.New("geo: singular value decomposition did not converge")

// ErrInvalidInput is returned when a caller violates a precondition such as
// supplying too few correspondences or mismatched matrix sizes.
var ErrInvalidInput = errors.New("geo: invalid input")
