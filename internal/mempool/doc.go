// Package mempool pools linear algebra workspaces and scratch buffers so that
// parallel estimation does not allocate per call.
package mempool
