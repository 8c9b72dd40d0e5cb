// Package testutil writes correspondence fixtures and locates the module
// root for tests.
package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// layout lists paths that identify the mvgeo module root.
var layout = []string{"go.mod", filepath.Join("cmd", "mvgeo"), filepath.Join("internal", "estimate")}

// ProjectRoot walks up from this package to the directory holding go.mod and
// checks that it is the mvgeo module.
func ProjectRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("locate testutil source: no caller information")
	}
	for dir := filepath.Dir(file); ; {
		if FileExists(filepath.Join(dir, "go.mod")) {
			return dir, checkLayout(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod above %s", filepath.Dir(file))
		}
		dir = parent
	}
}

func checkLayout(root string) error {
	for _, p := range layout {
		if !FileExists(filepath.Join(root, p)) {
			return fmt.Errorf("%s is not the mvgeo module: %s missing", root, p)
		}
	}
	return nil
}

// EnsureDir creates path and its parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists reports whether path is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// fixturePath joins dir and name and creates the parent directories, so
// fixture names may contain subdirectories.
func fixturePath(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	return path
}
