// Package testutils lays out synthetic dataset trees for tests.
package testutils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

// TempDir creates a temporary directory under the test's own temp dir and fails the test if it
// cannot.
func TempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp(t.TempDir(), pattern)
	test.That(t, err, test.ShouldBeNil)
	return dir
}

// ResourceDirs are the per-resource directories DatasetTree creates.
var ResourceDirs = []string{"videos", "cameras", "motions", "keypoints2d", "keypoints3d", "bbox2d"}

// DatasetTree creates {root}/{fps}FPS with every resource directory and a session_list.txt
// holding sessions, and returns the root.
func DatasetTree(t *testing.T, fps int, sessions ...string) string {
	t.Helper()
	root := TempDir(t, "freeman")
	fpsDir := FPSDir(root, fps)
	for _, dir := range ResourceDirs {
		test.That(t, os.MkdirAll(filepath.Join(fpsDir, dir), 0o750), test.ShouldBeNil)
	}
	WriteLines(t, filepath.Join(fpsDir, "session_list.txt"), sessions...)
	return root
}

// FPSDir is {root}/{fps}FPS.
func FPSDir(root string, fps int) string {
	return filepath.Join(root, fmt.Sprintf("%dFPS", fps))
}

// WriteLines writes one line per entry, creating parent directories.
func WriteLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	WriteFile(t, path, []byte(content))
}

// WriteJSON marshals v to path.
func WriteJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	test.That(t, err, test.ShouldBeNil)
	WriteFile(t, path, data)
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	test.That(t, os.MkdirAll(filepath.Dir(path), 0o750), test.ShouldBeNil)
	test.That(t, os.WriteFile(path, data, 0o600), test.ShouldBeNil)
}

// Touch creates an empty file at path.
func Touch(t *testing.T, path string) {
	t.Helper()
	WriteFile(t, path, nil)
}
