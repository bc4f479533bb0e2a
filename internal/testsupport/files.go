package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Pattern returns size bytes of the content WriteFile produces. Each byte depends on
// its offset, so a resumed transfer that skips or repeats a range is detectable.
func Pattern(size int64) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// WriteFile creates path, and its parent directories, holding Pattern(size). A size
// <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, Pattern(max(size, 1)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
