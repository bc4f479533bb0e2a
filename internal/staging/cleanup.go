package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ytarchive/internal/logging"
)

// CleanupResult contains the outcome of an orphan sweep.
type CleanupResult struct {
	Removed []string
	Bytes   int64
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// VideoID returns the video id a staged file belongs to. Staged names always start
// with the id followed by a dot: "<id>.mp4", "<id>.jpg", "<id>.f137.mp4.part".
func VideoID(name string) string {
	id, _, _ := strings.Cut(filepath.Base(name), ".")
	return id
}

// CleanOrphaned removes files in dirs whose video id is not in owned. owned holds the
// ids of records whose downloaded flag is set; every other staged file is left over
// from an interrupted download or a record that no longer exists.
func CleanOrphaned(ctx context.Context, dirs []string, owned map[string]struct{}, logger *slog.Logger) CleanupResult {
	result := CleanupResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
			}
			continue
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				return result
			}
			if entry.IsDir() {
				continue
			}
			if _, ok := owned[VideoID(entry.Name())]; ok {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			var size int64
			if info, err := entry.Info(); err == nil {
				size = info.Size()
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				logger.Warn("failed to remove orphaned staging file",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "staging_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
				continue
			}
			result.Removed = append(result.Removed, path)
			result.Bytes += size
			logger.Info("removed orphaned staging file",
				logging.String("path", path),
				logging.Int64("size_bytes", size),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}
	return result
}

// Usage summarizes the files under dirs.
type Usage struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// DiskUsage counts the files and bytes currently staged in dirs. Missing directories
// count as empty.
func DiskUsage(dirs ...string) (Usage, error) {
	var usage Usage
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return usage, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			usage.Files++
			usage.Bytes += info.Size()
		}
	}
	return usage, nil
}
