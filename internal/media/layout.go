package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Layout maps video ids to their local cache files under Root.
type Layout struct {
	Root string
}

// VideosDir holds downloaded media.
func (l Layout) VideosDir() string { return filepath.Join(l.Root, "videos") }

// ThumbnailsDir holds downloaded thumbnails.
func (l Layout) ThumbnailsDir() string { return filepath.Join(l.Root, "thumbnails") }

// VideoPath is the final media file for id.
func (l Layout) VideoPath(id string) string { return filepath.Join(l.VideosDir(), id+".mp4") }

// ThumbnailPath is the final thumbnail file for id.
func (l Layout) ThumbnailPath(id string) string {
	return filepath.Join(l.ThumbnailsDir(), id+".jpg")
}

// Ensure creates the cache directories.
func (l Layout) Ensure() error {
	if strings.TrimSpace(l.Root) == "" {
		return errors.New("media layout root is empty")
	}
	for _, dir := range []string{l.VideosDir(), l.ThumbnailsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Files reports which of id's final files exist.
func (l Layout) Files(id string) (video, thumbnail bool) {
	return fileExists(l.VideoPath(id)), fileExists(l.ThumbnailPath(id))
}

// HasAny reports whether any file for id remains, partial downloads included.
func (l Layout) HasAny(id string) bool {
	matches, _ := l.matches(id)
	return len(matches) > 0
}

// Remove deletes every file for id, partial downloads included. Missing files are
// not an error.
func (l Layout) Remove(id string) error {
	matches, err := l.matches(id)
	if err != nil {
		return err
	}
	var errs []error
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l Layout) matches(id string) ([]string, error) {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\*?[`) {
		return nil, fmt.Errorf("invalid video id %q", id)
	}
	var out []string
	for _, dir := range []string{l.VideosDir(), l.ThumbnailsDir()} {
		found, err := filepath.Glob(filepath.Join(dir, id+".*"))
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
