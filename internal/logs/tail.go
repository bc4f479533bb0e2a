package logs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"
)

// DefaultPoll is how often Follow checks the file for new data.
const DefaultPoll = 500 * time.Millisecond

const readBlock = 64 * 1024

// Last returns up to n trailing lines of path and the offset just past them. A missing
// file yields no lines and offset 0.
func Last(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	size := info.Size()
	if n <= 0 || size == 0 {
		return nil, size, nil
	}

	var buf []byte
	pos := size
	for pos > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		read := min(int64(readBlock), pos)
		pos -= read
		chunk := make([]byte, read)
		if _, err := file.ReadAt(chunk, pos); err != nil && !errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		buf = append(chunk, buf...)
	}

	text := strings.TrimSuffix(string(buf), "\n")
	if text == "" {
		return nil, size, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, size, nil
}

// Follow calls emit for every complete line appended to path after offset until ctx
// is done. A file that shrinks below the offset has been rotated and is read from the
// start. An emit error stops the follow and is returned.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, emit func(string) error) error {
	if poll <= 0 {
		poll = DefaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var partial []byte
	for {
		next, err := readAppended(path, offset, &partial, emit)
		if err != nil {
			return err
		}
		offset = next
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readAppended(path string, offset int64, partial *[]byte, emit func(string) error) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			*partial = nil
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	size := info.Size()
	if size < offset {
		offset = 0
		*partial = nil
	}
	if size == offset {
		return offset, nil
	}

	data := make([]byte, size-offset)
	n, err := file.ReadAt(data, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return offset, fmt.Errorf("read log file: %w", err)
	}
	offset += int64(n)
	data = append(*partial, data[:n]...)

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		*partial = data
		return offset, nil
	}
	for _, line := range strings.Split(string(data[:end]), "\n") {
		if err := emit(line); err != nil {
			return offset, err
		}
	}
	*partial = bytes.Clone(data[end+1:])
	return offset, nil
}
