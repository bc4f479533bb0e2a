package transfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Payload is one binary object to upload.
type Payload struct {
	Name        string
	Reader      io.ReaderAt
	Size        int64
	ContentType string
}

// FilePayload is a Payload backed by an open file.
type FilePayload struct {
	Payload
	file *os.File
}

// OpenFile opens path as a payload. Callers must Close it.
func OpenFile(path, contentType string) (*FilePayload, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat payload: %w", err)
	}
	return &FilePayload{
		Payload: Payload{
			Name:        filepath.Base(path),
			Reader:      file,
			Size:        info.Size(),
			ContentType: contentType,
		},
		file: file,
	}, nil
}

// Close releases the underlying file.
func (f *FilePayload) Close() error {
	if f == nil || f.file == nil {
		return nil
	}
	return f.file.Close()
}
