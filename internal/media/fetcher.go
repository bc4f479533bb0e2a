package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"ytarchive/internal/logging"
	"ytarchive/internal/media/ffprobe"
	"ytarchive/internal/services"
)

var commandContext = exec.CommandContext

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithYtDlp overrides the yt-dlp binary.
func WithYtDlp(binary string) Option {
	return func(f *Fetcher) {
		if binary != "" {
			f.ytdlp = binary
		}
	}
}

// WithFormat overrides the yt-dlp format selector.
func WithFormat(format string) Option {
	return func(f *Fetcher) {
		if format != "" {
			f.format = format
		}
	}
}

// WithFFprobe enables post-download verification with the given binary.
func WithFFprobe(binary string) Option {
	return func(f *Fetcher) { f.ffprobe = binary }
}

// WithTimeout bounds one video download.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithHTTPClient overrides the client used for thumbnails.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.http = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// Fetcher downloads source media with yt-dlp and thumbnails over HTTP.
type Fetcher struct {
	ytdlp   string
	format  string
	ffprobe string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// NewFetcher constructs a fetcher using defaults.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		ytdlp:   "yt-dlp",
		format:  "bestvideo+bestaudio/best",
		timeout: 4 * time.Hour,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "fetcher")
	return f
}

type ytdlpProgress struct {
	Status          string   `json:"status"`
	DownloadedBytes int64    `json:"downloaded_bytes"`
	TotalBytes      *int64   `json:"total_bytes"`
	TotalEstimate   *float64 `json:"total_bytes_estimate"`
}

// FetchVideo downloads id into dir as <id>.mp4 and returns the path.
func (f *Fetcher) FetchVideo(ctx context.Context, id, dir string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", services.Wrap(services.ErrValidation, "download", "fetch video", "video id required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create video dir: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	target := filepath.Join(dir, id+".mp4")
	args := []string{
		"--no-playlist",
		"--newline",
		"--progress",
		"--progress-template", "download:%(progress)j",
		"-f", f.format,
		"--merge-output-format", "mp4",
		"-o", filepath.Join(dir, id+".%(ext)s"),
		"--print", "after_move:filepath",
		"--", id,
	}
	cmd := commandContext(ctx, f.ytdlp, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &limitedWriter{w: &stderr, n: 8192}
	if err := cmd.Start(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "download", "start yt-dlp", f.ytdlp, err)
	}

	logger := f.logger.With(logging.String(logging.FieldVideoID, id))
	sampler := logging.NewProgressSampler(25)
	var finalPath string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "{") {
			var progress ytdlpProgress
			if json.Unmarshal([]byte(line), &progress) == nil {
				if percent, ok := progress.percent(); ok && sampler.ShouldLog(percent, progress.Status) {
					logger.Info("download progress", logging.Float64("percent", percent))
				}
			}
			continue
		}
		finalPath = line
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return "", fmt.Errorf("read yt-dlp output: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return "", services.Wrap(services.ErrTimeout, "download", "yt-dlp", id, ctx.Err())
		}
		return "", services.Wrap(services.ErrExternalTool, "download", "yt-dlp",
			strings.TrimSpace(stderr.String()), err)
	}

	if finalPath != "" && finalPath != target {
		if err := os.Rename(finalPath, target); err != nil {
			return "", fmt.Errorf("move %s into place: %w", finalPath, err)
		}
	}
	if !fileExists(target) {
		return "", services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "no output file for "+id, nil)
	}
	if err := f.verify(ctx, target); err != nil {
		return "", err
	}
	return target, nil
}

func (p ytdlpProgress) percent() (float64, bool) {
	if p.Status == "finished" {
		return 100, true
	}
	switch {
	case p.TotalBytes != nil && *p.TotalBytes > 0:
		return float64(p.DownloadedBytes) * 100 / float64(*p.TotalBytes), true
	case p.TotalEstimate != nil && *p.TotalEstimate > 0:
		return float64(p.DownloadedBytes) * 100 / *p.TotalEstimate, true
	}
	return 0, false
}

func (f *Fetcher) verify(ctx context.Context, path string) error {
	if f.ffprobe == "" {
		return nil
	}
	result, err := ffprobe.Inspect(ctx, f.ffprobe, path)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "download", "ffprobe", filepath.Base(path), err)
	}
	if err := result.CheckPlayable(); err != nil {
		return services.Wrap(services.ErrValidation, "download", "verify", filepath.Base(path), err)
	}
	return nil
}

// FetchThumbnail downloads sourceURL into dir as <id>.jpg and returns the path.
func (f *Fetcher) FetchThumbnail(ctx context.Context, id, dir, sourceURL string) (string, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return "", services.Wrap(services.ErrValidation, "download", "fetch thumbnail", "no thumbnail url for "+id, nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail dir: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("build thumbnail request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "download", "fetch thumbnail", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrExternalTool, "download", "fetch thumbnail",
			fmt.Sprintf("%s returned %d", sourceURL, resp.StatusCode), nil)
	}

	target := filepath.Join(dir, id+".jpg")
	tmp, err := os.CreateTemp(dir, id+".*.part")
	if err != nil {
		return "", fmt.Errorf("create thumbnail temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", services.Wrap(services.ErrTransient, "download", "write thumbnail", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close thumbnail: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("move thumbnail into place: %w", err)
	}
	return target, nil
}

type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n <= 0 {
		return len(p), nil
	}
	chunk := p
	if len(chunk) > l.n {
		chunk = chunk[:l.n]
	}
	l.n -= len(chunk)
	if _, err := l.w.Write(chunk); err != nil {
		return 0, err
	}
	return len(p), nil
}
