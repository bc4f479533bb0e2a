package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"ytarchive/internal/config"
	"ytarchive/internal/deps"
	"ytarchive/internal/youtube"
)

// Pinger is satisfied by the durable store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckEndpoint verifies that an HTTP endpoint answers. Any response below 500 counts
// as reachable; no credentials are sent so the check is never billed.
func CheckEndpoint(ctx context.Context, name, rawURL string) Result {
	base := strings.TrimSpace(rawURL)
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckReadableFile verifies that path is a regular file the process can read.
func CheckReadableFile(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckToken verifies that the uploader account has a stored refresh token.
func CheckToken(name, account, path string) Result {
	tok, err := youtube.LoadToken(path)
	if err != nil {
		return Result{Name: name, Detail: "no token; run 'ytarchive auth " + account + "'"}
	}
	if tok.RefreshToken == "" {
		return Result{Name: name, Detail: "token has no refresh token; re-run auth"}
	}
	return Result{Name: name, Passed: true, Detail: "refresh token present"}
}

// CheckStore verifies that the durable store answers.
func CheckStore(ctx context.Context, st Pinger) Result {
	const name = "Store"
	if st == nil {
		return Result{Name: name, Detail: "not opened"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := st.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckSource verifies the channel and API key settings without calling the API.
func CheckSource(cfg *config.Config) Result {
	const name = "Source channel"
	if err := cfg.ValidateSource(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Source.ChannelID}
}

// CheckSystemDeps evaluates the external binaries used for download and verification.
// The run command and the preflight command share this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Media.YtDlpBinary,
			Description: "Required for downloading source media",
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Media.FFprobeBinary,
			Description: "Verifies downloaded media before upload",
			VersionArgs: []string{"-version"},
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}

// summarizeNetError produces a human-readable summary for connectivity failures.
func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (unreachable)"
	}
	return err.Error()
}
