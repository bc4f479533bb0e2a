package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ytarchive/internal/logging"
)

// ShortsProbe decides whether a video is a short by requesting its shorts URL without
// following redirects. Shorts answer directly; other videos redirect to the watch page.
type ShortsProbe struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewShortsProbe builds a probe. rps <= 0 disables pacing.
func NewShortsProbe(baseURL string, rps float64, timeout time.Duration, logger *slog.Logger) *ShortsProbe {
	if baseURL == "" {
		baseURL = "https://www.youtube.com/shorts/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &ShortsProbe{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logging.NewComponentLogger(logger, "shorts_probe"),
	}
}

// IsShort reports whether id is a short. Network failures are returned so the caller
// can retry later; an unrecognized answer counts as not a short.
func (p *ShortsProbe) IsShort(ctx context.Context, id string) (bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return false, err
	}
	target := p.baseURL + id
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("build shorts probe: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("shorts probe %s: %w", id, err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case isRedirect(resp.StatusCode):
		location := resp.Header.Get("Location")
		if strings.Contains(location, "watch?v=") {
			return false, nil
		}
		p.logger.Warn("shorts probe redirected somewhere unexpected",
			logging.String(logging.FieldVideoID, id),
			logging.String("location", location),
			logging.String(logging.FieldEventType, "shorts_probe_unknown"),
			logging.String(logging.FieldErrorHint, "classified as not a short"),
		)
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return false, fmt.Errorf("shorts probe %s: %w", id, errProbeUnavailable{code: resp.StatusCode})
	default:
		p.logger.Warn("shorts probe returned unexpected status",
			logging.String(logging.FieldVideoID, id),
			logging.Int("status", resp.StatusCode),
			logging.String(logging.FieldEventType, "shorts_probe_unknown"),
			logging.String(logging.FieldErrorHint, "classified as not a short"),
		)
		return false, nil
	}
}

type errProbeUnavailable struct{ code int }

func (e errProbeUnavailable) Error() string {
	return fmt.Sprintf("probe endpoint returned %d", e.code)
}

// IsProbeUnavailable reports whether err came from a throttled or failing probe endpoint.
func IsProbeUnavailable(err error) bool {
	var target errProbeUnavailable
	return errors.As(err, &target)
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
