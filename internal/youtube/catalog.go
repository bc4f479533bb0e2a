package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"ytarchive/internal/logging"
	"ytarchive/internal/quota"
	"ytarchive/internal/services"
	"ytarchive/internal/store"
)

// BatchSize is the most ids or items the Data API returns per call.
const BatchSize = 50

// Video is a fetched source video. Record.Classification stays empty until the
// caller classifies it; LiveDetails reports whether the platform returned live
// streaming details.
type Video struct {
	Record      store.VideoRecord
	LiveDetails bool
}

// CatalogConfig configures the read-only catalog client.
type CatalogConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Catalog lists and describes the videos of a channel using an API key.
type Catalog struct {
	svc     *yt.Service
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewCatalog builds a catalog client.
func NewCatalog(ctx context.Context, cfg CatalogConfig) (*Catalog, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "init", "api key required", nil)
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://youtube.googleapis.com/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	svc, err := yt.NewService(ctx,
		option.WithEndpoint(base),
		option.WithHTTPClient(&http.Client{
			Timeout:   httpClient.Timeout,
			Transport: apiKeyTransport{key: cfg.APIKey, base: httpClient.Transport},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Catalog{
		svc:     svc,
		http:    httpClient,
		baseURL: base,
		apiKey:  cfg.APIKey,
		logger:  logging.NewComponentLogger(cfg.Logger, "catalog"),
	}, nil
}

// apiKeyTransport appends the API key to each request. A custom HTTP client disables
// option.WithAPIKey, so the transport carries the key instead.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	q := clone.URL.Query()
	if q.Get("key") == "" {
		q.Set("key", t.key)
		clone.URL.RawQuery = q.Encode()
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

// ListVideoIDs returns every video id in the channel's uploads playlist. Each call is
// charged to meter before it is issued.
func (c *Catalog) ListVideoIDs(ctx context.Context, channelID string, meter quota.Meter) ([]string, error) {
	if meter == nil {
		meter = quota.Unmetered
	}
	if err := meter.Charge(ctx, quota.CostList); err != nil {
		return nil, err
	}
	channels, err := c.svc.Channels.List([]string{"contentDetails"}).Id(channelID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("channels.list %s: %w", channelID, err)
	}
	if len(channels.Items) == 0 || channels.Items[0].ContentDetails == nil || channels.Items[0].ContentDetails.RelatedPlaylists == nil {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "list", "channel "+channelID+" has no uploads playlist", nil)
	}
	uploads := channels.Items[0].ContentDetails.RelatedPlaylists.Uploads

	var (
		ids       []string
		pageToken string
		pages     int
	)
	for {
		if err := meter.Charge(ctx, quota.CostList); err != nil {
			return nil, err
		}
		call := c.svc.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(uploads).
			MaxResults(BatchSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("playlistItems.list %s: %w", uploads, err)
		}
		pages++
		for _, item := range resp.Items {
			if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
				ids = append(ids, item.ContentDetails.VideoId)
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	c.logger.Info("listed channel uploads",
		logging.String("channel_id", channelID),
		logging.Int("videos", len(ids)),
		logging.Int("pages", pages),
	)
	return ids, nil
}

// videoListResponse mirrors videos.list with statistics kept as optional strings so
// hidden counters stay distinguishable from zero.
type videoListResponse struct {
	Items []struct {
		ID                   string                        `json:"id"`
		Snippet              *yt.VideoSnippet              `json:"snippet"`
		LiveStreamingDetails *yt.VideoLiveStreamingDetails `json:"liveStreamingDetails"`
		Statistics           *struct {
			ViewCount    *string `json:"viewCount"`
			LikeCount    *string `json:"likeCount"`
			CommentCount *string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// FetchVideos describes ids in batches of BatchSize. Ids the platform no longer
// returns are omitted.
func (c *Catalog) FetchVideos(ctx context.Context, ids []string, meter quota.Meter) ([]Video, error) {
	if meter == nil {
		meter = quota.Unmetered
	}
	out := make([]Video, 0, len(ids))
	for start := 0; start < len(ids); start += BatchSize {
		end := min(start+BatchSize, len(ids))
		if err := meter.Charge(ctx, quota.CostList); err != nil {
			return nil, err
		}
		batch, err := c.fetchBatch(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *Catalog) fetchBatch(ctx context.Context, ids []string) ([]Video, error) {
	q := url.Values{}
	q.Set("part", "snippet,statistics,liveStreamingDetails")
	q.Set("id", strings.Join(ids, ","))
	q.Set("maxResults", strconv.Itoa(BatchSize))
	q.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"youtube/v3/videos?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build videos.list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("videos.list: %w", err)
	}
	defer resp.Body.Close()
	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("videos.list: %w", err)
	}

	var payload videoListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode videos.list: %w", err)
	}

	now := time.Now().UTC()
	videos := make([]Video, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.Snippet == nil {
			continue
		}
		rec := store.VideoRecord{
			ID:           item.ID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			CategoryID:   item.Snippet.CategoryId,
			Tags:         item.Snippet.Tags,
			ThumbnailURL: bestThumbnail(item.Snippet.Thumbnails),
			SyncedAt:     now,
		}
		if published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			rec.PublishedAt = published.UTC()
		}
		if item.Statistics != nil {
			rec.ViewCount = parseCount(item.Statistics.ViewCount)
			rec.LikeCount = parseCount(item.Statistics.LikeCount)
			rec.CommentCount = parseCount(item.Statistics.CommentCount)
		}
		live := item.LiveStreamingDetails
		if live != nil {
			rec.ScheduledStart = parseOptionalTime(live.ScheduledStartTime)
			rec.ActualStart = parseOptionalTime(live.ActualStartTime)
			rec.ActualEnd = parseOptionalTime(live.ActualEndTime)
		}
		videos = append(videos, Video{Record: rec, LiveDetails: live != nil})
	}
	return videos, nil
}

// bestThumbnail picks the largest available rendition.
func bestThumbnail(details *yt.ThumbnailDetails) string {
	if details == nil {
		return ""
	}
	for _, thumb := range []*yt.Thumbnail{details.Maxres, details.Standard, details.High, details.Medium, details.Default} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}

func parseCount(raw *string) *int64 {
	if raw == nil {
		return nil
	}
	v, err := strconv.ParseInt(*raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseOptionalTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
