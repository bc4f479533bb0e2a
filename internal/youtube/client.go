package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"ytarchive/internal/logging"
	"ytarchive/internal/store"
	"ytarchive/internal/transfer"
)

// ClientConfig configures an upload client.
type ClientConfig struct {
	UploadBaseURL string
	APIBaseURL    string
	Defaults      UploadDefaults
	Logger        *slog.Logger
}

// Client issues write calls through one authorized upload credential.
type Client struct {
	http       *http.Client
	uploadBase string
	apiBase    string
	defaults   UploadDefaults
	logger     *slog.Logger
}

// NewClient wraps an authorized HTTP client.
func NewClient(httpClient *http.Client, cfg ClientConfig) *Client {
	uploadBase := cfg.UploadBaseURL
	if uploadBase == "" {
		uploadBase = "https://youtube.googleapis.com/upload/youtube/v3/"
	}
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = "https://youtube.googleapis.com/"
	}
	if cfg.Defaults.PrivacyStatus == "" {
		cfg.Defaults.PrivacyStatus = "private"
	}
	return &Client{
		http:       httpClient,
		uploadBase: withSlash(uploadBase),
		apiBase:    withSlash(apiBase),
		defaults:   cfg.Defaults,
		logger:     logging.NewComponentLogger(cfg.Logger, "uploader"),
	}
}

// OpenVideoInsert starts a resumable videos.insert for rec. The returned session
// carries the media bytes.
func (c *Client) OpenVideoInsert(ctx context.Context, rec store.VideoRecord, payload transfer.Payload) (transfer.Session, error) {
	meta := BuildMetadata(rec)
	body := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:                meta.Title,
			Description:          meta.Description,
			Tags:                 meta.Tags,
			CategoryId:           meta.CategoryID,
			DefaultLanguage:      c.defaults.DefaultLanguage,
			DefaultAudioLanguage: c.defaults.DefaultLanguage,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           c.defaults.PrivacyStatus,
			License:                 "youtube",
			Embeddable:              c.defaults.Embeddable,
			SelfDeclaredMadeForKids: c.defaults.MadeForKids,
			ForceSendFields:         []string{"Embeddable", "SelfDeclaredMadeForKids"},
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode video resource: %w", err)
	}
	q := url.Values{}
	q.Set("uploadType", "resumable")
	q.Set("part", "snippet,status")
	return c.openSession(ctx, c.uploadBase+"videos?"+q.Encode(), data, payload)
}

// OpenThumbnailSet starts a resumable thumbnails.set for the uploaded video remoteID.
func (c *Client) OpenThumbnailSet(ctx context.Context, remoteID string, payload transfer.Payload) (transfer.Session, error) {
	q := url.Values{}
	q.Set("uploadType", "resumable")
	q.Set("videoId", remoteID)
	return c.openSession(ctx, c.uploadBase+"thumbnails/set?"+q.Encode(), nil, payload)
}

func (c *Client) openSession(ctx context.Context, endpoint string, metadata []byte, payload transfer.Payload) (transfer.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(metadata))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.ContentLength = int64(len(metadata))
	if len(metadata) > 0 {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(payload.Size, 10))
	if payload.ContentType != "" {
		req.Header.Set("X-Upload-Content-Type", payload.ContentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, err
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return nil, &transfer.StatusError{Code: resp.StatusCode, Body: "resumable session response carried no Location header"}
	}
	c.logger.Debug("resumable session opened",
		logging.String("payload", payload.Name),
		logging.Int64("size_bytes", payload.Size),
	)
	return &resumableSession{client: c.http, uri: location}, nil
}

// RemoteID extracts the new video id from a completed videos.insert response.
func (c *Client) RemoteID(body []byte) (string, error) {
	var video yt.Video
	if err := json.Unmarshal(body, &video); err != nil {
		return "", fmt.Errorf("decode insert response: %w", err)
	}
	if strings.TrimSpace(video.Id) == "" {
		return "", errors.New("insert response carried no video id")
	}
	return video.Id, nil
}

// UpdateMetadata rewrites the snippet of an uploaded video from rec.
func (c *Client) UpdateMetadata(ctx context.Context, remoteID string, rec store.VideoRecord) error {
	svc, err := yt.NewService(ctx, option.WithHTTPClient(c.http), option.WithEndpoint(c.apiBase))
	if err != nil {
		return fmt.Errorf("create youtube service: %w", err)
	}
	meta := BuildMetadata(rec)
	_, err = svc.Videos.Update([]string{"snippet"}, &yt.Video{
		Id: remoteID,
		Snippet: &yt.VideoSnippet{
			Title:                meta.Title,
			Description:          meta.Description,
			Tags:                 meta.Tags,
			CategoryId:           meta.CategoryID,
			DefaultLanguage:      c.defaults.DefaultLanguage,
			DefaultAudioLanguage: c.defaults.DefaultLanguage,
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("videos.update %s: %w", remoteID, err)
	}
	return nil
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
