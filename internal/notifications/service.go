package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ytarchive/internal/config"
)

const userAgent = "ytarchive/0.1.0"

// Event identifies a workflow milestone.
type Event string

const (
	EventSyncCompleted  Event = "sync_completed"
	EventVideoArchived  Event = "video_archived"
	EventRunCompleted   Event = "run_completed"
	EventQuotaExhausted Event = "quota_exhausted"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op one when no topic is configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventSyncCompleted:  cfg.Notifications.RunSummary,
			EventVideoArchived:  cfg.Notifications.Archived,
			EventRunCompleted:   cfg.Notifications.RunSummary,
			EventQuotaExhausted: cfg.Notifications.Errors,
			EventError:          cfg.Notifications.Errors,
			EventTest:           true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventSyncCompleted:
		return message{
			title: "ytarchive - Sync Complete",
			body: fmt.Sprintf("Catalog synced: %d listed, %d new, %d updated",
				intValue(payload, "listed"), intValue(payload, "new"), intValue(payload, "updated")),
			tags: []string{"ytarchive", "sync", "completed"},
		}, true
	case EventVideoArchived:
		body := fmt.Sprintf("Archived: %s", stringValue(payload, "title"))
		if remote := stringValue(payload, "uploadedVideoId"); remote != "" {
			body += "\nhttps://youtu.be/" + remote
		}
		return message{
			title: "ytarchive - Archived",
			body:  body,
			tags:  []string{"ytarchive", "upload", "completed"},
		}, true
	case EventRunCompleted:
		processed := intValue(payload, "processed")
		skipped := intValue(payload, "skipped")
		failed := intValue(payload, "failed")
		duration := durationValue(payload, "duration")
		title := "ytarchive - Run Complete"
		if failed > 0 {
			title = "ytarchive - Run Complete (with errors)"
		}
		return message{
			title: title,
			body: fmt.Sprintf("Run complete: %d processed, %d skipped, %d failed in %s",
				processed, skipped, failed, duration),
			tags: []string{"ytarchive", "run", "completed"},
		}, true
	case EventQuotaExhausted:
		return message{
			title:    "ytarchive - Quota Exhausted",
			body:     fmt.Sprintf("Account %s has no quota left: %s", stringValue(payload, "account"), stringValue(payload, "detail")),
			tags:     []string{"ytarchive", "quota", "warning"},
			priority: "high",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if label := stringValue(payload, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if detail := stringValue(payload, "error"); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "ytarchive - Error",
			body:     builder.String(),
			tags:     []string{"ytarchive", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "ytarchive - Test",
			body:     "Notification system test",
			tags:     []string{"ytarchive", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func stringValue(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func intValue(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func durationValue(payload Payload, key string) string {
	d, _ := payload[key].(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
