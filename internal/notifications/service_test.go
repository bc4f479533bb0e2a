package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ytarchive/internal/config"
	"ytarchive/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRunCompleted, notifications.Payload{"processed": 1}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "video archived",
			event:         notifications.EventVideoArchived,
			payload:       notifications.Payload{"title": "Old vlog", "uploadedVideoId": "xyz"},
			expectTitle:   "ytarchive - Archived",
			expectMessage: "Archived: Old vlog\nhttps://youtu.be/xyz",
			expectTags:    "ytarchive,upload,completed",
		},
		{
			name:          "sync completed",
			event:         notifications.EventSyncCompleted,
			payload:       notifications.Payload{"listed": 120, "new": 3, "updated": 117},
			expectTitle:   "ytarchive - Sync Complete",
			expectMessage: "Catalog synced: 120 listed, 3 new, 117 updated",
			expectTags:    "ytarchive,sync,completed",
		},
		{
			name:          "run completed with failures",
			event:         notifications.EventRunCompleted,
			payload:       notifications.Payload{"processed": 4, "skipped": 1, "failed": 2, "duration": 90 * time.Second},
			expectTitle:   "ytarchive - Run Complete (with errors)",
			expectMessage: "Run complete: 4 processed, 1 skipped, 2 failed in 1m30s",
			expectTags:    "ytarchive,run,completed",
		},
		{
			name:           "quota exhausted",
			event:          notifications.EventQuotaExhausted,
			payload:        notifications.Payload{"account": "reader", "detail": "sync aborted"},
			expectTitle:    "ytarchive - Quota Exhausted",
			expectMessage:  "Account reader has no quota left: sync aborted",
			expectTags:     "ytarchive,quota,warning",
			expectPriority: "high",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "upload abc", "error": errors.New("token revoked")},
			expectTitle:    "ytarchive - Error",
			expectMessage:  "Error with upload abc: token revoked",
			expectTags:     "ytarchive,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsDisabledEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Archived = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{notifications.EventVideoArchived, notifications.EventError, notifications.Event("unknown")} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"title": "x"}); err != nil {
			t.Fatalf("expected no error for %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	if err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403")
	}
}
