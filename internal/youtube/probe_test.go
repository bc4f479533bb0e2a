package youtube_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ytarchive/internal/youtube"
)

func TestShortsProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shorts/short":
			w.WriteHeader(http.StatusOK)
		case "/shorts/video":
			http.Redirect(w, r, "https://www.youtube.com/watch?v=video", http.StatusSeeOther)
		case "/shorts/elsewhere":
			http.Redirect(w, r, "https://consent.example.com/", http.StatusFound)
		case "/shorts/busy":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	probe := youtube.NewShortsProbe(server.URL+"/shorts", 0, time.Second, nil)
	tests := []struct {
		id          string
		want        bool
		unavailable bool
	}{
		{id: "short", want: true},
		{id: "video", want: false},
		{id: "elsewhere", want: false},
		{id: "missing", want: false},
		{id: "busy", unavailable: true},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			got, err := probe.IsShort(context.Background(), tc.id)
			if tc.unavailable {
				if !youtube.IsProbeUnavailable(err) {
					t.Fatalf("expected probe unavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("IsShort: %v", err)
			}
			if got != tc.want {
				t.Fatalf("IsShort(%s) = %v, want %v", tc.id, got, tc.want)
			}
		})
	}
}

func TestShortsProbeNetworkErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	probe := youtube.NewShortsProbe(url, 0, time.Second, nil)
	if _, err := probe.IsShort(context.Background(), "x"); err == nil {
		t.Fatal("expected network error")
	}
}
