package youtube_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	yt "google.golang.org/api/youtube/v3"

	"ytarchive/internal/store"
	"ytarchive/internal/testsupport"
	"ytarchive/internal/transfer"
	"ytarchive/internal/youtube"
)

// resumableServer accepts resumable uploads and can drop a chunk once.
type resumableServer struct {
	t *testing.T

	mu        sync.Mutex
	metadata  yt.Video
	headers   http.Header
	received  bytes.Buffer
	failNext  bool
	puts      int
	thumbsFor string
}

func (s *resumableServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.URL.Query().Get("uploadType") != "resumable" {
			s.t.Errorf("expected resumable upload, got %q", r.URL.RawQuery)
		}
		s.headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&s.metadata); err != nil {
			s.t.Errorf("decode metadata: %v", err)
		}
		w.Header().Set("Location", "http://"+r.Host+"/session/video")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/upload/youtube/v3/thumbnails/set", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.thumbsFor = r.URL.Query().Get("videoId")
		s.mu.Unlock()
		w.Header().Set("Location", "http://"+r.Host+"/session/thumb")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/session/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.puts++
		body, _ := io.ReadAll(r.Body)
		contentRange := r.Header.Get("Content-Range")
		if len(body) > 0 && s.failNext {
			s.failNext = false
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		total := contentRange[strings.LastIndex(contentRange, "/")+1:]
		size, _ := strconv.Atoi(total)
		s.received.Write(body)
		if s.received.Len() >= size {
			_, _ = w.Write([]byte(`{"id":"remote-1"}`))
			return
		}
		if s.received.Len() > 0 {
			w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", s.received.Len()-1))
		}
		w.WriteHeader(308)
	})
	return mux
}

func newClient(server *httptest.Server) *youtube.Client {
	return youtube.NewClient(server.Client(), youtube.ClientConfig{
		UploadBaseURL: server.URL + "/upload/youtube/v3",
		APIBaseURL:    server.URL,
		Defaults:      youtube.UploadDefaults{PrivacyStatus: "unlisted", DefaultLanguage: "en", Embeddable: false},
	})
}

func TestClientUploadsVideoAcrossChunksWithResume(t *testing.T) {
	srv := &resumableServer{t: t, failNext: true}
	server := httptest.NewServer(srv.handler())
	defer server.Close()
	client := newClient(server)

	data := bytes.Repeat([]byte("z"), 3*transfer.ChunkAlignment+10)
	payload := transfer.Payload{Name: "abc.mp4", Reader: bytes.NewReader(data), Size: int64(len(data)), ContentType: "video/mp4"}
	rec := testsupport.NewVideo("abc", 1)

	result, err := transfer.Upload(context.Background(), payload, func(ctx context.Context) (transfer.Session, error) {
		return client.OpenVideoInsert(ctx, rec, payload)
	}, transfer.Options{
		ChunkSize: transfer.ChunkAlignment,
		Sleep:     func(context.Context, time.Duration) error { return nil },
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.Retries != 1 {
		t.Fatalf("expected one retry, got %d", result.Retries)
	}
	if !bytes.Equal(srv.received.Bytes(), data) {
		t.Fatalf("server received %d bytes, want %d", srv.received.Len(), len(data))
	}
	remote, err := client.RemoteID(result.Body)
	if err != nil || remote != "remote-1" {
		t.Fatalf("RemoteID = %q, %v", remote, err)
	}

	if got := srv.headers.Get("X-Upload-Content-Length"); got != strconv.Itoa(len(data)) {
		t.Fatalf("unexpected content length header %q", got)
	}
	if got := srv.headers.Get("X-Upload-Content-Type"); got != "video/mp4" {
		t.Fatalf("unexpected content type header %q", got)
	}
	if srv.metadata.Status == nil || srv.metadata.Status.PrivacyStatus != "unlisted" || srv.metadata.Status.License != "youtube" {
		t.Fatalf("unexpected status %+v", srv.metadata.Status)
	}
	if srv.metadata.Snippet == nil || srv.metadata.Snippet.Title != rec.Title || srv.metadata.Snippet.DefaultLanguage != "en" {
		t.Fatalf("unexpected snippet %+v", srv.metadata.Snippet)
	}
	if !strings.Contains(srv.metadata.Snippet.Description, "Archived from the original upload abc") {
		t.Fatalf("expected archive header in description, got %q", srv.metadata.Snippet.Description)
	}
}

func TestClientThumbnailSessionTargetsRemoteVideo(t *testing.T) {
	srv := &resumableServer{t: t}
	server := httptest.NewServer(srv.handler())
	defer server.Close()
	client := newClient(server)

	data := []byte("jpeg-bytes")
	payload := transfer.Payload{Name: "abc.jpg", Reader: bytes.NewReader(data), Size: int64(len(data)), ContentType: "image/jpeg"}
	_, err := transfer.Upload(context.Background(), payload, func(ctx context.Context) (transfer.Session, error) {
		return client.OpenThumbnailSet(ctx, "remote-1", payload)
	}, transfer.Options{})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if srv.thumbsFor != "remote-1" {
		t.Fatalf("thumbnail targeted %q", srv.thumbsFor)
	}
}

func TestClientOpenSessionErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	client := newClient(server)

	payload := transfer.Payload{Name: "x", Reader: bytes.NewReader(nil)}
	_, err := client.OpenVideoInsert(context.Background(), store.VideoRecord{ID: "x"}, payload)
	if err == nil {
		t.Fatal("expected error")
	}
	if transfer.IsRetriable(err) {
		t.Fatalf("401 should be fatal, got %v", err)
	}
}

func TestClientUpdateMetadata(t *testing.T) {
	var got yt.Video
	var part string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/youtube/v3/videos" {
			http.NotFound(w, r)
			return
		}
		part = r.URL.Query().Get("part")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"remote-1"}`))
	}))
	defer server.Close()
	client := newClient(server)

	rec := testsupport.NewVideo("abc", 2)
	rec.Title = "New <title>"
	if err := client.UpdateMetadata(context.Background(), "remote-1", rec); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	if part != "snippet" {
		t.Fatalf("unexpected part %q", part)
	}
	if got.Id != "remote-1" || got.Snippet == nil || got.Snippet.Title != "New title" {
		t.Fatalf("unexpected update body %+v", got)
	}
}

func TestRemoteIDRejectsEmptyBody(t *testing.T) {
	client := youtube.NewClient(http.DefaultClient, youtube.ClientConfig{})
	if _, err := client.RemoteID([]byte(`{}`)); err == nil {
		t.Fatal("expected error for missing id")
	}
}
