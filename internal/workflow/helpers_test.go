package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ytarchive/internal/credentials"
	"ytarchive/internal/logging"
	"ytarchive/internal/media"
	"ytarchive/internal/notifications"
	"ytarchive/internal/pipeline"
	"ytarchive/internal/quota"
	"ytarchive/internal/store"
	"ytarchive/internal/testsupport"
	"ytarchive/internal/transfer"
	"ytarchive/internal/workflow"
	"ytarchive/internal/youtube"
)

type fakeFetcher struct {
	mu     sync.Mutex
	videos []string
	fail   map[string]error
}

func (f *fakeFetcher) FetchVideo(_ context.Context, id, dir string) (string, error) {
	f.mu.Lock()
	f.videos = append(f.videos, id)
	err := f.fail[id]
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, id+".mp4")
	return path, os.WriteFile(path, []byte("media-"+id), 0o644)
}

func (f *fakeFetcher) FetchThumbnail(_ context.Context, id, dir, _ string) (string, error) {
	path := filepath.Join(dir, id+".jpg")
	return path, os.WriteFile(path, []byte("jpeg"), 0o644)
}

// memSession accepts chunks in memory and completes with the remote id as body.
type memSession struct {
	remoteID  string
	committed int64
}

func (s *memSession) Put(_ context.Context, offset int64, chunk []byte, total int64) (transfer.Ack, error) {
	if offset != s.committed {
		return transfer.Ack{}, &transfer.StatusError{Code: 400, Body: "offset mismatch"}
	}
	s.committed += int64(len(chunk))
	if s.committed >= total {
		return transfer.Ack{Committed: total, Done: true, Body: []byte(s.remoteID)}, nil
	}
	return transfer.Ack{Committed: s.committed}, nil
}

func (s *memSession) Committed(_ context.Context, _ int64) (transfer.Ack, error) {
	return transfer.Ack{Committed: s.committed}, nil
}

type fakeUploader struct {
	mu         sync.Mutex
	inserts    map[string]int
	thumbnails map[string]int
	accounts   map[string]string
	updates    []string
	failInsert map[string]error
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{
		inserts:    map[string]int{},
		thumbnails: map[string]int{},
		accounts:   map[string]string{},
		failInsert: map[string]error{},
	}
}

func (u *fakeUploader) factory(lease *credentials.Lease) workflow.Uploader {
	return &leasedUploader{parent: u, account: lease.Account}
}

type leasedUploader struct {
	parent  *fakeUploader
	account string
}

func (l *leasedUploader) OpenVideoInsert(_ context.Context, rec store.VideoRecord, _ transfer.Payload) (transfer.Session, error) {
	u := l.parent
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.failInsert[rec.ID]; err != nil {
		return nil, err
	}
	u.inserts[rec.ID]++
	u.accounts[rec.ID] = l.account
	return &memSession{remoteID: "remote-" + rec.ID}, nil
}

func (l *leasedUploader) OpenThumbnailSet(_ context.Context, remoteID string, _ transfer.Payload) (transfer.Session, error) {
	u := l.parent
	u.mu.Lock()
	defer u.mu.Unlock()
	u.thumbnails[remoteID]++
	return &memSession{remoteID: remoteID}, nil
}

func (l *leasedUploader) RemoteID(body []byte) (string, error) {
	if len(body) == 0 {
		return "", errors.New("empty body")
	}
	return string(body), nil
}

func (l *leasedUploader) UpdateMetadata(_ context.Context, remoteID string, _ store.VideoRecord) error {
	u := l.parent
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updates = append(u.updates, remoteID)
	return nil
}

type okAuth struct{}

func (okAuth) Authenticate(context.Context, credentials.Credential) (*http.Client, error) {
	return &http.Client{}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) has(event notifications.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type fakeCatalog struct {
	ids    []string
	videos map[string]youtube.Video
}

func (c *fakeCatalog) ListVideoIDs(ctx context.Context, _ string, meter quota.Meter) ([]string, error) {
	if err := meter.Charge(ctx, quota.CostList); err != nil {
		return nil, err
	}
	return c.ids, nil
}

func (c *fakeCatalog) FetchVideos(ctx context.Context, ids []string, meter quota.Meter) ([]youtube.Video, error) {
	if err := meter.Charge(ctx, quota.CostList); err != nil {
		return nil, err
	}
	out := make([]youtube.Video, 0, len(ids))
	for _, id := range ids {
		if v, ok := c.videos[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeClassifier struct {
	shorts map[string]bool
	fail   map[string]error
}

func (c *fakeClassifier) IsShort(_ context.Context, id string) (bool, error) {
	if err := c.fail[id]; err != nil {
		return false, err
	}
	return c.shorts[id], nil
}

type harness struct {
	orch     *workflow.Orchestrator
	store    *store.Store
	layout   media.Layout
	fetcher  *fakeFetcher
	uploader *fakeUploader
	notifier *recordingNotifier
	catalog  *fakeCatalog
	classify *fakeClassifier
}

func newHarness(t *testing.T, uploaders ...string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	layout := media.Layout{Root: cfg.Paths.StagingDir}
	fetcher := &fakeFetcher{fail: map[string]error{}}
	machine := pipeline.New(st, fetcher, layout, logging.NewNop())
	ledger := quota.NewLedger(st, logging.NewNop())

	creds := make([]credentials.Credential, 0, len(uploaders))
	for _, name := range uploaders {
		creds = append(creds, credentials.Credential{Name: name})
	}
	pool := credentials.NewPool(ledger, okAuth{}, "reader", creds,
		credentials.WithSleep(func(context.Context, time.Duration) error { return context.Canceled }),
	)

	h := &harness{
		store:    st,
		layout:   layout,
		fetcher:  fetcher,
		uploader: newFakeUploader(),
		notifier: &recordingNotifier{},
		catalog:  &fakeCatalog{videos: map[string]youtube.Video{}},
		classify: &fakeClassifier{shorts: map[string]bool{}, fail: map[string]error{}},
	}
	orch, err := workflow.New(workflow.Deps{
		Store:       st,
		Machine:     machine,
		Catalog:     h.catalog,
		Classifier:  h.classify,
		Pool:        pool,
		NewUploader: h.uploader.factory,
		Notifier:    h.notifier,
		Logger:      logging.NewNop(),
	}, workflow.Settings{
		ChannelID:       "UCsource",
		ClassifyWorkers: 2,
		Transfer: transfer.Options{
			ChunkSize: transfer.ChunkAlignment,
			Sleep:     func(context.Context, time.Duration) error { return nil },
		},
	})
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	h.orch = orch
	return h
}

// seedDownloaded stores rec as Downloaded with its files on disk.
func (h *harness) seedDownloaded(t *testing.T, rec store.VideoRecord) {
	t.Helper()
	testsupport.MustUpsertVideos(t, h.store, rec)
	if err := h.layout.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	testsupport.WriteFile(t, h.layout.VideoPath(rec.ID), 3*transfer.ChunkAlignment/2)
	testsupport.WriteFile(t, h.layout.ThumbnailPath(rec.ID), 64)
	if err := h.store.MarkDownloaded(context.Background(), rec.ID); err != nil {
		t.Fatalf("MarkDownloaded: %v", err)
	}
}

func (h *harness) get(t *testing.T, id string) *store.VideoRecord {
	t.Helper()
	rec, err := h.store.GetVideo(context.Background(), id)
	if err != nil {
		t.Fatalf("GetVideo %s: %v", id, err)
	}
	return rec
}

func (h *harness) consumed(t *testing.T, name string) int {
	t.Helper()
	acct, err := h.store.GetAccount(context.Background(), name)
	if err != nil {
		t.Fatalf("GetAccount %s: %v", name, err)
	}
	return acct.ConsumedUnits
}
