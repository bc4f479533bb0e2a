package workflow_test

import (
	"context"
	"errors"
	"testing"

	"ytarchive/internal/notifications"
	"ytarchive/internal/store"
	"ytarchive/internal/testsupport"
	"ytarchive/internal/workflow"
	"ytarchive/internal/youtube"
)

func catalogVideo(id string, day int, live bool) youtube.Video {
	rec := testsupport.NewVideo(id, day)
	rec.Classification = ""
	return youtube.Video{Record: rec, LiveDetails: live}
}

func TestSyncClassifiesNewVideosAndKeepsKnownOnes(t *testing.T) {
	h := newHarness(t)
	testsupport.MustProvision(t, h.store, store.RoleReader, 10000, 0, "reader")

	known := testsupport.NewVideo("old", 0)
	known.Classification = store.ClassificationShort
	testsupport.MustUpsertVideos(t, h.store, known)

	h.catalog.ids = []string{"old", "short", "live", "plain", "flaky"}
	for i, id := range h.catalog.ids {
		h.catalog.videos[id] = catalogVideo(id, i, id == "live")
	}
	updated := h.catalog.videos["old"]
	updated.Record.Title = "Renamed"
	h.catalog.videos["old"] = updated
	h.classify.shorts["short"] = true
	h.classify.fail["flaky"] = errors.New("probe unavailable")

	summary, err := h.orch.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if summary.Listed != 5 || summary.New != 3 || summary.Updated != 1 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	want := map[string]store.Classification{
		"old":   store.ClassificationShort,
		"short": store.ClassificationShort,
		"live":  store.ClassificationLiveArchive,
		"plain": store.ClassificationStandard,
	}
	for id, class := range want {
		if got := h.get(t, id).Classification; got != class {
			t.Fatalf("%s: expected %s, got %s", id, class, got)
		}
	}
	if got := h.get(t, "old").Title; got != "Renamed" {
		t.Fatalf("expected refreshed title, got %q", got)
	}
	if _, err := h.store.GetVideo(context.Background(), "flaky"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected flaky to be skipped, got %v", err)
	}
	if got := h.consumed(t, "reader"); got != 2 {
		t.Fatalf("expected two billed list calls, got %d", got)
	}
	if !h.notifier.has(notifications.EventSyncCompleted) {
		t.Fatalf("expected sync notification")
	}
}

func TestSyncPreservesPipelineFlags(t *testing.T) {
	h := newHarness(t)
	testsupport.MustProvision(t, h.store, store.RoleReader, 10000, 0, "reader")
	h.seedDownloaded(t, testsupport.NewVideo("v1", 0))

	h.catalog.ids = []string{"v1"}
	h.catalog.videos["v1"] = catalogVideo("v1", 0, false)

	if _, err := h.orch.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rec := h.get(t, "v1"); !rec.Downloaded {
		t.Fatalf("expected downloaded flag preserved")
	}
}

func TestRunAbortsWhenReaderQuotaIsExhausted(t *testing.T) {
	h := newHarness(t)
	testsupport.MustProvision(t, h.store, store.RoleReader, 10, 10, "reader")
	testsupport.MustUpsertVideos(t, h.store, testsupport.NewVideo("v1", 0))
	h.catalog.ids = []string{"v2"}

	_, err := h.orch.Run(context.Background(), workflow.RunOptions{Sync: true})
	if !errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if len(h.fetcher.videos) != 0 {
		t.Fatalf("expected no downloads after aborted sync")
	}
	if !h.notifier.has(notifications.EventQuotaExhausted) {
		t.Fatalf("expected quota notification, got %v", h.notifier.events)
	}
}
