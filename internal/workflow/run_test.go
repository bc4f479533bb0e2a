package workflow_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"ytarchive/internal/notifications"
	"ytarchive/internal/pipeline"
	"ytarchive/internal/quota"
	"ytarchive/internal/services"
	"ytarchive/internal/store"
	"ytarchive/internal/testsupport"
	"ytarchive/internal/transfer"
	"ytarchive/internal/workflow"
)

func TestRunRecoversInterruptedUploadBeforeMainPass(t *testing.T) {
	h := newHarness(t, "upload-a", "upload-b")
	testsupport.MustProvision(t, h.store, store.RoleUpload, 10000, 9000, "upload-a")
	testsupport.MustProvision(t, h.store, store.RoleUpload, 10000, 0, "upload-b")

	h.seedDownloaded(t, testsupport.NewVideo("abc", 0))
	testsupport.MustUpsertVideos(t, h.store, testsupport.NewVideo("xyz", 1))

	summary, err := h.orch.Run(context.Background(), workflow.RunOptions{Count: 1, Upload: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Recovery.Processed != 1 || summary.Main.Processed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := h.fetcher.videos; len(got) != 1 || got[0] != "xyz" {
		t.Fatalf("expected only xyz downloaded, got %v", got)
	}
	for _, id := range []string{"abc", "xyz"} {
		if h.uploader.inserts[id] != 1 {
			t.Fatalf("expected exactly one insert for %s, got %d", id, h.uploader.inserts[id])
		}
		if h.uploader.accounts[id] != "upload-b" {
			t.Fatalf("expected %s on upload-b, got %q", id, h.uploader.accounts[id])
		}
		rec := h.get(t, id)
		if pipeline.StateOf(*rec) != pipeline.StatePushed || rec.Downloaded {
			t.Fatalf("expected %s pushed and released, got %+v", id, rec)
		}
		if rec.UploadedVideoID != "remote-"+id {
			t.Fatalf("unexpected uploaded id %q", rec.UploadedVideoID)
		}
		if h.layout.HasAny(id) {
			t.Fatalf("expected local files of %s removed", id)
		}
		if h.uploader.thumbnails["remote-"+id] != 1 {
			t.Fatalf("expected thumbnail set for %s", id)
		}
	}
	if got := h.consumed(t, "upload-a"); got != 9000 {
		t.Fatalf("expected upload-a untouched at 9000, got %d", got)
	}
	if got := h.consumed(t, "upload-b"); got != 3300 {
		t.Fatalf("expected upload-b charged 3300, got %d", got)
	}
	if !h.notifier.has(notifications.EventVideoArchived) || !h.notifier.has(notifications.EventRunCompleted) {
		t.Fatalf("expected archived and run notifications, got %v", h.notifier.events)
	}
}

func TestRunIsIdempotentOnceArchived(t *testing.T) {
	h := newHarness(t, "upload-a")
	testsupport.MustProvision(t, h.store, store.RoleUpload, 10000, 0, "upload-a")
	testsupport.MustUpsertVideos(t, h.store, testsupport.NewVideo("v1", 0), testsupport.NewVideo("v2", 1))

	ctx := context.Background()
	if _, err := h.orch.Run(ctx, workflow.RunOptions{Upload: true}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	before := map[string]*store.VideoRecord{"v1": h.get(t, "v1"), "v2": h.get(t, "v2")}
	second, err := h.orch.Run(ctx, workflow.RunOptions{Upload: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if total := second.Totals(); total.Processed != 0 || total.Failed != 0 {
		t.Fatalf("expected no work on second run, got %+v", total)
	}
	if h.uploader.inserts["v1"] != 1 || h.uploader.inserts["v2"] != 1 {
		t.Fatalf("expected one insert per video, got %v", h.uploader.inserts)
	}
	if want := 2 * quota.UploadCost(true); h.consumed(t, "upload-a") != want {
		t.Fatalf("expected %d units, got %d", want, h.consumed(t, "upload-a"))
	}
	for id, prev := range before {
		got := h.get(t, id)
		if pipeline.StateOf(*prev) != pipeline.StatePushed || prev.UploadedVideoID == "" {
			t.Fatalf("expected %s archived after first run, got %+v", id, prev)
		}
		if got.Downloaded != prev.Downloaded || got.Pushed != prev.Pushed ||
			got.UploadedVideoID != prev.UploadedVideoID || !got.UpdatedAt.Equal(prev.UpdatedAt) {
			t.Fatalf("second run rewrote %s: before %+v, after %+v", id, prev, got)
		}
	}
}

func TestRunWithoutUploadOnlyDownloadsOldestFirst(t *testing.T) {
	h := newHarness(t)
	testsupport.MustUpsertVideos(t, h.store,
		testsupport.NewVideo("late", 5),
		testsupport.NewVideo("early", 1),
		testsupport.NewVideo("mid", 3),
	)

	summary, err := h.orch.Run(context.Background(), workflow.RunOptions{Count: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Main.Processed != 2 {
		t.Fatalf("expected two downloads, got %+v", summary.Main)
	}
	if got := h.fetcher.videos; len(got) != 2 || got[0] != "early" || got[1] != "mid" {
		t.Fatalf("expected early then mid, got %v", got)
	}
	if pipeline.StateOf(*h.get(t, "early")) != pipeline.StateDownloaded {
		t.Fatalf("expected early downloaded")
	}
	if pipeline.StateOf(*h.get(t, "late")) != pipeline.StatePending {
		t.Fatalf("expected late still pending")
	}
	if len(h.uploader.inserts) != 0 {
		t.Fatalf("expected no uploads, got %v", h.uploader.inserts)
	}
}

func TestRunIsolatesPerVideoFailures(t *testing.T) {
	h := newHarness(t, "upload-a")
	testsupport.MustProvision(t, h.store, store.RoleUpload, 10000, 0, "upload-a")
	testsupport.MustUpsertVideos(t, h.store,
		testsupport.NewVideo("broken", 0),
		testsupport.NewVideo("rejected", 1),
		testsupport.NewVideo("fine", 2),
	)
	h.fetcher.fail["broken"] = services.Wrap(services.ErrExternalTool, "media", "yt-dlp", "exit 1", nil)
	h.uploader.failInsert["rejected"] = &transfer.StatusError{Code: 400, Body: "invalid"}

	summary, err := h.orch.Run(context.Background(), workflow.RunOptions{Upload: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Main.Processed != 1 || summary.Main.Failed != 2 {
		t.Fatalf("unexpected summary %+v", summary.Main)
	}
	if pipeline.StateOf(*h.get(t, "broken")) != pipeline.StatePending || h.layout.HasAny("broken") {
		t.Fatalf("expected broken pending without files")
	}
	rejected := h.get(t, "rejected")
	if pipeline.StateOf(*rejected) != pipeline.StateDownloaded {
		t.Fatalf("expected rejected to stay downloaded, got %s", pipeline.StateOf(*rejected))
	}
	if video, _ := h.layout.Files("rejected"); !video {
		t.Fatalf("expected rejected media kept for recovery")
	}
	if pipeline.StateOf(*h.get(t, "fine")) != pipeline.StatePushed {
		t.Fatalf("expected fine pushed")
	}
	if !h.notifier.has(notifications.EventError) {
		t.Fatalf("expected error notification")
	}

	// The next run retries the rejected upload without downloading again.
	delete(h.uploader.failInsert, "rejected")
	delete(h.fetcher.fail, "broken")
	downloadsBefore := len(h.fetcher.videos)
	second, err := h.orch.Run(context.Background(), workflow.RunOptions{Count: 0, Upload: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Recovery.Processed != 1 || second.Main.Processed != 1 {
		t.Fatalf("unexpected second summary %+v", second)
	}
	if len(h.fetcher.videos) != downloadsBefore+1 {
		t.Fatalf("expected only broken downloaded again, got %v", h.fetcher.videos)
	}
}

func TestRunRevertsDownloadedRecordWithoutFiles(t *testing.T) {
	h := newHarness(t, "upload-a")
	testsupport.MustProvision(t, h.store, store.RoleUpload, 10000, 0, "upload-a")
	h.seedDownloaded(t, testsupport.NewVideo("gone", 0))
	if err := os.Remove(h.layout.VideoPath("gone")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	summary, err := h.orch.Run(context.Background(), workflow.RunOptions{Upload: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Recovery.Skipped != 1 {
		t.Fatalf("expected recovery skip, got %+v", summary.Recovery)
	}
	if summary.Main.Processed != 1 || h.uploader.inserts["gone"] != 1 {
		t.Fatalf("expected main pass to redownload and push, got %+v inserts %v", summary.Main, h.uploader.inserts)
	}
}

func TestRunFinishesInterruptedCleanup(t *testing.T) {
	h := newHarness(t, "upload-a")
	testsupport.MustProvision(t, h.store, store.RoleUpload, 10000, 0, "upload-a")
	h.seedDownloaded(t, testsupport.NewVideo("done", 0))
	if err := h.store.MarkPushed(context.Background(), "done", "remote-done"); err != nil {
		t.Fatalf("MarkPushed: %v", err)
	}

	summary, err := h.orch.Run(context.Background(), workflow.RunOptions{Upload: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Recovery.Processed != 1 {
		t.Fatalf("expected cleanup recovered, got %+v", summary.Recovery)
	}
	if rec := h.get(t, "done"); rec.Downloaded || h.layout.HasAny("done") {
		t.Fatalf("expected files released")
	}
	if len(h.uploader.inserts) != 0 {
		t.Fatalf("expected no upload, got %v", h.uploader.inserts)
	}
}

func TestRunWaitsWhenNoUploaderHasCapacity(t *testing.T) {
	h := newHarness(t, "upload-a")
	testsupport.MustProvision(t, h.store, store.RoleUpload, 10000, 9000, "upload-a")
	testsupport.MustUpsertVideos(t, h.store, testsupport.NewVideo("big", 0))

	summary, err := h.orch.Run(context.Background(), workflow.RunOptions{Upload: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Main.Failed != 1 {
		t.Fatalf("expected the interrupted wait to fail the video, got %+v", summary.Main)
	}
	if pipeline.StateOf(*h.get(t, "big")) != pipeline.StateDownloaded {
		t.Fatalf("expected video kept downloaded for the next run")
	}
	if got := h.consumed(t, "upload-a"); got != 9000 {
		t.Fatalf("expected no units reserved, got %d", got)
	}
}

func TestRunRejectsNegativeCount(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Run(context.Background(), workflow.RunOptions{Count: -1})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	h := newHarness(t)
	testsupport.MustUpsertVideos(t, h.store, testsupport.NewVideo("v1", 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.Run(ctx, workflow.RunOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(h.fetcher.videos) != 0 {
		t.Fatalf("expected no downloads after cancel")
	}
}

func TestRunSweepsOrphanedStagingFiles(t *testing.T) {
	h := newHarness(t)
	h.seedDownloaded(t, testsupport.NewVideo("abc", 0))
	testsupport.WriteFile(t, h.layout.VideoPath("stale"), 16)

	summary, err := h.orch.Run(context.Background(), workflow.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Swept.Removed) != 1 || summary.Swept.Bytes != 16 {
		t.Fatalf("unexpected sweep %+v", summary.Swept)
	}
	if h.layout.HasAny("stale") {
		t.Fatal("expected stale file removed")
	}
	if video, _ := h.layout.Files("abc"); !video {
		t.Fatal("expected downloaded media kept")
	}
}
