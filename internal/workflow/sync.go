package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ytarchive/internal/logging"
	"ytarchive/internal/notifications"
	"ytarchive/internal/services"
	"ytarchive/internal/store"
	"ytarchive/internal/youtube"
)

// SyncSummary counts the outcome of one catalog sync.
type SyncSummary struct {
	Listed   int
	New      int
	Updated  int
	Skipped  int
	Duration time.Duration
}

// Sync lists the source channel, fetches metadata for every id, classifies new ids and
// upserts the records. Pipeline flags of known records are preserved. List calls are
// billed to the reader account; running out of reader quota aborts the sync.
func (o *Orchestrator) Sync(ctx context.Context) (SyncSummary, error) {
	var summary SyncSummary
	if err := o.canSync(); err != nil {
		return summary, err
	}
	start := time.Now()
	ctx = services.WithPass(ctx, "sync")
	logger := logging.WithContext(ctx, o.logger)
	meter := o.pool.ReaderMeter()

	ids, err := o.catalog.ListVideoIDs(ctx, o.settings.ChannelID, meter)
	if err != nil {
		return summary, o.syncFailure(ctx, err)
	}
	summary.Listed = len(ids)

	known, err := o.store.KnownIDs(ctx, ids)
	if err != nil {
		return summary, fmt.Errorf("load known videos: %w", err)
	}

	videos, err := o.catalog.FetchVideos(ctx, ids, meter)
	if err != nil {
		return summary, o.syncFailure(ctx, err)
	}

	var fresh []youtube.Video
	records := make([]store.VideoRecord, 0, len(videos))
	for _, video := range videos {
		if class, ok := known[video.Record.ID]; ok {
			rec := video.Record
			rec.Classification = class
			records = append(records, rec)
			summary.Updated++
			continue
		}
		fresh = append(fresh, video)
	}

	classified, skipped := o.classify(ctx, fresh)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	records = append(records, classified...)
	summary.New = len(classified)
	summary.Skipped = skipped

	if err := o.store.UpsertVideos(ctx, records); err != nil {
		return summary, fmt.Errorf("store synced videos: %w", err)
	}
	summary.Duration = time.Since(start)

	logger.Info("catalog sync complete",
		logging.String(logging.FieldEventType, "sync_completed"),
		logging.Int("listed", summary.Listed),
		logging.Int("new", summary.New),
		logging.Int("updated", summary.Updated),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("elapsed", summary.Duration.Round(time.Millisecond)),
	)
	o.publish(ctx, notifications.EventSyncCompleted, notifications.Payload{
		"listed":  summary.Listed,
		"new":     summary.New,
		"updated": summary.Updated,
	})
	return summary, nil
}

// classify probes fresh videos on a bounded worker pool. A video whose probe fails is
// left out of this sync and retried on the next one.
func (o *Orchestrator) classify(ctx context.Context, fresh []youtube.Video) ([]store.VideoRecord, int) {
	if len(fresh) == 0 {
		return nil, 0
	}
	type outcome struct {
		rec store.VideoRecord
		ok  bool
	}
	results := make([]outcome, len(fresh))
	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := min(o.settings.ClassifyWorkers, len(fresh))
	for range workers {
		wg.Go(func() {
			for i := range jobs {
				video := fresh[i]
				isShort, err := o.classifier.IsShort(ctx, video.Record.ID)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						logging.WarnWithContext(o.logger, "shorts probe failed; video skipped this sync", "classify_failed",
							logging.String(logging.FieldVideoID, video.Record.ID),
							logging.Error(err),
							logging.String(logging.FieldErrorHint, "probe endpoint throttled or unreachable"),
							logging.String(logging.FieldImpact, "video will be ingested on the next sync"),
						)
					}
					continue
				}
				rec := video.Record
				rec.Classification = store.Classify(isShort, video.LiveDetails)
				results[i] = outcome{rec: rec, ok: true}
			}
		})
	}
	for i := range fresh {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	records := make([]store.VideoRecord, 0, len(fresh))
	for _, res := range results {
		if res.ok {
			records = append(records, res.rec)
		}
	}
	return records, len(fresh) - len(records)
}

func (o *Orchestrator) syncFailure(ctx context.Context, err error) error {
	if errors.Is(err, store.ErrQuotaExceeded) {
		account := o.pool.ReaderAccount()
		logging.ErrorWithContext(o.logger, "reader quota exhausted; sync aborted", "quota_exhausted",
			logging.String(logging.FieldAccount, account),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "wait for the daily reset or raise the reader cap"),
		)
		o.publish(ctx, notifications.EventQuotaExhausted, notifications.Payload{
			"account": account,
			"detail":  "catalog sync aborted",
		})
	}
	return fmt.Errorf("sync catalog: %w", err)
}
