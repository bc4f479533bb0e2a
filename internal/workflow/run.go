package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ytarchive/internal/logging"
	"ytarchive/internal/notifications"
	"ytarchive/internal/pipeline"
	"ytarchive/internal/services"
	"ytarchive/internal/staging"
	"ytarchive/internal/store"
)

// RunOptions select what one run does.
type RunOptions struct {
	// Count bounds the main pass; 0 means every pending video.
	Count int
	// Upload pushes downloaded videos and enables the recovery pass.
	Upload bool
	// Sync refreshes the catalog before the passes.
	Sync bool
}

// PassSummary counts per-video outcomes of one pass.
type PassSummary struct {
	Processed int
	Skipped   int
	Failed    int
}

func (p *PassSummary) add(other PassSummary) {
	p.Processed += other.Processed
	p.Skipped += other.Skipped
	p.Failed += other.Failed
}

// RunSummary reports one run.
type RunSummary struct {
	RunID    string
	Swept    staging.CleanupResult
	Sync     *SyncSummary
	Recovery PassSummary
	Main     PassSummary
	Duration time.Duration
}

// Totals sums both passes.
func (s RunSummary) Totals() PassSummary {
	var total PassSummary
	total.add(s.Recovery)
	total.add(s.Main)
	return total
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (p *PassSummary) record(o outcome) {
	switch o {
	case outcomeProcessed:
		p.Processed++
	case outcomeSkipped:
		p.Skipped++
	default:
		p.Failed++
	}
}

// Run sweeps orphaned staging files, performs an optional sync, then the recovery pass and the main pass. Per-video
// failures are counted and never abort the run; store failures and cancellation do.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	summary := RunSummary{RunID: uuid.NewString()}
	start := time.Now()
	ctx = services.WithRequestID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, o.logger)

	if opts.Count < 0 {
		return summary, services.Wrap(services.ErrValidation, "run", "options", fmt.Sprintf("count must be >= 0, got %d", opts.Count), nil)
	}
	if opts.Upload {
		if err := o.canUpload(); err != nil {
			return summary, err
		}
	}

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.Int("count", opts.Count),
		logging.Bool("upload", opts.Upload),
		logging.Bool("sync", opts.Sync),
	)

	finish := func(err error) (RunSummary, error) {
		summary.Duration = time.Since(start)
		o.reportRun(ctx, summary, err)
		return summary, err
	}

	swept, err := o.machine.SweepOrphans(ctx)
	summary.Swept = swept
	if err != nil {
		return finish(err)
	}
	if len(swept.Removed) > 0 {
		logger.Info("reclaimed orphaned staging files",
			logging.Int("files", len(swept.Removed)),
			logging.Int64("bytes", swept.Bytes),
			logging.String(logging.FieldEventType, "staging_swept"),
		)
	}

	if opts.Sync {
		synced, err := o.Sync(ctx)
		if err != nil {
			return finish(err)
		}
		summary.Sync = &synced
	}

	if opts.Upload {
		recovery, err := o.recoveryPass(ctx)
		summary.Recovery = recovery
		if err != nil {
			return finish(err)
		}
	}

	mainSummary, err := o.mainPass(ctx, opts)
	summary.Main = mainSummary
	return finish(err)
}

// recoveryPass finishes work a previous run left behind: cleanup of pushed records
// that still own files, then upload of downloaded but unpushed records.
func (o *Orchestrator) recoveryPass(ctx context.Context) (PassSummary, error) {
	var pass PassSummary
	ctx = services.WithPass(ctx, "recovery")

	leftovers, err := o.machine.PushedWithLocalFiles(ctx)
	if err != nil {
		return pass, fmt.Errorf("list pushed records awaiting cleanup: %w", err)
	}
	for _, rec := range leftovers {
		if err := ctx.Err(); err != nil {
			return pass, err
		}
		vctx, logger := o.videoContext(ctx, rec.ID)
		if err := o.machine.Cleanup(vctx, rec.ID); err != nil {
			o.videoFailed(vctx, logger, "cleanup", err)
			pass.record(outcomeFailed)
			continue
		}
		logger.Info("finished interrupted cleanup", logging.String(logging.FieldEventType, "cleanup_recovered"))
		pass.record(outcomeProcessed)
	}

	pending, err := o.machine.NextDownloadedUnpushed(ctx)
	if err != nil {
		return pass, fmt.Errorf("list recovery set: %w", err)
	}
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return pass, err
		}
		pass.record(o.recoverOne(ctx, rec))
	}
	return pass, nil
}

func (o *Orchestrator) recoverOne(ctx context.Context, rec *store.VideoRecord) outcome {
	vctx, logger := o.videoContext(ctx, rec.ID)
	files, err := o.machine.LocalFiles(rec.ID)
	if err != nil {
		if !errors.Is(err, pipeline.ErrMissingFiles) {
			o.videoFailed(vctx, logger, "recovery", err)
			return outcomeFailed
		}
		logging.WarnWithContext(logger, "downloaded video has no local media; reverting to pending", "recovery_missing_files",
			logging.String(logging.FieldErrorHint, "staging files were removed outside ytarchive"),
			logging.String(logging.FieldImpact, "video will be downloaded again"),
		)
		if err := o.machine.Cleanup(vctx, rec.ID); err != nil {
			o.videoFailed(vctx, logger, "recovery revert", err)
			return outcomeFailed
		}
		return outcomeSkipped
	}
	if err := o.push(vctx, logger, *rec, files); err != nil {
		o.videoFailed(vctx, logger, "upload", err)
		return outcomeFailed
	}
	return outcomeProcessed
}

// mainPass downloads up to opts.Count pending videos, oldest first, and pushes each
// one when uploads are enabled.
func (o *Orchestrator) mainPass(ctx context.Context, opts RunOptions) (PassSummary, error) {
	var pass PassSummary
	ctx = services.WithPass(ctx, "main")
	if err := ctx.Err(); err != nil {
		return pass, err
	}

	pending, err := o.machine.NextPending(ctx, opts.Count)
	if err != nil {
		return pass, fmt.Errorf("list pending videos: %w", err)
	}
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return pass, err
		}
		pass.record(o.processOne(ctx, *rec, opts.Upload))
	}
	return pass, nil
}

func (o *Orchestrator) processOne(ctx context.Context, rec store.VideoRecord, upload bool) outcome {
	vctx, logger := o.videoContext(ctx, rec.ID)
	files, err := o.machine.Download(vctx, rec)
	if err != nil {
		o.videoFailed(vctx, logger, "download", err)
		return outcomeFailed
	}
	if !upload {
		return outcomeProcessed
	}
	if err := o.push(vctx, logger, rec, files); err != nil {
		// Files stay so the next recovery pass retries without downloading again.
		o.videoFailed(vctx, logger, "upload", err)
		return outcomeFailed
	}
	return outcomeProcessed
}

func (o *Orchestrator) videoContext(ctx context.Context, id string) (context.Context, *slog.Logger) {
	ctx = services.WithVideoID(ctx, id)
	return ctx, logging.WithContext(ctx, o.logger)
}

func (o *Orchestrator) videoFailed(ctx context.Context, logger *slog.Logger, step string, err error) {
	if errors.Is(err, context.Canceled) {
		logger.Info("video interrupted by shutdown", logging.String("step", step))
		return
	}
	logger.Error("video failed",
		logging.String("step", step),
		logging.Error(err),
		logging.Alert("video_failure"),
		logging.String(logging.FieldEventType, "video_failed"),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
		logging.String("error_kind", services.Kind(err)),
	)
	id, _ := services.VideoIDFromContext(ctx)
	o.publish(ctx, notifications.EventError, notifications.Payload{
		"context": fmt.Sprintf("%s %s", step, id),
		"error":   err,
	})
}
