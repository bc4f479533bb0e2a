package workflow

import (
	"context"
	"errors"

	"ytarchive/internal/logging"
	"ytarchive/internal/notifications"
)

func (o *Orchestrator) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			o.logger.Debug("shutting down, notification dropped", logging.String("event", string(event)))
			return
		}
		o.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func (o *Orchestrator) reportRun(ctx context.Context, summary RunSummary, runErr error) {
	totals := summary.Totals()
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_completed"),
		logging.Int("recovery_processed", summary.Recovery.Processed),
		logging.Int("recovery_skipped", summary.Recovery.Skipped),
		logging.Int("recovery_failed", summary.Recovery.Failed),
		logging.Int("processed", summary.Main.Processed),
		logging.Int("skipped", summary.Main.Skipped),
		logging.Int("failed", summary.Main.Failed),
		logging.Duration("elapsed", summary.Duration.Round(1e6)),
	}
	logger := logging.WithContext(ctx, o.logger)
	if runErr != nil {
		attrs = append(attrs, logging.Error(runErr))
		logger.Error("run aborted", logging.Args(attrs...)...)
	} else {
		logger.Info("run complete", logging.Args(attrs...)...)
	}
	// A cancelled context still gets the summary out.
	o.publish(context.WithoutCancel(ctx), notifications.EventRunCompleted, notifications.Payload{
		"processed": totals.Processed,
		"skipped":   totals.Skipped,
		"failed":    totals.Failed,
		"duration":  summary.Duration,
	})
}
