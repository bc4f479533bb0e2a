package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ytarchive/internal/logging"
	"ytarchive/internal/notifications"
	"ytarchive/internal/pipeline"
	"ytarchive/internal/quota"
	"ytarchive/internal/store"
	"ytarchive/internal/transfer"
)

// push uploads a Downloaded video and its thumbnail, records the push and then
// releases the local files. The push is durable before any file is deleted.
func (o *Orchestrator) push(ctx context.Context, logger *slog.Logger, rec store.VideoRecord, files pipeline.LocalFiles) error {
	cost := quota.UploadCost(files.Thumbnail != "")
	lease, err := o.pool.SelectUploader(ctx, cost)
	if err != nil {
		return fmt.Errorf("select uploader: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldAccount, lease.Account))
	uploader := o.newUploader(lease)

	video, err := transfer.OpenFile(files.Video, "video/mp4")
	if err != nil {
		return err
	}
	defer video.Close()

	start := time.Now()
	result, err := transfer.Upload(ctx, video.Payload, func(ctx context.Context) (transfer.Session, error) {
		return uploader.OpenVideoInsert(ctx, rec, video.Payload)
	}, o.transferOptions(logger))
	if err != nil {
		return fmt.Errorf("upload video: %w", err)
	}
	remoteID, err := uploader.RemoteID(result.Body)
	if err != nil {
		return err
	}
	if err := o.machine.MarkPushed(ctx, rec.ID, remoteID); err != nil {
		return fmt.Errorf("record push of %s as %s: %w", rec.ID, remoteID, err)
	}
	logger.Info("video uploaded",
		logging.String(logging.FieldEventType, "video_uploaded"),
		logging.String("uploaded_video_id", remoteID),
		logging.Int64("size_bytes", result.Size),
		logging.Int("retries", result.Retries),
		logging.Duration("elapsed", time.Since(start).Round(time.Second)),
	)

	if files.Thumbnail != "" {
		o.pushThumbnail(ctx, logger, uploader, remoteID, files.Thumbnail)
	}
	o.publish(ctx, notifications.EventVideoArchived, notifications.Payload{
		"title":           rec.Title,
		"uploadedVideoId": remoteID,
	})

	if err := o.machine.Cleanup(ctx, rec.ID); err != nil {
		logging.WarnWithContext(logger, "local cleanup failed after push", "cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check staging directory permissions"),
			logging.String(logging.FieldImpact, "cleanup is retried by the next recovery pass"),
		)
	}
	return nil
}

// pushThumbnail sets the custom thumbnail. The video is already recorded as pushed,
// so failures are logged and otherwise ignored.
func (o *Orchestrator) pushThumbnail(ctx context.Context, logger *slog.Logger, uploader Uploader, remoteID, path string) {
	thumb, err := transfer.OpenFile(path, "image/jpeg")
	if err != nil {
		logging.WarnWithContext(logger, "thumbnail unavailable", "thumbnail_failed", logging.Error(err))
		return
	}
	defer thumb.Close()
	_, err = transfer.Upload(ctx, thumb.Payload, func(ctx context.Context) (transfer.Session, error) {
		return uploader.OpenThumbnailSet(ctx, remoteID, thumb.Payload)
	}, o.transferOptions(logger))
	if err != nil {
		logging.WarnWithContext(logger, "thumbnail upload failed", "thumbnail_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set the thumbnail manually in studio"),
			logging.String(logging.FieldImpact, "video keeps the platform generated thumbnail"),
		)
	}
}

func (o *Orchestrator) transferOptions(logger *slog.Logger) transfer.Options {
	opts := o.settings.Transfer
	opts.Logger = logger
	logSink := transfer.LogProgress(logger)
	if extra := o.settings.Transfer.Progress; extra != nil {
		opts.Progress = func(p transfer.Progress) {
			logSink(p)
			extra(p)
		}
	} else {
		opts.Progress = logSink
	}
	return opts
}
