package workflow

import (
	"context"
	"fmt"

	"ytarchive/internal/logging"
	"ytarchive/internal/quota"
	"ytarchive/internal/services"
)

// EditMetadata rewrites the title, description and tags of an archived video from its
// current source record. The update is billed to an upload account like any write.
func (o *Orchestrator) EditMetadata(ctx context.Context, id string) (string, error) {
	if err := o.canUpload(); err != nil {
		return "", err
	}
	ctx = services.WithVideoID(ctx, id)
	rec, err := o.machine.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !rec.Pushed || rec.UploadedVideoID == "" {
		return "", services.Wrap(services.ErrValidation, "edit", "metadata", id+" has not been uploaded yet", nil)
	}
	lease, err := o.pool.SelectUploader(ctx, quota.CostMetadataUpdate)
	if err != nil {
		return "", fmt.Errorf("select uploader: %w", err)
	}
	if err := o.newUploader(lease).UpdateMetadata(ctx, rec.UploadedVideoID, *rec); err != nil {
		return "", err
	}
	logging.WithContext(ctx, o.logger).Info("archived video metadata updated",
		logging.String(logging.FieldEventType, "metadata_updated"),
		logging.String(logging.FieldAccount, lease.Account),
		logging.String("uploaded_video_id", rec.UploadedVideoID),
	)
	return rec.UploadedVideoID, nil
}
