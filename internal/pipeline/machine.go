package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ytarchive/internal/logging"
	"ytarchive/internal/media"
	"ytarchive/internal/staging"
	"ytarchive/internal/store"
)

// ErrMissingFiles reports a Downloaded record whose media file is gone.
var ErrMissingFiles = errors.New("local media missing")

// Store is the durable state the machine drives.
type Store interface {
	GetVideo(ctx context.Context, id string) (*store.VideoRecord, error)
	MarkDownloaded(ctx context.Context, id string) error
	MarkPushed(ctx context.Context, id, uploadedVideoID string) error
	ReleaseLocal(ctx context.Context, id string) error
	NextPending(ctx context.Context, limit int) ([]*store.VideoRecord, error)
	NextDownloadedUnpushed(ctx context.Context) ([]*store.VideoRecord, error)
	PushedWithLocalFiles(ctx context.Context) ([]*store.VideoRecord, error)
}

// Fetcher writes source media and thumbnails to local files.
type Fetcher interface {
	FetchVideo(ctx context.Context, id, dir string) (string, error)
	FetchThumbnail(ctx context.Context, id, dir, sourceURL string) (string, error)
}

// LocalFiles are the cached files of a Downloaded video. Thumbnail is empty when
// none could be fetched.
type LocalFiles struct {
	Video     string
	Thumbnail string
}

// Machine moves videos through Pending, Downloaded and Pushed. Every transition is a
// conditional store update, and local files are kept in lockstep with the
// downloaded flag.
type Machine struct {
	store   Store
	fetcher Fetcher
	layout  media.Layout
	logger  *slog.Logger
}

// New builds a state machine over st that caches files under layout.
func New(st Store, fetcher Fetcher, layout media.Layout, logger *slog.Logger) *Machine {
	return &Machine{
		store:   st,
		fetcher: fetcher,
		layout:  layout,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Layout exposes the local cache layout.
func (m *Machine) Layout() media.Layout { return m.layout }

// Download fetches media and thumbnail for a Pending record and marks it Downloaded.
// On any failure the partial files are removed and the record stays Pending.
func (m *Machine) Download(ctx context.Context, rec store.VideoRecord) (LocalFiles, error) {
	if state := StateOf(rec); state != StatePending {
		return LocalFiles{}, fmt.Errorf("download %s from %s: %w", rec.ID, state, store.ErrInvalidTransition)
	}
	if err := m.layout.Ensure(); err != nil {
		return LocalFiles{}, err
	}
	logger := logging.WithContext(ctx, m.logger)
	// A Pending record owns no files; clear leftovers of an interrupted download.
	if err := m.layout.Remove(rec.ID); err != nil {
		return LocalFiles{}, fmt.Errorf("clear stale files for %s: %w", rec.ID, err)
	}

	start := time.Now()
	videoPath, err := m.fetcher.FetchVideo(ctx, rec.ID, m.layout.VideosDir())
	if err != nil {
		m.discard(logger, rec.ID)
		return LocalFiles{}, fmt.Errorf("download media: %w", err)
	}
	files := LocalFiles{Video: videoPath}

	if rec.ThumbnailURL != "" {
		thumbPath, err := m.fetcher.FetchThumbnail(ctx, rec.ID, m.layout.ThumbnailsDir(), rec.ThumbnailURL)
		if err != nil {
			logger.Warn("thumbnail download failed; continuing without thumbnail",
				logging.Error(err),
				logging.String(logging.FieldEventType, "thumbnail_download_failed"),
				logging.String(logging.FieldErrorHint, "check the thumbnail url"),
				logging.String(logging.FieldImpact, "video will be uploaded without a custom thumbnail"),
			)
		} else {
			files.Thumbnail = thumbPath
		}
	}

	if err := m.store.MarkDownloaded(ctx, rec.ID); err != nil {
		m.discard(logger, rec.ID)
		return LocalFiles{}, err
	}
	logger.Info("video downloaded",
		logging.String(logging.FieldEventType, "video_downloaded"),
		logging.Bool("thumbnail", files.Thumbnail != ""),
		logging.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
	)
	return files, nil
}

func (m *Machine) discard(logger *slog.Logger, id string) {
	if err := m.layout.Remove(id); err != nil {
		logger.Warn("failed to remove partial download",
			logging.Error(err),
			logging.String(logging.FieldEventType, "partial_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the files under the staging directory manually"),
		)
	}
}

// LocalFiles returns the cached files of id. A missing media file yields
// ErrMissingFiles; a missing thumbnail is tolerated.
func (m *Machine) LocalFiles(id string) (LocalFiles, error) {
	video, thumb := m.layout.Files(id)
	if !video {
		return LocalFiles{}, fmt.Errorf("%s: %w", id, ErrMissingFiles)
	}
	files := LocalFiles{Video: m.layout.VideoPath(id)}
	if thumb {
		files.Thumbnail = m.layout.ThumbnailPath(id)
	}
	return files, nil
}

// MarkPushed records the confirmed remote upload of a Downloaded video.
func (m *Machine) MarkPushed(ctx context.Context, id, remoteID string) error {
	if err := m.store.MarkPushed(ctx, id, remoteID); err != nil {
		return err
	}
	logging.WithContext(ctx, m.logger).Info("video pushed",
		logging.String("uploaded_video_id", remoteID),
		logging.String(logging.FieldEventType, "video_pushed"),
	)
	return nil
}

// Cleanup deletes the local files of id and then clears its downloaded flag. On a
// Pushed record this finishes the upload; on a Downloaded one it is the compensating
// revert to Pending.
func (m *Machine) Cleanup(ctx context.Context, id string) error {
	if err := m.layout.Remove(id); err != nil {
		return fmt.Errorf("remove local files for %s: %w", id, err)
	}
	if err := m.store.ReleaseLocal(ctx, id); err != nil {
		return err
	}
	logging.WithContext(ctx, m.logger).Debug("local files released")
	return nil
}

// Get returns the current record for id.
func (m *Machine) Get(ctx context.Context, id string) (*store.VideoRecord, error) {
	return m.store.GetVideo(ctx, id)
}

// NextPending returns up to limit Pending records, oldest publication first.
func (m *Machine) NextPending(ctx context.Context, limit int) ([]*store.VideoRecord, error) {
	return m.store.NextPending(ctx, limit)
}

// NextDownloadedUnpushed returns the recovery set, oldest publication first.
func (m *Machine) NextDownloadedUnpushed(ctx context.Context) ([]*store.VideoRecord, error) {
	return m.store.NextDownloadedUnpushed(ctx)
}

// PushedWithLocalFiles returns pushed records whose cleanup never completed.
func (m *Machine) PushedWithLocalFiles(ctx context.Context) ([]*store.VideoRecord, error) {
	return m.store.PushedWithLocalFiles(ctx)
}

// SweepOrphans removes cached files that belong to no Downloaded record.
func (m *Machine) SweepOrphans(ctx context.Context) (staging.CleanupResult, error) {
	unpushed, err := m.store.NextDownloadedUnpushed(ctx)
	if err != nil {
		return staging.CleanupResult{}, fmt.Errorf("list downloaded records: %w", err)
	}
	pushed, err := m.store.PushedWithLocalFiles(ctx)
	if err != nil {
		return staging.CleanupResult{}, fmt.Errorf("list pushed records: %w", err)
	}
	owned := make(map[string]struct{}, len(unpushed)+len(pushed))
	for _, rec := range append(unpushed, pushed...) {
		owned[rec.ID] = struct{}{}
	}
	dirs := []string{m.layout.VideosDir(), m.layout.ThumbnailsDir()}
	return staging.CleanOrphaned(ctx, dirs, owned, m.logger), nil
}
