package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// MarkDownloaded flips a pending record to downloaded.
func (s *Store) MarkDownloaded(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE videos SET downloaded = 1, updated_at = ? WHERE id = ? AND downloaded = 0 AND pushed = 0",
		formatTime(s.now()), id)
	if err != nil {
		return classifyWriteError("mark downloaded "+id, err)
	}
	return s.checkTransition(ctx, res, id, "mark downloaded")
}

// MarkPushed records the remote id for a downloaded record. Local files stay flagged
// until ReleaseLocal runs, so a crash here leaves the record in the cleanup set.
func (s *Store) MarkPushed(ctx context.Context, id, uploadedVideoID string) error {
	uploadedVideoID = strings.TrimSpace(uploadedVideoID)
	if uploadedVideoID == "" {
		return fmt.Errorf("mark pushed %s: %w: empty uploaded video id", id, ErrIntegrityViolation)
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE videos SET pushed = 1, uploaded_video_id = ?, updated_at = ? WHERE id = ? AND downloaded = 1 AND pushed = 0",
		uploadedVideoID, formatTime(s.now()), id)
	if err != nil {
		return classifyWriteError("mark pushed "+id, err)
	}
	return s.checkTransition(ctx, res, id, "mark pushed")
}

// ReleaseLocal clears the downloaded flag after local files are removed. It serves both
// post-push cleanup and the compensating revert of an unpushed download.
func (s *Store) ReleaseLocal(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE videos SET downloaded = 0, updated_at = ? WHERE id = ? AND downloaded = 1",
		formatTime(s.now()), id)
	if err != nil {
		return classifyWriteError("release local "+id, err)
	}
	return s.checkTransition(ctx, res, id, "release local")
}

// checkTransition distinguishes a missing record from a failed precondition when a
// conditional update touched no rows.
func (s *Store) checkTransition(ctx context.Context, res sql.Result, id, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", op, id, err)
	}
	if affected > 0 {
		return nil
	}
	rec, err := s.GetVideo(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	return fmt.Errorf("%s %s: %w (downloaded=%t pushed=%t)", op, id, ErrInvalidTransition, rec.Downloaded, rec.Pushed)
}
