package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const videoColumns = "id, classification, title, description, published_at, scheduled_start, actual_start, actual_end, category_id, tags_json, thumbnail_url, view_count, like_count, comment_count, downloaded, pushed, uploaded_video_id, synced_at, updated_at"

// metadataColumns are refreshed on every sync. Classification and pipeline flags are not.
var metadataColumns = []string{
	"title", "description", "published_at", "scheduled_start", "actual_start", "actual_end",
	"category_id", "tags_json", "thumbnail_url", "view_count", "like_count", "comment_count",
	"synced_at", "updated_at",
}

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*VideoRecord, error) {
	var (
		id             string
		classification string
		title          sql.NullString
		description    sql.NullString
		publishedRaw   string
		scheduledRaw   sql.NullString
		actualStartRaw sql.NullString
		actualEndRaw   sql.NullString
		categoryID     sql.NullString
		tagsRaw        sql.NullString
		thumbnailURL   sql.NullString
		viewCount      sql.NullInt64
		likeCount      sql.NullInt64
		commentCount   sql.NullInt64
		downloaded     int64
		pushed         int64
		uploadedID     sql.NullString
		syncedRaw      string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&id,
		&classification,
		&title,
		&description,
		&publishedRaw,
		&scheduledRaw,
		&actualStartRaw,
		&actualEndRaw,
		&categoryID,
		&tagsRaw,
		&thumbnailURL,
		&viewCount,
		&likeCount,
		&commentCount,
		&downloaded,
		&pushed,
		&uploadedID,
		&syncedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &VideoRecord{
		ID:              id,
		Classification:  Classification(classification),
		Title:           title.String,
		Description:     description.String,
		ScheduledStart:  parseNullTime(scheduledRaw),
		ActualStart:     parseNullTime(actualStartRaw),
		ActualEnd:       parseNullTime(actualEndRaw),
		CategoryID:      categoryID.String,
		Tags:            decodeTags(tagsRaw),
		ThumbnailURL:    thumbnailURL.String,
		ViewCount:       nullInt64Ptr(viewCount),
		LikeCount:       nullInt64Ptr(likeCount),
		CommentCount:    nullInt64Ptr(commentCount),
		Downloaded:      downloaded != 0,
		Pushed:          pushed != 0,
		UploadedVideoID: uploadedID.String,
	}
	if published, err := parseTimeString(publishedRaw); err == nil {
		rec.PublishedAt = published
	}
	if synced, err := parseTimeString(syncedRaw); err == nil {
		rec.SyncedAt = synced
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

// UpsertVideos inserts new records and refreshes descriptive fields on existing ones.
// Existing classifications and pipeline flags are left untouched.
func (s *Store) UpsertVideos(ctx context.Context, records []VideoRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	for _, rec := range records {
		if strings.TrimSpace(rec.ID) == "" {
			return fmt.Errorf("upsert video: %w: empty id", ErrIntegrityViolation)
		}
		if !rec.Classification.Valid() {
			return fmt.Errorf("upsert video %s: %w: classification %q", rec.ID, ErrIntegrityViolation, rec.Classification)
		}
	}

	query := "INSERT INTO videos (" + videoColumns + ") VALUES (" + makePlaceholders(19) + ") " +
		s.dialect.upsert("id", metadataColumns)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin upsert tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		now := formatTime(s.now())
		for _, rec := range records {
			tags, err := encodeTags(rec.Tags)
			if err != nil {
				return fmt.Errorf("encode tags for %s: %w", rec.ID, err)
			}
			synced := now
			if !rec.SyncedAt.IsZero() {
				synced = formatTime(rec.SyncedAt)
			}
			if _, err := stmt.ExecContext(ctx,
				rec.ID,
				string(rec.Classification),
				rec.Title,
				rec.Description,
				formatTime(rec.PublishedAt),
				nullableTime(rec.ScheduledStart),
				nullableTime(rec.ActualStart),
				nullableTime(rec.ActualEnd),
				nullableString(rec.CategoryID),
				tags,
				nullableString(rec.ThumbnailURL),
				nullableInt64(rec.ViewCount),
				nullableInt64(rec.LikeCount),
				nullableInt64(rec.CommentCount),
				0,
				0,
				nil,
				synced,
				now,
			); err != nil {
				if isBusy(err) {
					return err
				}
				return classifyWriteError("upsert video "+rec.ID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				return err
			}
			return fmt.Errorf("commit upsert: %w", err)
		}
		return nil
	})
}

// GetVideo fetches one record by id. Missing ids return ErrNotFound.
func (s *Store) GetVideo(ctx context.Context, id string) (*VideoRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+videoColumns+" FROM videos WHERE id = ?", id)
	rec, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", id, err)
	}
	return rec, nil
}

// KnownIDs returns the stored classification for every id in ids that already exists.
func (s *Store) KnownIDs(ctx context.Context, ids []string) (map[string]Classification, error) {
	known := make(map[string]Classification, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	ctx = ensureContext(ctx)
	const batch = 500
	for start := 0; start < len(ids); start += batch {
		end := min(start+batch, len(ids))
		chunk := ids[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := s.db.QueryContext(ctx,
			"SELECT id, classification FROM videos WHERE id IN ("+makePlaceholders(len(chunk))+")", args...)
		if err != nil {
			return nil, fmt.Errorf("query known ids: %w", err)
		}
		for rows.Next() {
			var id, classification string
			if err := rows.Scan(&id, &classification); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan known id: %w", err)
			}
			known[id] = Classification(classification)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return known, nil
}

// NextPending returns records eligible for download, oldest first. limit <= 0 returns all.
func (s *Store) NextPending(ctx context.Context, limit int) ([]*VideoRecord, error) {
	query := "SELECT " + videoColumns + " FROM videos WHERE downloaded = 0 AND pushed = 0 ORDER BY published_at ASC, id ASC"
	if limit > 0 {
		return s.queryVideos(ctx, query+" LIMIT ?", limit)
	}
	return s.queryVideos(ctx, query)
}

// NextDownloadedUnpushed returns the recovery set: records with local media that were never pushed.
func (s *Store) NextDownloadedUnpushed(ctx context.Context) ([]*VideoRecord, error) {
	return s.queryVideos(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE downloaded = 1 AND pushed = 0 ORDER BY published_at ASC, id ASC")
}

// PushedWithLocalFiles returns records pushed remotely whose local cleanup never completed.
func (s *Store) PushedWithLocalFiles(ctx context.Context) ([]*VideoRecord, error) {
	return s.queryVideos(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE downloaded = 1 AND pushed = 1 ORDER BY published_at ASC, id ASC")
}

func (s *Store) queryVideos(ctx context.Context, query string, args ...any) ([]*VideoRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var out []*VideoRecord
	for rows.Next() {
		rec, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats counts records by pipeline state and classification.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByClassification: map[Classification]int{}}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT classification, downloaded, pushed, COUNT(1) FROM videos GROUP BY classification, downloaded, pushed")
	if err != nil {
		return stats, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			classification     string
			downloaded, pushed int64
			count              int
		)
		if err := rows.Scan(&classification, &downloaded, &pushed, &count); err != nil {
			return stats, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += count
		stats.ByClassification[Classification(classification)] += count
		switch {
		case pushed != 0 && downloaded != 0:
			stats.Pushed += count
			stats.AwaitingCleanup += count
		case pushed != 0:
			stats.Pushed += count
		case downloaded != 0:
			stats.Downloaded += count
		default:
			stats.Pending += count
		}
	}
	return stats, rows.Err()
}
