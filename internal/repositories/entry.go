package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// compactOffset moves positions out of the way while they are renumbered so UNIQUE(playlist_id, position) holds.
const compactOffset = 1_000_000

// EntryRepository persists [models.PlaylistEntry] rows.
type EntryRepository struct {
	db DBTX
}

// NewEntryRepository creates a new [EntryRepository] with the given database connection
func NewEntryRepository(db DBTX) *EntryRepository {
	return &EntryRepository{db: db}
}

// List retrieves a playlist's entries ordered by position, each with its video populated
func (r *EntryRepository) List(ctx context.Context, playlistID string) ([]models.PlaylistEntry, error) {
	query := `
		SELECT e.id, e.playlist_id, e.video_id, e.position, e.added_by, e.added_at,
			v.id, v.sequence, v.artist_id, a.name, a.genres, v.title, v.description, v.genres,
			v.year, v.duration, v.quality, v.status, v.created_at, v.updated_at
		FROM playlist_entries e
		JOIN videos v ON v.id = e.video_id
		JOIN artists a ON a.id = v.artist_id
		WHERE e.playlist_id = ?
		ORDER BY e.position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist entries: %w", err)
	}
	defer rows.Close()

	var entries []models.PlaylistEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// VideoIDs returns the set of video ids currently in the playlist
func (r *EntryRepository) VideoIDs(ctx context.Context, playlistID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT video_id FROM playlist_entries WHERE playlist_id = ?`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist entries: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan video id: %w", err)
		}
		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// MaxPosition returns the highest position in use, or 0 for an empty playlist
func (r *EntryRepository) MaxPosition(ctx context.Context, playlistID string) (int, error) {
	var maxPos sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(position) FROM playlist_entries WHERE playlist_id = ?`, playlistID).Scan(&maxPos)
	if err != nil {
		return 0, fmt.Errorf("failed to query max position: %w", err)
	}
	return int(maxPos.Int64), nil
}

// Append inserts videoIDs in order at positions following the current maximum and returns the new entries.
func (r *EntryRepository) Append(ctx context.Context, playlistID, addedBy string, videoIDs []string) ([]models.PlaylistEntry, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}

	position, err := r.MaxPosition(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `INSERT INTO playlist_entries (id, playlist_id, video_id, position, added_by, added_at) VALUES (?, ?, ?, ?, ?, ?)`

	entries := make([]models.PlaylistEntry, 0, len(videoIDs))
	for _, videoID := range videoIDs {
		position++
		entry := models.PlaylistEntry{
			ID:         shared.GenerateID(),
			PlaylistID: playlistID,
			VideoID:    videoID,
			Position:   position,
			AddedBy:    addedBy,
			AddedAt:    now,
		}

		_, err := r.db.ExecContext(ctx, query, entry.ID, entry.PlaylistID, entry.VideoID, entry.Position, entry.AddedBy, entry.AddedAt)
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: video %s is already in playlist %s", shared.ErrConflict, videoID, playlistID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert playlist entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DeleteVideos removes the entries for videoIDs and returns how many rows were deleted
func (r *EntryRepository) DeleteVideos(ctx context.Context, playlistID string, videoIDs []string) (int, error) {
	if len(videoIDs) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(videoIDs)+1)
	args = append(args, playlistID)
	for _, id := range videoIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(`DELETE FROM playlist_entries WHERE playlist_id = ? AND video_id IN (%s)`, placeholders(len(videoIDs)))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete playlist entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

// Compact renumbers positions densely as 1..n keeping their relative order.
//
// Positions are first shifted past [compactOffset] and then written back so no two rows collide mid-update.
func (r *EntryRepository) Compact(ctx context.Context, playlistID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE playlist_entries SET position = position + ? WHERE playlist_id = ?`,
		compactOffset, playlistID); err != nil {
		return fmt.Errorf("failed to offset positions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id FROM playlist_entries WHERE playlist_id = ? ORDER BY position ASC`, playlistID)
	if err != nil {
		return fmt.Errorf("failed to query playlist entries: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan entry id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	for i, id := range ids {
		if _, err := r.db.ExecContext(ctx, `UPDATE playlist_entries SET position = ? WHERE id = ?`, i+1, id); err != nil {
			return fmt.Errorf("failed to renumber entry: %w", err)
		}
	}
	return nil
}

// Stats derives entry count and total duration from the playlist's current entries.
// Videos without a known duration contribute zero.
func (r *EntryRepository) Stats(ctx context.Context, playlistID string) (models.PlaylistStats, error) {
	var stats models.PlaylistStats
	query := `
		SELECT COUNT(e.id), COALESCE(SUM(v.duration), 0)
		FROM playlist_entries e
		JOIN videos v ON v.id = e.video_id
		WHERE e.playlist_id = ?
	`
	if err := r.db.QueryRowContext(ctx, query, playlistID).Scan(&stats.EntryCount, &stats.TotalDuration); err != nil {
		return stats, fmt.Errorf("failed to compute playlist stats: %w", err)
	}
	return stats, nil
}

func scanEntry(row rowScanner) (*models.PlaylistEntry, error) {
	var (
		entry        models.PlaylistEntry
		video        models.Video
		artistGenres string
		genres       string
		year         sql.NullInt64
		duration     sql.NullInt64
		status       string
	)

	if err := row.Scan(&entry.ID, &entry.PlaylistID, &entry.VideoID, &entry.Position, &entry.AddedBy, &entry.AddedAt,
		&video.ID, &video.Sequence, &video.ArtistID, &video.ArtistName, &artistGenres,
		&video.Title, &video.Description, &genres, &year, &duration, &video.Quality, &status,
		&video.CreatedAt, &video.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if video.ArtistGenres, err = decodeStrings(artistGenres); err != nil {
		return nil, err
	}
	if video.Genres, err = decodeStrings(genres); err != nil {
		return nil, err
	}
	video.Year = intPtr(year)
	video.Duration = intPtr(duration)
	video.Status = models.VideoStatus(status)

	entry.Video = &video
	return &entry, nil
}
