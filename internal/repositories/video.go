package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

const videoSelect = `
	SELECT v.id, v.sequence, v.artist_id, a.name, a.genres, v.title, v.description, v.genres,
		v.year, v.duration, v.quality, v.status, v.created_at, v.updated_at
	FROM videos v
	JOIN artists a ON a.id = v.artist_id
`

// VideoRepository persists catalog [models.Video] records and serves catalog snapshots to the filter engine.
type VideoRepository struct {
	db DBTX
}

// NewVideoRepository creates a new [VideoRepository] with the given database connection
func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create inserts a new video with generated ID and sequence. A zero CreatedAt is set to now.
func (r *VideoRepository) Create(ctx context.Context, video *models.Video) error {
	if video.Status == "" {
		video.Status = models.StatusWanted
	}
	if err := video.Validate(); err != nil {
		return err
	}

	sequence, err := NextSequence(ctx, r.db, "videos")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	video.ID = shared.GenerateID()
	video.Sequence = sequence
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}
	video.UpdatedAt = now

	query := `
		INSERT INTO videos (id, sequence, artist_id, title, description, genres, year, duration, quality, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		video.ID, sequence, video.ArtistID, video.Title, video.Description, encodeStrings(video.Genres),
		nullInt(video.Year), nullInt(video.Duration), video.Quality, string(video.Status),
		video.CreatedAt.UTC(), video.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

// Get retrieves a video by ID with its artist fields populated
func (r *VideoRepository) Get(ctx context.Context, id string) (*models.Video, error) {
	video, err := scanVideo(r.db.QueryRowContext(ctx, videoSelect+` WHERE v.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("video", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query video: %w", err)
	}
	return video, nil
}

// UpdateStatus moves a video to a new lifecycle status
func (r *VideoRepository) UpdateStatus(ctx context.Context, id string, status models.VideoStatus) error {
	if _, ok := models.ParseVideoStatus(string(status)); !ok {
		return fmt.Errorf("%w: unknown video status %q", shared.ErrValidation, status)
	}

	result, err := r.db.ExecContext(ctx, `UPDATE videos SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound("video", id)
	}
	return nil
}

// List retrieves every catalog video, most recently added first
func (r *VideoRepository) List(ctx context.Context) ([]models.Video, error) {
	return r.query(ctx, videoSelect+` ORDER BY v.created_at DESC, v.sequence ASC`)
}

// Candidates returns the catalog subset that can possibly satisfy criteria, most recently added first.
//
// Range, quality and status groups are pushed down into SQL. The result is a superset of the matches:
// genre, artist and keyword groups are left to the filter engine, which remains authoritative.
func (r *VideoRepository) Candidates(ctx context.Context, criteria models.Criteria) ([]models.Video, error) {
	var (
		where []string
		args  []any
	)

	addRange := func(column string, rng *models.Range) {
		if rng == nil {
			return
		}
		if rng.Min != nil {
			where = append(where, column+" >= ?")
			args = append(args, *rng.Min)
		}
		if rng.Max != nil {
			where = append(where, column+" <= ?")
			args = append(args, *rng.Max)
		}
		where = append(where, column+" IS NOT NULL")
	}
	addRange("v.year", criteria.YearRange)
	addRange("v.duration", criteria.DurationRange)

	if len(criteria.Quality) > 0 {
		where = append(where, fmt.Sprintf("v.quality IN (%s)", placeholders(len(criteria.Quality))))
		for _, q := range criteria.Quality {
			args = append(args, q)
		}
	}

	var statuses []any
	for _, s := range criteria.Status {
		if status, ok := models.ParseVideoStatus(s); ok {
			statuses = append(statuses, string(status))
		}
	}
	if len(statuses) > 0 {
		where = append(where, fmt.Sprintf("v.status IN (%s)", placeholders(len(statuses))))
		args = append(args, statuses...)
	}

	query := videoSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY v.created_at DESC, v.sequence ASC"

	return r.query(ctx, query, args...)
}

func (r *VideoRepository) query(ctx context.Context, query string, args ...any) ([]models.Video, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, *video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return videos, nil
}

func scanVideo(row rowScanner) (*models.Video, error) {
	var (
		video        models.Video
		artistGenres string
		genres       string
		year         sql.NullInt64
		duration     sql.NullInt64
		status       string
	)

	if err := row.Scan(&video.ID, &video.Sequence, &video.ArtistID, &video.ArtistName, &artistGenres,
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
	return &video, nil
}
