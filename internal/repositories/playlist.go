package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

const playlistColumns = `
	id, sequence, user_id, name, description, kind, filter_criteria, auto_update, public, featured,
	entry_count, total_duration, last_updated, created_at, updated_at, deleted_at
`

// PlaylistRepository persists [models.Playlist] records.
//
// Handles playlist CRUD operations with soft delete support. The membership variant is
// stored as kind plus filter_criteria and is fixed at creation.
type PlaylistRepository struct {
	db DBTX
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db DBTX) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return err
	}

	criteria, autoUpdate, err := encodeMembership(playlist)
	if err != nil {
		return err
	}

	sequence, err := NextSequence(ctx, r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	playlist.ID = shared.GenerateID()
	playlist.Sequence = sequence

	query := `
		INSERT INTO playlists (id, sequence, user_id, name, description, kind, filter_criteria, auto_update, public, featured,
			entry_count, total_duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		playlist.ID,
		sequence,
		playlist.OwnerID,
		playlist.Name,
		playlist.Description,
		string(playlist.Kind()),
		criteria,
		autoUpdate,
		playlist.Public,
		playlist.Featured,
		playlist.Stats.EntryCount,
		playlist.Stats.TotalDuration,
		playlist.CreatedAt.UTC(),
		playlist.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: playlist %q already exists for this owner", shared.ErrConflict, playlist.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist by ID, excluding soft-deleted playlists
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ? AND deleted_at IS NULL`

	playlist, err := scanPlaylist(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("playlist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist: %w", err)
	}
	return playlist, nil
}

// UpdateMembership replaces the criteria of a DYNAMIC playlist, and its auto-update flag when autoUpdate is
// non-nil. A row whose criteria column is NULL is repaired in place.
//
// Returns [shared.ErrNotDynamic] when the row exists but is STATIC.
func (r *PlaylistRepository) UpdateMembership(ctx context.Context, id string, criteria models.Criteria, autoUpdate *bool) error {
	encoded, err := criteria.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode filter criteria: %w", err)
	}

	var flag sql.NullBool
	if autoUpdate != nil {
		flag = sql.NullBool{Bool: *autoUpdate, Valid: true}
	}

	query := `
		UPDATE playlists
		SET filter_criteria = ?, auto_update = COALESCE(?, auto_update), updated_at = ?
		WHERE id = ? AND kind = 'DYNAMIC' AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, string(encoded), flag, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update playlist criteria: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: playlist %s", shared.ErrNotDynamic, id)
	}
	return nil
}

// UpdateStats writes derived statistics. A non-nil reconciledAt also records the reconciliation time.
func (r *PlaylistRepository) UpdateStats(ctx context.Context, id string, stats models.PlaylistStats, reconciledAt *time.Time) error {
	now := time.Now().UTC()

	var (
		result sql.Result
		err    error
	)
	if reconciledAt != nil {
		result, err = r.db.ExecContext(ctx, `
			UPDATE playlists SET entry_count = ?, total_duration = ?, last_updated = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL
		`, stats.EntryCount, stats.TotalDuration, reconciledAt.UTC(), now, id)
	} else {
		result, err = r.db.ExecContext(ctx, `
			UPDATE playlists SET entry_count = ?, total_duration = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL
		`, stats.EntryCount, stats.TotalDuration, now, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update playlist stats: %w", err)
	}
	return expectRow(result, "playlist", id)
}

// ListByOwner retrieves the owner's playlists ordered by sequence
func (r *PlaylistRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE user_id = ? AND deleted_at IS NULL ORDER BY sequence ASC`
	return r.list(ctx, query, ownerID)
}

// StaleIDs returns the ids of DYNAMIC auto-update playlists never reconciled or last reconciled before cutoff.
//
// Ordered by sequence so a sweep visits playlists in creation order.
func (r *PlaylistRepository) StaleIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		SELECT id
		FROM playlists
		WHERE kind = 'DYNAMIC' AND auto_update = 1 AND deleted_at IS NULL
			AND (last_updated IS NULL OR last_updated < ?)
		ORDER BY sequence ASC
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query stale playlists: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan playlist id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

func (r *PlaylistRepository) list(ctx context.Context, query string, args ...any) ([]*models.Playlist, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

func encodeMembership(p *models.Playlist) (sql.NullString, bool, error) {
	d, ok := p.AsDynamic()
	if !ok {
		return sql.NullString{}, false, nil
	}
	encoded, err := d.Criteria.Encode()
	if err != nil {
		return sql.NullString{}, false, fmt.Errorf("failed to encode filter criteria: %w", err)
	}
	return sql.NullString{String: string(encoded), Valid: true}, d.AutoUpdate, nil
}

func scanPlaylist(row rowScanner) (*models.Playlist, error) {
	var (
		p           models.Playlist
		kind        string
		criteria    sql.NullString
		autoUpdate  bool
		lastUpdated sql.NullTime
		deletedAt   sql.NullTime
	)

	err := row.Scan(&p.ID, &p.Sequence, &p.OwnerID, &p.Name, &p.Description, &kind, &criteria, &autoUpdate,
		&p.Public, &p.Featured, &p.Stats.EntryCount, &p.Stats.TotalDuration, &lastUpdated,
		&p.CreatedAt, &p.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	k, err := models.ParsePlaylistKind(kind)
	if err != nil {
		return nil, err
	}

	switch k {
	case models.KindDynamic:
		// A DYNAMIC row without criteria keeps its kind but is not usable as dynamic membership.
		var d *models.Dynamic
		if criteria.Valid {
			d = &models.Dynamic{AutoUpdate: autoUpdate}
			if d.Criteria, err = models.ParseCriteria([]byte(criteria.String)); err != nil {
				return nil, err
			}
		}
		p.Membership = d
	default:
		p.Membership = models.Static{}
	}

	p.LastUpdated = nullTimePtr(lastUpdated)
	p.DeletedAt = nullTimePtr(deletedAt)
	return &p, nil
}

func expectRow(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound(entity, id)
	}
	return nil
}
