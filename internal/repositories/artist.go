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

const artistColumns = `id, sequence, name, genres, created_at, updated_at`

// ArtistRepository persists catalog [models.Artist] records.
type ArtistRepository struct {
	db DBTX
}

// NewArtistRepository creates a new [ArtistRepository] with the given database connection
func NewArtistRepository(db DBTX) *ArtistRepository {
	return &ArtistRepository{db: db}
}

// Create inserts a new artist with generated ID and sequence
func (r *ArtistRepository) Create(ctx context.Context, artist *models.Artist) error {
	if err := artist.Validate(); err != nil {
		return err
	}

	sequence, err := NextSequence(ctx, r.db, "artists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	artist.ID = shared.GenerateID()
	artist.Sequence = sequence
	if artist.CreatedAt.IsZero() {
		artist.CreatedAt = now
	}
	artist.UpdatedAt = now

	query := `INSERT INTO artists (id, sequence, name, genres, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query, artist.ID, sequence, artist.Name, encodeStrings(artist.Genres),
		artist.CreatedAt.UTC(), artist.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert artist: %w", err)
	}
	return nil
}

// Get retrieves an artist by ID
func (r *ArtistRepository) Get(ctx context.Context, id string) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE id = ?`

	artist, err := scanArtist(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("artist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artist: %w", err)
	}
	return artist, nil
}

// GetByName retrieves the first artist whose name matches case-insensitively
func (r *ArtistRepository) GetByName(ctx context.Context, name string) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE lower(name) = ? ORDER BY sequence ASC LIMIT 1`

	artist, err := scanArtist(r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(name))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("artist", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artist: %w", err)
	}
	return artist, nil
}

// FindOrCreate returns the artist named name, creating it with genres when absent.
func (r *ArtistRepository) FindOrCreate(ctx context.Context, name string, genres []string) (*models.Artist, error) {
	artist, err := r.GetByName(ctx, name)
	if err == nil {
		return artist, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	artist = &models.Artist{Name: strings.TrimSpace(name), Genres: genres}
	if err := r.Create(ctx, artist); err != nil {
		return nil, err
	}
	return artist, nil
}

// List retrieves all artists ordered by sequence
func (r *ArtistRepository) List(ctx context.Context) ([]*models.Artist, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+artistColumns+` FROM artists ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []*models.Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		artists = append(artists, artist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return artists, nil
}

func scanArtist(row rowScanner) (*models.Artist, error) {
	var (
		artist models.Artist
		genres string
	)
	if err := row.Scan(&artist.ID, &artist.Sequence, &artist.Name, &genres, &artist.CreatedAt, &artist.UpdatedAt); err != nil {
		return nil, err
	}

	decoded, err := decodeStrings(genres)
	if err != nil {
		return nil, err
	}
	artist.Genres = decoded
	return &artist, nil
}
