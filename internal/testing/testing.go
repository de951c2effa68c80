// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/repositories"
	"github.com/desertthunder/vidx/internal/shared"
)

// OpenDB creates a migrated in-memory database that is closed when the test ends.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenConfigured(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// Int returns a pointer to n.
func Int(n int) *int { return &n }

// Catalog seeds users, artists and videos for tests.
//
// Videos are stamped one minute apart starting at Base so ordering by recency is deterministic.
type Catalog struct {
	t    *testing.T
	db   *sql.DB
	Base time.Time
	next int
}

// NewCatalog creates a seeding helper over db.
func NewCatalog(t *testing.T, db *sql.DB) *Catalog {
	return &Catalog{t: t, db: db, Base: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// User creates a user with the given email.
func (c *Catalog) User(email string, admin bool) *models.User {
	c.t.Helper()
	user := models.NewUser(email, email, admin)
	if err := repositories.NewUserRepository(c.db).Create(context.Background(), user); err != nil {
		c.t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// Artist creates an artist.
func (c *Catalog) Artist(name string, genres ...string) *models.Artist {
	c.t.Helper()
	artist := &models.Artist{Name: name, Genres: genres}
	if err := repositories.NewArtistRepository(c.db).Create(context.Background(), artist); err != nil {
		c.t.Fatalf("failed to create artist: %v", err)
	}
	return artist
}

// Video creates v by artist, stamping CreatedAt after every previously seeded video unless already set.
func (c *Catalog) Video(artist *models.Artist, v models.Video) *models.Video {
	c.t.Helper()
	v.ArtistID = artist.ID
	if v.CreatedAt.IsZero() {
		c.next++
		v.CreatedAt = c.Base.Add(time.Duration(c.next) * time.Minute)
	}
	if err := repositories.NewVideoRepository(c.db).Create(context.Background(), &v); err != nil {
		c.t.Fatalf("failed to create video: %v", err)
	}
	v.ArtistName = artist.Name
	v.ArtistGenres = artist.Genres
	return &v
}

// EntryVideoIDs returns the playlist's entry video ids as a set.
func (c *Catalog) EntryVideoIDs(playlistID string) map[string]struct{} {
	c.t.Helper()
	ids, err := repositories.NewEntryRepository(c.db).VideoIDs(context.Background(), playlistID)
	if err != nil {
		c.t.Fatalf("failed to list entries: %v", err)
	}
	return ids
}

// IDSet builds a set from ids.
func IDSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// SameSet reports whether a and b contain the same ids.
func SameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}
