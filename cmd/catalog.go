package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/repositories"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/ui"
	"github.com/urfave/cli/v3"
)

// catalogRecord is one video in an import file. The artist is created on first sight.
type catalogRecord struct {
	Artist       string     `json:"artist"`
	ArtistGenres []string   `json:"artist_genres"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Genres       []string   `json:"genres"`
	Year         *int       `json:"year"`
	Duration     *int       `json:"duration"`
	Quality      string     `json:"quality"`
	Status       string     `json:"status"`
	CreatedAt    *time.Time `json:"created_at"`
}

// UserAdd creates a user.
func (r *Runner) UserAdd(ctx context.Context, cmd *cli.Command) error {
	email := strings.TrimSpace(cmd.StringArg("email"))
	if email == "" {
		return fmt.Errorf("%w: email is required", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	name := cmd.String("name")
	if name == "" {
		name = email
	}

	user := models.NewUser(email, name, cmd.Bool("admin"))
	if err := repositories.NewUserRepository(r.db).Create(ctx, user); err != nil {
		return err
	}

	r.logger.Info("created user", "user", user.ID, "email", user.Email, "admin", user.Admin)
	return r.writePlain("%s user %s (%s)\n", ui.OK("✓"), user.Email, user.ID)
}

// UserList prints all users.
func (r *Runner) UserList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	users, err := repositories.NewUserRepository(r.db).List(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(users, true)
	}

	r.writePlainHeader(fmt.Sprintf("Users (%d)", len(users)))
	for _, u := range users {
		role := ""
		if u.Admin {
			role = ui.Warn(" admin")
		}
		r.writePlain("%s  %s%s\n", u.ID, u.Email, role)
	}
	return nil
}

// CatalogImport loads videos from a JSON array of records in a single transaction.
func (r *Runner) CatalogImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path to a JSON file is required", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}

	var records []catalogRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("%w: malformed catalog file: %v", shared.ErrInvalidInput, err)
	}

	if err := r.open(); err != nil {
		return err
	}

	imported, err := importCatalog(ctx, r.db, records)
	if err != nil {
		return err
	}

	r.logger.Info("imported catalog", "path", path, "videos", imported)
	return r.writePlain("%s imported %d videos\n", ui.OK("✓"), imported)
}

func importCatalog(ctx context.Context, db *sql.DB, records []catalogRecord) (int, error) {
	var imported int
	err := repositories.WithTx(ctx, db, func(tx *sql.Tx) error {
		artists := repositories.NewArtistRepository(tx)
		videos := repositories.NewVideoRepository(tx)

		for i, rec := range records {
			artist, err := artists.FindOrCreate(ctx, rec.Artist, rec.ArtistGenres)
			if err != nil {
				return fmt.Errorf("record %d: %w", i+1, err)
			}

			video := &models.Video{
				ArtistID:    artist.ID,
				Title:       rec.Title,
				Description: rec.Description,
				Genres:      rec.Genres,
				Year:        rec.Year,
				Duration:    rec.Duration,
				Quality:     rec.Quality,
			}
			if rec.Status != "" {
				status, ok := models.ParseVideoStatus(rec.Status)
				if !ok {
					return fmt.Errorf("record %d: %w: unknown status %q", i+1, shared.ErrValidation, rec.Status)
				}
				video.Status = status
			}
			if rec.CreatedAt != nil {
				video.CreatedAt = rec.CreatedAt.UTC()
			}

			if err := videos.Create(ctx, video); err != nil {
				return fmt.Errorf("record %d: %w", i+1, err)
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}

// CatalogList prints the catalog newest first.
func (r *Runner) CatalogList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	videos, err := repositories.NewVideoRepository(r.db).List(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(videos, true)
	}

	r.writePlainHeader(fmt.Sprintf("Catalog (%d videos)", len(videos)))
	for _, v := range videos {
		year := "----"
		if v.Year != nil {
			year = fmt.Sprintf("%d", *v.Year)
		}
		r.writePlain("%s  %s  %s - %s [%s] %s\n", v.ID, year, v.ArtistName, v.Title,
			shared.FormatDuration(v.DurationSeconds()), ui.Help(string(v.Status)))
	}
	return nil
}

// CatalogStatus moves a video to another lifecycle status.
func (r *Runner) CatalogStatus(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	raw := cmd.StringArg("status")
	if id == "" || raw == "" {
		return fmt.Errorf("%w: video id and status are required", shared.ErrMissingArgument)
	}

	status, ok := models.ParseVideoStatus(raw)
	if !ok {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, raw)
	}

	if err := r.open(); err != nil {
		return err
	}
	if err := repositories.NewVideoRepository(r.db).UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	return r.writePlain("%s %s is now %s\n", ui.OK("✓"), id, status)
}
