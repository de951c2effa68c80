package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/vidx/internal/shared"
)

// VideoStatus is the catalog lifecycle state of a video.
type VideoStatus string

const (
	StatusWanted      VideoStatus = "WANTED"
	StatusQueued      VideoStatus = "QUEUED"
	StatusDownloading VideoStatus = "DOWNLOADING"
	StatusDownloaded  VideoStatus = "DOWNLOADED"
	StatusFailed      VideoStatus = "FAILED"
	StatusIgnored     VideoStatus = "IGNORED"
)

// VideoStatuses lists every recognized status in lifecycle order.
var VideoStatuses = []VideoStatus{
	StatusWanted, StatusQueued, StatusDownloading, StatusDownloaded, StatusFailed, StatusIgnored,
}

// ParseVideoStatus maps s, case-insensitively, onto a recognized status.
func ParseVideoStatus(s string) (VideoStatus, bool) {
	v := VideoStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range VideoStatuses {
		if v == known {
			return v, true
		}
	}
	return "", false
}

// Artist is a catalog performer.
type Artist struct {
	ID        string    `json:"id"`
	Sequence  int       `json:"-"`
	Name      string    `json:"name"`
	Genres    []string  `json:"genres"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Artist) GetID() string           { return a.ID }
func (a *Artist) GetCreatedAt() time.Time { return a.CreatedAt }

func (a *Artist) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: artist name is required", shared.ErrValidation)
	}
	return nil
}

// Video is a catalog item summary carrying every field a [Criteria] can evaluate.
//
// ArtistName and ArtistGenres are denormalized from the owning [Artist] when read.
type Video struct {
	ID           string      `json:"id"`
	Sequence     int         `json:"-"`
	ArtistID     string      `json:"artist_id"`
	ArtistName   string      `json:"artist_name"`
	ArtistGenres []string    `json:"artist_genres,omitempty"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Genres       []string    `json:"genres,omitempty"`
	Year         *int        `json:"year,omitempty"`
	Duration     *int        `json:"duration,omitempty"` // seconds
	Quality      string      `json:"quality,omitempty"`
	Status       VideoStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (v *Video) GetID() string           { return v.ID }
func (v *Video) GetCreatedAt() time.Time { return v.CreatedAt }

func (v *Video) Validate() error {
	if strings.TrimSpace(v.Title) == "" {
		return fmt.Errorf("%w: video title is required", shared.ErrValidation)
	}
	if v.ArtistID == "" {
		return fmt.Errorf("%w: video artist is required", shared.ErrValidation)
	}
	if _, ok := ParseVideoStatus(string(v.Status)); !ok {
		return fmt.Errorf("%w: unknown video status %q", shared.ErrValidation, v.Status)
	}
	if v.Duration != nil && *v.Duration < 0 {
		return fmt.Errorf("%w: video duration cannot be negative", shared.ErrValidation)
	}
	return nil
}

// DurationSeconds returns the duration or 0 when unknown.
func (v *Video) DurationSeconds() int {
	if v.Duration == nil {
		return 0
	}
	return *v.Duration
}
