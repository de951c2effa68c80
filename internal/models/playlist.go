package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/vidx/internal/shared"
)

// PlaylistKind tags the [Membership] variant of a playlist.
type PlaylistKind string

const (
	KindStatic  PlaylistKind = "STATIC"
	KindDynamic PlaylistKind = "DYNAMIC"
)

// ParsePlaylistKind maps a stored kind column onto a [PlaylistKind].
func ParsePlaylistKind(s string) (PlaylistKind, error) {
	switch k := PlaylistKind(strings.ToUpper(s)); k {
	case KindStatic, KindDynamic:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown playlist kind %q", shared.ErrValidation, s)
	}
}

// Membership is how a playlist's entries are decided. It is either [Static] or [Dynamic].
type Membership interface {
	Kind() PlaylistKind
	membership()
}

// Static membership is curated by hand. It never carries criteria.
type Static struct{}

func (Static) Kind() PlaylistKind { return KindStatic }
func (Static) membership()        {}

// Dynamic membership is computed from Criteria on every reconciliation.
type Dynamic struct {
	Criteria   Criteria
	AutoUpdate bool
}

func (*Dynamic) Kind() PlaylistKind { return KindDynamic }
func (*Dynamic) membership()        {}

// PlaylistStats are derived from the entries and recomputed after every mutation.
type PlaylistStats struct {
	EntryCount    int `json:"entry_count"`
	TotalDuration int `json:"total_duration"` // seconds
}

// Playlist is a named, ordered collection of catalog videos.
type Playlist struct {
	ID          string
	Sequence    int
	OwnerID     string
	Name        string
	Description string
	Public      bool
	Featured    bool
	Membership  Membership
	Stats       PlaylistStats
	LastUpdated *time.Time // last reconciliation, nil until first population
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// NewStaticPlaylist creates a hand-curated playlist.
func NewStaticPlaylist(ownerID, name, description string, public bool) *Playlist {
	now := time.Now().UTC()
	return &Playlist{
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		Public:      public,
		Membership:  Static{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewDynamicPlaylist creates a playlist whose entries follow criteria.
func NewDynamicPlaylist(ownerID, name, description string, public bool, criteria Criteria, autoUpdate bool) *Playlist {
	p := NewStaticPlaylist(ownerID, name, description, public)
	p.Membership = &Dynamic{Criteria: criteria, AutoUpdate: autoUpdate}
	return p
}

func (p *Playlist) GetID() string           { return p.ID }
func (p *Playlist) GetCreatedAt() time.Time { return p.CreatedAt }

// Kind returns STATIC when no membership is set.
func (p *Playlist) Kind() PlaylistKind {
	if p.Membership == nil {
		return KindStatic
	}
	return p.Membership.Kind()
}

// AsDynamic returns the dynamic membership, or false for static playlists.
func (p *Playlist) AsDynamic() (*Dynamic, bool) {
	d, ok := p.Membership.(*Dynamic)
	return d, ok && d != nil
}

// IsOwnedBy reports whether userID owns the playlist.
func (p *Playlist) IsOwnedBy(userID string) bool {
	return p.OwnerID != "" && p.OwnerID == userID
}

// WantsAutoUpdate reports whether the batch refresh should consider this playlist.
func (p *Playlist) WantsAutoUpdate() bool {
	d, ok := p.AsDynamic()
	return ok && d.AutoUpdate
}

func (p *Playlist) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrValidation)
	}
	if p.OwnerID == "" {
		return fmt.Errorf("%w: playlist owner is required", shared.ErrValidation)
	}
	if d, ok := p.AsDynamic(); ok {
		if err := d.Criteria.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type playlistJSON struct {
	ID             string        `json:"id"`
	OwnerID        string        `json:"owner_id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Kind           PlaylistKind  `json:"kind"`
	FilterCriteria *Criteria     `json:"filter_criteria,omitempty"`
	AutoUpdate     bool          `json:"auto_update"`
	Public         bool          `json:"is_public"`
	Featured       bool          `json:"is_featured"`
	Stats          PlaylistStats `json:"stats"`
	LastUpdated    *time.Time    `json:"last_updated"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// MarshalJSON flattens the membership variant into kind, filter_criteria and auto_update.
func (p Playlist) MarshalJSON() ([]byte, error) {
	out := playlistJSON{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Kind:        p.Kind(),
		Public:      p.Public,
		Featured:    p.Featured,
		Stats:       p.Stats,
		LastUpdated: p.LastUpdated,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if d, ok := p.AsDynamic(); ok {
		c := d.Criteria
		out.FilterCriteria = &c
		out.AutoUpdate = d.AutoUpdate
	}
	return json.Marshal(out)
}

// PlaylistEntry places one video at a position within a playlist.
type PlaylistEntry struct {
	ID         string    `json:"id"`
	PlaylistID string    `json:"playlist_id"`
	VideoID    string    `json:"video_id"`
	Position   int       `json:"position"`
	AddedBy    string    `json:"added_by"`
	AddedAt    time.Time `json:"added_at"`
	Video      *Video    `json:"video,omitempty"`
}
