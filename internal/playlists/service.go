// package playlists exposes the dynamic playlist operations consumed by the HTTP and CLI layers.
//
// Every operation checks the [Authorizer] before any mutation and mutates inside one transaction,
// so a failed call leaves no partial state.
package playlists

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/repositories"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/tasks"
	"github.com/desertthunder/vidx/internal/templates"
)

const (
	DefaultPreviewLimit    = 20
	DefaultPreviewMaxLimit = 100
)

// CreateDynamicInput describes a new DYNAMIC playlist. Criteria is required; an empty value matches the whole catalog.
type CreateDynamicInput struct {
	Name        string
	Description string
	Criteria    *models.Criteria
	Public      bool
	AutoUpdate  bool
	Featured    bool
}

// CreateStaticInput describes a new, empty STATIC playlist.
type CreateStaticInput struct {
	Name        string
	Description string
	Public      bool
}

// TemplateOverrides replace a template's defaults when creating from it. Nil fields keep the default.
type TemplateOverrides struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Public      *bool   `json:"is_public,omitempty"`
	AutoUpdate  *bool   `json:"auto_update,omitempty"`
}

// PlaylistDetail is a playlist together with its ordered entries.
type PlaylistDetail struct {
	Playlist *models.Playlist      `json:"playlist"`
	Entries  []models.PlaylistEntry `json:"entries"`
}

// RefreshResult is returned by manual refreshes and criteria updates.
type RefreshResult struct {
	ChangesMade bool            `json:"changes_made"`
	Added       int             `json:"added"`
	Removed     int             `json:"removed"`
	Playlist    *PlaylistDetail `json:"playlist"`
}

// PreviewResult reports how many videos criteria would select and a leading sample of them.
type PreviewResult struct {
	TotalMatches int            `json:"total_matches"`
	Sample       []models.Video `json:"sample"`
}

// Option configures a [Service].
type Option func(*Service)

// WithAuthorizer replaces the default [OwnerPolicy].
func WithAuthorizer(a Authorizer) Option {
	return func(s *Service) { s.auth = a }
}

// WithTemplates replaces [templates.Default].
func WithTemplates(lib *templates.Library) Option {
	return func(s *Service) { s.templates = lib }
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSettings applies preview and result-cap configuration. Non-positive values keep the defaults.
func WithSettings(cfg shared.PlaylistsConfig) Option {
	return func(s *Service) {
		if cfg.PreviewLimit > 0 {
			s.previewLimit = cfg.PreviewLimit
		}
		if cfg.PreviewMaxLimit > 0 {
			s.previewMax = cfg.PreviewMaxLimit
		}
		if cfg.DefaultMaxResults > 0 {
			s.maxResults = cfg.DefaultMaxResults
		}
	}
}

// Service implements the exposed playlist operations.
type Service struct {
	db           *sql.DB
	engine       *tasks.Engine
	templates    *templates.Library
	auth         Authorizer
	logger       *log.Logger
	previewLimit int
	previewMax   int
	maxResults   int
}

// NewService creates a Service reconciling through engine.
func NewService(db *sql.DB, engine *tasks.Engine, opts ...Option) *Service {
	s := &Service{
		db:           db,
		engine:       engine,
		templates:    templates.Default(),
		auth:         OwnerPolicy{},
		previewLimit: DefaultPreviewLimit,
		previewMax:   DefaultPreviewMaxLimit,
		maxResults:   models.DefaultMaxResults,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.previewLimit > s.previewMax {
		s.previewLimit = s.previewMax
	}
	return s
}

// CreateDynamic creates a DYNAMIC playlist and performs its first reconciliation in the same transaction.
func (s *Service) CreateDynamic(ctx context.Context, actor *models.User, in CreateDynamicInput) (*PlaylistDetail, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: an owner is required to create a playlist", shared.ErrNotAuthenticated)
	}
	if in.Featured && !actor.Admin {
		return nil, fmt.Errorf("%w: only admins can feature playlists", shared.ErrPermissionDenied)
	}
	if in.Criteria == nil {
		return nil, fmt.Errorf("%w: filter_criteria is required for a DYNAMIC playlist", shared.ErrValidation)
	}
	if err := in.Criteria.Validate(); err != nil {
		return nil, err
	}

	playlist := models.NewDynamicPlaylist(actor.ID, strings.TrimSpace(in.Name), in.Description, in.Public,
		in.Criteria.Clone(), in.AutoUpdate)
	playlist.Featured = in.Featured
	if err := playlist.Validate(); err != nil {
		return nil, err
	}

	err := repositories.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := repositories.NewPlaylistRepository(tx).Create(ctx, playlist); err != nil {
			return err
		}
		_, err := s.engine.ReconcileTx(ctx, tx, playlist.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.info("created dynamic playlist", "playlist", playlist.ID, "owner", actor.ID, "name", playlist.Name)
	return s.detail(ctx, playlist.ID)
}

// CreateStatic creates an empty STATIC playlist.
func (s *Service) CreateStatic(ctx context.Context, actor *models.User, in CreateStaticInput) (*PlaylistDetail, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: an owner is required to create a playlist", shared.ErrNotAuthenticated)
	}

	playlist := models.NewStaticPlaylist(actor.ID, strings.TrimSpace(in.Name), in.Description, in.Public)
	if err := repositories.NewPlaylistRepository(s.db).Create(ctx, playlist); err != nil {
		return nil, err
	}

	s.info("created static playlist", "playlist", playlist.ID, "owner", actor.ID, "name", playlist.Name)
	return &PlaylistDetail{Playlist: playlist, Entries: []models.PlaylistEntry{}}, nil
}

// Get returns a playlist with its entries when the actor may access it.
func (s *Service) Get(ctx context.Context, actor *models.User, id string) (*PlaylistDetail, error) {
	playlist, err := repositories.NewPlaylistRepository(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.auth.CanAccess(playlist, actor) {
		return nil, deny(actor, "access", playlist)
	}
	return s.withEntries(ctx, playlist)
}

// List returns the actor's playlists without entries.
func (s *Service) List(ctx context.Context, actor *models.User) ([]*models.Playlist, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: sign in to list playlists", shared.ErrNotAuthenticated)
	}
	return repositories.NewPlaylistRepository(s.db).ListByOwner(ctx, actor.ID)
}

// Refresh manually reconciles a DYNAMIC playlist.
func (s *Service) Refresh(ctx context.Context, actor *models.User, id string) (*RefreshResult, error) {
	playlist, err := repositories.NewPlaylistRepository(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.auth.CanModify(playlist, actor) {
		return nil, deny(actor, "refresh", playlist)
	}

	result, err := s.engine.Reconcile(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.refreshResult(ctx, result)
}

// UpdateCriteria replaces a DYNAMIC playlist's criteria, optionally its auto-update flag, and re-reconciles.
func (s *Service) UpdateCriteria(ctx context.Context, actor *models.User, id string, criteria models.Criteria, autoUpdate *bool) (*RefreshResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	playlist, err := repositories.NewPlaylistRepository(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.auth.CanModify(playlist, actor) {
		return nil, deny(actor, "modify", playlist)
	}

	if playlist.Kind() != models.KindDynamic {
		return nil, fmt.Errorf("%w: playlist %s is %s", shared.ErrNotDynamic, id, playlist.Kind())
	}

	var result *tasks.ReconcileResult
	err = s.engine.Locked(ctx, id, func() error {
		return repositories.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			if err := repositories.NewPlaylistRepository(tx).UpdateMembership(ctx, id, criteria, autoUpdate); err != nil {
				return err
			}
			var err error
			result, err = s.engine.ReconcileTx(ctx, tx, id)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.info("updated playlist criteria", "playlist", id, "added", result.Added, "removed", result.Removed)
	return s.refreshResult(ctx, result)
}

// ListTemplates returns the template summaries.
func (s *Service) ListTemplates() []templates.Summary {
	return s.templates.List()
}

// CreateFromTemplate creates a DYNAMIC playlist from a template, applying overrides.
//
// Defaults are the template's name and description, private, with auto-update on.
func (s *Service) CreateFromTemplate(ctx context.Context, actor *models.User, templateID string, overrides TemplateOverrides) (*PlaylistDetail, error) {
	tmpl, err := s.templates.Lookup(templateID)
	if err != nil {
		return nil, err
	}

	in := CreateDynamicInput{
		Name:        tmpl.Name,
		Description: tmpl.Description,
		Criteria:    &tmpl.Criteria,
		AutoUpdate:  true,
	}
	if overrides.Name != nil {
		in.Name = *overrides.Name
	}
	if overrides.Description != nil {
		in.Description = *overrides.Description
	}
	if overrides.Public != nil {
		in.Public = *overrides.Public
	}
	if overrides.AutoUpdate != nil {
		in.AutoUpdate = *overrides.AutoUpdate
	}

	return s.CreateDynamic(ctx, actor, in)
}

// Preview evaluates criteria against the catalog without persisting anything.
//
// limit is clamped to the configured preview bounds. TotalMatches counts every match in the catalog, while the
// sample is drawn from matches capped at the configured default max results.
func (s *Service) Preview(ctx context.Context, criteria models.Criteria, limit int) (*PreviewResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.previewLimit
	}
	if limit > s.previewMax {
		limit = s.previewMax
	}

	catalog, err := repositories.NewVideoRepository(s.db).Candidates(ctx, criteria)
	if err != nil {
		return nil, err
	}
	total := s.engine.Filters().Count(criteria, catalog)

	if criteria.EffectiveMaxResults() > s.maxResults {
		criteria = criteria.WithMaxResults(s.maxResults)
	}
	sample := s.engine.Filters().Execute(criteria, catalog)
	if len(sample) > limit {
		sample = sample[:limit]
	}
	return &PreviewResult{TotalMatches: total, Sample: sample}, nil
}

// UpdateAll runs the stale-playlist sweep. Only admins may trigger it.
func (s *Service) UpdateAll(ctx context.Context, actor *models.User, maxAge time.Duration, progress chan<- tasks.ProgressUpdate) (*tasks.BatchSummary, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: sign in to refresh playlists", shared.ErrNotAuthenticated)
	}
	if !actor.Admin {
		return nil, fmt.Errorf("%w: only admins can refresh all playlists", shared.ErrPermissionDenied)
	}
	if maxAge < 0 {
		return nil, fmt.Errorf("%w: max age cannot be negative", shared.ErrValidation)
	}
	return s.engine.UpdateAll(ctx, maxAge, progress)
}

func (s *Service) refreshResult(ctx context.Context, result *tasks.ReconcileResult) (*RefreshResult, error) {
	detail, err := s.detail(ctx, result.PlaylistID)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{
		ChangesMade: result.ChangesMade,
		Added:       result.Added,
		Removed:     result.Removed,
		Playlist:    detail,
	}, nil
}

func (s *Service) detail(ctx context.Context, id string) (*PlaylistDetail, error) {
	playlist, err := repositories.NewPlaylistRepository(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withEntries(ctx, playlist)
}

func (s *Service) withEntries(ctx context.Context, playlist *models.Playlist) (*PlaylistDetail, error) {
	entries, err := repositories.NewEntryRepository(s.db).List(ctx, playlist.ID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.PlaylistEntry{}
	}
	return &PlaylistDetail{Playlist: playlist, Entries: entries}, nil
}

func (s *Service) info(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Info(msg, kv...)
	}
}
