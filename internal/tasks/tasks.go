// package tasks reconciles dynamic playlists against the catalog.
//
// The core abstraction is Engine, which runs single reconciliations and stale-playlist sweeps.
// Sweeps emit progress updates via channels for non-blocking status reporting to CLI layers.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/filters"
	"github.com/desertthunder/vidx/internal/repositories"
	"github.com/desertthunder/vidx/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultLockTimeout bounds how long a reconciliation waits for its playlist lock.
const DefaultLockTimeout = 30 * time.Second

// ReconcileResult describes the outcome of one reconciliation.
type ReconcileResult struct {
	PlaylistID  string `json:"playlist_id"`
	Added       int    `json:"added"`
	Removed     int    `json:"removed"`
	ChangesMade bool   `json:"changes_made"`
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the logger used for reconciliation and sweep events.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLocker replaces the default in-process [LocalLocker].
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLockTimeout bounds the wait for a playlist lock. Zero or negative keeps the default.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockTimeout = d
		}
	}
}

// WithCompactPositions renumbers surviving entries densely after removals.
func WithCompactPositions(compact bool) Option {
	return func(e *Engine) { e.compact = compact }
}

// WithRateLimit throttles sweeps to perSecond reconciliations. Zero or negative disables throttling.
func WithRateLimit(perSecond float64) Option {
	return func(e *Engine) {
		if perSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			e.limiter = nil
		}
	}
}

// WithClock overrides the time source used for last_updated and staleness cutoffs.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine reconciles dynamic playlists. It is safe for concurrent use.
type Engine struct {
	db          *sql.DB
	filters     *filters.Engine
	locker      Locker
	lockTimeout time.Duration
	compact     bool
	limiter     *rate.Limiter
	logger      *log.Logger
	now         func() time.Time
}

// NewEngine creates an Engine over db.
func NewEngine(db *sql.DB, opts ...Option) *Engine {
	e := &Engine{
		db:          db,
		locker:      NewLocalLocker(),
		lockTimeout: DefaultLockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.filters = filters.NewEngine(e.logger)
	return e
}

// Filters returns the filter engine used for evaluation.
func (e *Engine) Filters() *filters.Engine {
	return e.filters
}

// Reconcile brings the playlist's entries in line with its criteria in one transaction while holding the playlist lock.
//
// Returns [shared.ErrNotFound] for unknown playlists and [shared.ErrNotDynamic] for STATIC playlists
// or DYNAMIC playlists without criteria. Nothing is written in either case.
func (e *Engine) Reconcile(ctx context.Context, playlistID string) (*ReconcileResult, error) {
	var result *ReconcileResult
	err := e.Locked(ctx, playlistID, func() error {
		return repositories.WithTx(ctx, e.db, func(tx *sql.Tx) error {
			var err error
			result, err = e.ReconcileTx(ctx, tx, playlistID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Locked runs fn while holding the lock for playlistID.
func (e *Engine) Locked(ctx context.Context, playlistID string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	defer cancel()

	unlock, err := e.locker.Lock(lockCtx, lockKey(playlistID))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: playlist %s", shared.ErrLockTimeout, playlistID)
		}
		return err
	}
	defer unlock()

	return fn()
}

// ReconcileTx runs reconciliation inside the caller's transaction. The caller is responsible for locking.
func (e *Engine) ReconcileTx(ctx context.Context, tx repositories.DBTX, playlistID string) (*ReconcileResult, error) {
	playlists := repositories.NewPlaylistRepository(tx)
	entries := repositories.NewEntryRepository(tx)

	playlist, err := playlists.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	dynamic, ok := playlist.AsDynamic()
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s is %s", shared.ErrNotDynamic, playlistID, playlist.Kind())
	}

	current, err := entries.VideoIDs(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	candidates, err := repositories.NewVideoRepository(tx).Candidates(ctx, dynamic.Criteria)
	if err != nil {
		return nil, err
	}
	target := filters.VideoIDs(e.filters.Execute(dynamic.Criteria, candidates))

	targetSet := make(map[string]struct{}, len(target))
	toAdd := make([]string, 0, len(target))
	for _, id := range target {
		targetSet[id] = struct{}{}
		if _, ok := current[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}

	toRemove := make([]string, 0)
	for id := range current {
		if _, ok := targetSet[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}

	removed, err := entries.DeleteVideos(ctx, playlistID, toRemove)
	if err != nil {
		return nil, err
	}

	if e.compact && removed > 0 {
		if err := entries.Compact(ctx, playlistID); err != nil {
			return nil, err
		}
	}

	added, err := entries.Append(ctx, playlistID, playlist.OwnerID, toAdd)
	if err != nil {
		return nil, err
	}

	stats, err := entries.Stats(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if err := playlists.UpdateStats(ctx, playlistID, stats, &now); err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		PlaylistID:  playlistID,
		Added:       len(added),
		Removed:     removed,
		ChangesMade: len(added) > 0 || removed > 0,
	}

	e.debug("reconciled playlist", "playlist", playlistID, "added", result.Added, "removed", result.Removed,
		"entries", stats.EntryCount)
	return result, nil
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *Engine) debug(msg string, kv ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, kv...)
	}
}

func (e *Engine) warn(msg string, kv ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, kv...)
	}
}

func (e *Engine) info(msg string, kv ...any) {
	if e.logger != nil {
		e.logger.Info(msg, kv...)
	}
}

func lockKey(playlistID string) string {
	return "vidx:playlist:" + playlistID
}
