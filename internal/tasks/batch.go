package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/vidx/internal/repositories"
)

// BatchFailure records one playlist that could not be reconciled during a sweep.
type BatchFailure struct {
	PlaylistID string `json:"playlist_id"`
	Error      string `json:"error"`
}

// BatchSummary tallies a stale-playlist sweep.
type BatchSummary struct {
	Checked  int            `json:"checked"`
	Updated  int            `json:"updated"`
	Changed  int            `json:"changed"`
	Errors   int            `json:"errors"`
	Failures []BatchFailure `json:"failures,omitempty"`
}

// UpdateAll reconciles every DYNAMIC auto-update playlist not reconciled within maxAge.
//
// A failure on one playlist is counted and logged but never stops the sweep. Cancelling ctx stops the sweep
// between playlists and returns the partial summary together with the context error.
// The sweep owns no timer; callers trigger it periodically.
func (e *Engine) UpdateAll(ctx context.Context, maxAge time.Duration, progress chan<- ProgressUpdate) (*BatchSummary, error) {
	summary := &BatchSummary{}

	cutoff := e.now().Add(-maxAge)
	e.sendProgress(progress, selectStaleUpdate(cutoff))

	ids, err := repositories.NewPlaylistRepository(e.db).StaleIDs(ctx, cutoff)
	if err != nil {
		return summary, fmt.Errorf("failed to select stale playlists: %w", err)
	}

	total := len(ids)
	e.info("refreshing stale playlists", "count", total, "cutoff", cutoff.Format(time.RFC3339))

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return summary, err
			}
		}

		summary.Checked++
		e.sendProgress(progress, reconcilingUpdate(i+1, total, id))

		result, err := e.Reconcile(ctx, id)
		if err != nil {
			summary.Errors++
			summary.Failures = append(summary.Failures, BatchFailure{PlaylistID: id, Error: err.Error()})
			e.warn("failed to reconcile playlist", "playlist", id, "error", err)
			e.sendProgress(progress, reconcileFailedUpdate(i+1, total, id, err))
			continue
		}

		summary.Updated++
		if result.ChangesMade {
			summary.Changed++
		}
		e.sendProgress(progress, reconciledUpdate(i+1, total, result))
	}

	e.info("refresh complete", "checked", summary.Checked, "updated", summary.Updated,
		"changed", summary.Changed, "errors", summary.Errors)
	e.sendProgress(progress, sweepCompleteUpdate(total, summary))
	return summary, nil
}
