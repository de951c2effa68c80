package tasks

import (
	"fmt"
	"time"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	SelectStale Phase = iota
	ReconcilePlaylist
	ReconcileFailed
	SweepComplete
)

func (p Phase) String() string {
	switch p {
	case SelectStale:
		return "select_stale"
	case ReconcilePlaylist:
		return "reconcile_playlist"
	case ReconcileFailed:
		return "reconcile_failed"
	case SweepComplete:
		return "sweep_complete"
	default:
		return ""
	}
}

func selectStaleUpdate(cutoff time.Time) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SelectStale,
		Message: fmt.Sprintf("Selecting playlists last refreshed before %s...", cutoff.Format(time.RFC3339)),
	}
}

func reconcilingUpdate(step, total int, playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcilePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reconciling %s...", step, total, playlistID),
	}
}

func reconciledUpdate(step, total int, result *ReconcileResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcilePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (+%d/-%d)", step, total, result.PlaylistID, result.Added, result.Removed),
		Data:    result,
	}
}

func reconcileFailedUpdate(step, total int, playlistID string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcileFailed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, playlistID, err),
	}
}

func sweepCompleteUpdate(total int, summary *BatchSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SweepComplete,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Checked %d, updated %d, changed %d, errors %d", summary.Checked, summary.Updated, summary.Changed, summary.Errors),
		Data:    summary,
	}
}
