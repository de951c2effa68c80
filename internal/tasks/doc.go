// Package tasks keeps dynamic playlists in line with the catalog.
//
// # Core Operations
//
//  1. [Engine.Reconcile] : Recompute one DYNAMIC playlist
//     - Reads the current entry set and the criteria's catalog matches
//     - Deletes entries that no longer match, without renumbering survivors
//     - Appends new matches after the highest position, in engine order
//     - Recomputes stats and records last_updated
//     - Runs in a single transaction while holding the playlist's [Locker] key
//
//  2. [Engine.UpdateAll] : Sweep stale auto-update playlists
//     - Selects playlists never reconciled or older than the supplied max age
//     - Reconciles each, tallying failures without aborting siblings
//     - Returns a [BatchSummary]
//
// # Progress Reporting
//
// Sweeps use non-blocking channels for progress updates. The [ProgressUpdate] struct contains
// phase, step counters, messages, and optional data. Updates use select with default to prevent blocking.
//
// # Locking
//
// [LocalLocker] serializes reconciliations inside one process. [RedisLocker] extends this across
// processes, e.g. an API server and a cron-invoked CLI sharing one database. Entries also carry a
// UNIQUE(playlist_id, video_id) constraint, so a lost lock surfaces as a conflict rather than duplicates.
package tasks
