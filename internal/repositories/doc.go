// Package repositories implements SQLite persistence for the catalog and playlists.
//
// Each repository wraps a [DBTX], so the same code runs against a [database/sql.DB] or inside a
// caller's [database/sql.Tx]. Reconciliation relies on this to read the catalog and mutate entries
// in a single transaction.
//
// Key Implementations:
//   - [UserRepository] : User account persistence with email-based lookups
//   - [ArtistRepository] : Catalog artists with case-insensitive name lookup
//   - [VideoRepository] : Catalog videos, including [VideoRepository.Candidates] for criteria pushdown
//   - [PlaylistRepository] : Playlists with STATIC/DYNAMIC membership stored as kind plus filter_criteria
//   - [EntryRepository] : Playlist entries, positions and derived statistics
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, playlist #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
