// Package models defines domain entities for the vidx dynamic playlist engine.
//
// The package contains three groups of types:
//
// 1. Catalog entities, owned by the media library and only referenced here
//   - [Artist] : performer with genre metadata
//   - [Video] : catalog item summary with the fields filters evaluate
//
// 2. Playlist entities
//   - [User] : playlist owner, [User.Admin] is the elevated-privilege capability
//   - [Playlist] : tagged variant whose [Membership] is [Static] or [Dynamic]
//   - [PlaylistEntry] : ordered membership row referencing a [Video]
//
// 3. The filter document
//   - [Criteria] : declarative predicate groups for dynamic membership, validated by [Criteria.Validate]
//
// Groups are AND-combined, values inside a group are OR-combined and an omitted group imposes no restriction.
package models
