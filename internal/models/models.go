// package models defines the data model for the dynamic playlist engine
package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
// Implementations include User, Artist, Video and Playlist.
type Model interface {
	GetID() string           // GetID returns the unique identifier for this model
	GetCreatedAt() time.Time // GetCreatedAt returns when this model was created
	Validate() error         // Validate checks if the model's data is valid and returns an error if not
}

var (
	_ Model = (*User)(nil)
	_ Model = (*Artist)(nil)
	_ Model = (*Video)(nil)
	_ Model = (*Playlist)(nil)
)
