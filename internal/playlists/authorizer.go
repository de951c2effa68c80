package playlists

import (
	"fmt"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// Authorizer decides what an actor may do to a playlist. A nil actor is anonymous.
type Authorizer interface {
	CanModify(p *models.Playlist, actor *models.User) bool
	CanAccess(p *models.Playlist, actor *models.User) bool
}

// OwnerPolicy lets owners and admins modify, and additionally lets anyone read public playlists.
type OwnerPolicy struct{}

func (OwnerPolicy) CanModify(p *models.Playlist, actor *models.User) bool {
	if actor == nil {
		return false
	}
	return actor.Admin || p.IsOwnedBy(actor.ID)
}

func (o OwnerPolicy) CanAccess(p *models.Playlist, actor *models.User) bool {
	return p.Public || o.CanModify(p, actor)
}

// deny picks the error for a failed check: anonymous actors are unauthenticated, known ones lack permission.
func deny(actor *models.User, action string, p *models.Playlist) error {
	if actor == nil {
		return fmt.Errorf("%w: sign in to %s playlist %s", shared.ErrNotAuthenticated, action, p.ID)
	}
	return fmt.Errorf("%w: cannot %s playlist %s", shared.ErrPermissionDenied, action, p.ID)
}
