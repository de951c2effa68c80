package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/vidx/internal/shared"
)

// User owns playlists. Identity and authentication are handled elsewhere.
type User struct {
	ID        string     `json:"id"`
	Sequence  int        `json:"-"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Admin     bool       `json:"admin"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// NewUser creates a User with timestamps set to now.
func NewUser(email, name string, admin bool) *User {
	now := time.Now().UTC()
	return &User{Email: email, Name: name, Admin: admin, CreatedAt: now, UpdatedAt: now}
}

func (u *User) GetID() string           { return u.ID }
func (u *User) GetCreatedAt() time.Time { return u.CreatedAt }

func (u *User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: email is required", shared.ErrValidation)
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: email %q is malformed", shared.ErrValidation, u.Email)
	}
	return nil
}
