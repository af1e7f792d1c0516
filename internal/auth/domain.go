package auth

import (
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// User represents an account able to sign in.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         shared.Role
	CreatedAt    time.Time
}

// Profile is the signed-in user as exposed to clients.
type Profile struct {
	ID           int64       `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	Role         shared.Role `json:"role"`
	Capabilities []string    `json:"capabilities"`
}

// NewAccount carries the fields required to create a user.
type NewAccount struct {
	Username     string
	Email        string
	PasswordHash string
	Role         shared.Role
}

var (
	ErrInvalidRegistration = shared.Kind(shared.ErrValidation, "Fill out all fields with valid data")
	ErrDuplicateAccount    = shared.Kind(shared.ErrStateConflict, "Username or email already exists")
	ErrNotSignedIn         = shared.Kind(shared.ErrUnauthorized, "Please sign in to continue")
)

// ProfileOf projects a user into its public profile.
func ProfileOf(u User) Profile {
	return Profile{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Role:         u.Role,
		Capabilities: u.Role.Capabilities(),
	}
}
