package rbac

import (
	"context"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// ErrUnknownUser indicates the session points at a user that no longer exists.
var ErrUnknownUser = shared.Kind(shared.ErrUnauthorized, "Your account is no longer available")

// RoleStore reads the role currently assigned to a user.
type RoleStore interface {
	RoleOf(ctx context.Context, userID int64) (shared.Role, error)
}
