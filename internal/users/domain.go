package users

import (
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// User is an account as listed in staff management.
type User struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      shared.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// Directory splits accounts into staff (admins and staff) and customers.
type Directory struct {
	Staff     []User `json:"staff"`
	Customers []User `json:"customers"`
}

var (
	ErrUserNotFound  = shared.Kind(shared.ErrNotFound, "User not found")
	ErrSelfDelete    = shared.Kind(shared.ErrValidation, "You cannot delete your own account")
	ErrSelfDemote    = shared.Kind(shared.ErrValidation, "You cannot change your own role")
	ErrInvalidUserID = shared.Kind(shared.ErrValidation, "Invalid user ID")
	ErrUserHasOrders = shared.Kind(shared.ErrStateConflict, "User has order history and cannot be deleted")
)
