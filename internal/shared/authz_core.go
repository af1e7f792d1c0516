package shared

import "slices"

// Role is the single role attached to every account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	RoleUser  Role = "user"
)

// Capabilities checked by the services and route guards.
const (
	CapManageUsers     = "manage_users"
	CapManageStaff     = "manage_staff"
	CapManageInventory = "manage_inventory"
	CapManageSuppliers = "manage_suppliers"
	CapViewReports     = "view_reports"
	CapViewProducts    = "view_products"
	CapPlaceOrders     = "place_orders"
	CapViewOrders      = "view_orders"
)

var roleCapabilities = map[Role][]string{
	RoleAdmin: {CapManageUsers, CapManageStaff, CapManageInventory, CapManageSuppliers, CapViewReports},
	RoleStaff: {CapManageInventory, CapManageSuppliers, CapViewReports},
	RoleUser:  {CapViewProducts, CapPlaceOrders, CapViewOrders},
}

// ErrInvalidRole is returned for roles outside the fixed table.
var ErrInvalidRole = Kind(ErrValidation, "invalid role")

// ParseRole validates a role name.
func ParseRole(value string) (Role, error) {
	role := Role(value)
	if _, ok := roleCapabilities[role]; !ok {
		return "", ErrInvalidRole
	}
	return role, nil
}

// Capabilities lists the capabilities granted to role.
func (r Role) Capabilities() []string {
	return slices.Clone(roleCapabilities[r])
}

// Can reports whether role grants capability.
func (r Role) Can(capability string) bool {
	return slices.Contains(roleCapabilities[r], capability)
}

// Actor identifies who performs an operation.
type Actor struct {
	ID   int64
	Role Role
}

// Authorize returns ErrForbidden unless actor holds at least one of the capabilities.
func Authorize(actor Actor, capabilities ...string) error {
	for _, capability := range capabilities {
		if actor.Role.Can(capability) {
			return nil
		}
	}
	return Kind(ErrForbidden, "You do not have permission to perform this action")
}
