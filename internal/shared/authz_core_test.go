package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleCapabilities(t *testing.T) {
	require.True(t, RoleAdmin.Can(CapManageStaff))
	require.True(t, RoleStaff.Can(CapManageInventory))
	require.False(t, RoleStaff.Can(CapManageUsers))
	require.True(t, RoleUser.Can(CapPlaceOrders))
	require.False(t, RoleUser.Can(CapViewReports))
	require.False(t, RoleAdmin.Can(CapPlaceOrders))
	require.False(t, Role("guest").Can(CapViewProducts))
}

func TestAuthorize(t *testing.T) {
	require.NoError(t, Authorize(Actor{ID: 1, Role: RoleStaff}, CapManageUsers, CapManageInventory))
	err := Authorize(Actor{ID: 2, Role: RoleUser}, CapManageInventory)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("staff")
	require.NoError(t, err)
	require.Equal(t, RoleStaff, role)

	_, err = ParseRole("root")
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestCapabilitiesReturnsCopy(t *testing.T) {
	caps := RoleUser.Capabilities()
	caps[0] = "tampered"
	require.True(t, RoleUser.Can(CapViewProducts))
}
