package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleAdmin, PermissionManageUsers))
	assert.True(t, HasPermission(RoleAdmin, PermissionTransitionProject))

	assert.True(t, HasPermission(RolePM, PermissionTransitionProject))
	assert.True(t, HasPermission(RolePM, PermissionGenerateDocument))
	assert.False(t, HasPermission(RolePM, PermissionManageUsers))

	assert.True(t, HasPermission(RoleMember, PermissionUpdateDeliverable))
	assert.False(t, HasPermission(RoleMember, PermissionReviewDeliverable))
	assert.False(t, HasPermission(RoleMember, PermissionProgressPhase))

	assert.False(t, HasPermission("guest", PermissionReadActivity))
}

func TestCheckPermission(t *testing.T) {
	assert.NoError(t, CheckPermission(1, RolePM, PermissionCreateProject))

	err := CheckPermission(7, RoleMember, PermissionCreateProject)
	var denied *PermissionDeniedError
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, int64(7), denied.UserID)
	assert.Equal(t, PermissionCreateProject, denied.Permission)
}

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole(RoleMember))
	assert.False(t, IsValidRole("root"))
}
