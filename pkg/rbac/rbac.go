package rbac

import "fmt"

// 权限常量
const (
	PermissionCreateProject     = "project:create"
	PermissionTransitionProject = "project:transition"
	PermissionProgressPhase     = "phase:progress"
	PermissionUpdateDeliverable = "deliverable:update"
	PermissionReviewDeliverable = "deliverable:review"
	PermissionManageTemplate    = "template:manage"
	PermissionGenerateDocument  = "document:generate"
	PermissionReadActivity      = "activity:read"
	PermissionManageUsers       = "user:manage"
)

// 角色常量
const (
	RoleAdmin  = "admin"
	RolePM     = "pm"
	RoleMember = "member"
)

var memberPermissions = []string{
	PermissionUpdateDeliverable,
	PermissionGenerateDocument,
	PermissionReadActivity,
}

var pmPermissions = append([]string{
	PermissionCreateProject,
	PermissionTransitionProject,
	PermissionProgressPhase,
	PermissionReviewDeliverable,
	PermissionManageTemplate,
}, memberPermissions...)

var rolePermissions = map[string]map[string]struct{}{
	RoleMember: set(memberPermissions),
	RolePM:     set(pmPermissions),
	RoleAdmin:  set(append([]string{PermissionManageUsers}, pmPermissions...)),
}

func set(perms []string) map[string]struct{} {
	m := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		m[p] = struct{}{}
	}
	return m
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限；未知角色没有任何权限
func HasPermission(role, permission string) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = perms[permission]
	return ok
}

// CheckPermission 与 HasPermission 相同，但返回 error 便于 handler 处理
func CheckPermission(userID int64, role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	UserID     int64
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %q lacks permission %s", e.Role, e.Permission)
}
