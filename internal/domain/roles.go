// Package domain defines the entities and shared constants of the relay.
package domain

import "fmt"

// Role is the privilege level assigned to a registered user.
type Role string

const (
	// RoleOperator may trigger broadcasts for groups they are associated with.
	RoleOperator Role = "operator"
	// RoleAdmin may additionally manage groups and chat memberships.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin may additionally enroll and delete users.
	RoleSuperAdmin Role = "super_admin"
)

// CanManageGroups reports whether the role may create groups and attach or
// detach chats.
func (r Role) CanManageGroups() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// CanManageUsers reports whether the role may enroll or delete users. Only
// super admins qualify; admin privileges are not sufficient here.
func (r Role) CanManageUsers() bool {
	return r == RoleSuperAdmin
}

// Label returns the human-readable role name shown on keyboards and listings.
func (r Role) Label() string {
	switch r {
	case RoleSuperAdmin:
		return "Super admin"
	case RoleAdmin:
		return "Admin"
	case RoleOperator:
		return "Operator"
	default:
		return string(r)
	}
}

// ParseRole converts a stored or callback-supplied role value into a Role.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleOperator, RoleAdmin, RoleSuperAdmin:
		return Role(value), nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, value)
	}
}
