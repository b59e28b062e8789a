// ABOUTME: RBAC Role type with ordered integer constants for permission comparison.
// ABOUTME: ParseRole converts a string role name to a Role value.
package authz

// Role represents an RBAC permission level. Higher integer values grant more permissions.
type Role int

// Role permission level constants, ordered from least to most privileged.
const (
	RoleViewer Role = 1 // read-only access
	RoleMember Role = 2 // standard workspace member
	RoleAdmin  Role = 3 // workspace administrator
	RoleOwner  Role = 4 // full control including workspace deletion
)

// Roles lists all roles in ascending privilege order.
var Roles = []Role{RoleViewer, RoleMember, RoleAdmin, RoleOwner}

// ParseRole converts a role string from the database to a Role.
// Unknown or empty values map to RoleViewer (least privilege). Only for
// trusted input — API handlers must use ParseRoleStrict.
func ParseRole(s string) Role {
	switch s {
	case "owner":
		return RoleOwner
	case "admin":
		return RoleAdmin
	case "member":
		return RoleMember
	default:
		return RoleViewer
	}
}

// ParseRoleStrict converts a role string from API input to a Role.
// Unknown or empty values report ok=false instead of defaulting.
func ParseRoleStrict(s string) (Role, bool) {
	switch s {
	case "owner":
		return RoleOwner, true
	case "admin":
		return RoleAdmin, true
	case "member":
		return RoleMember, true
	case "viewer":
		return RoleViewer, true
	default:
		return 0, false
	}
}

// String returns the database representation of the role.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	case RoleMember:
		return "member"
	default:
		return "viewer"
	}
}
