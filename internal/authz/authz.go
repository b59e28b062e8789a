// Package authz implements the workspace access-control model: an ordered
// role hierarchy (viewer < member < admin < owner) and a static
// role→permission table.
//
// All checks are pure reads against an immutable Table: no I/O, no locking,
// safe under unbounded concurrency. The table is injected rather than read
// from package-level state so tests can substitute alternate grants.
package authz

// HasPermission reports whether role is granted perm under t.
func (t *Table) HasPermission(role Role, perm Permission) bool {
	return t.grants[role][perm]
}

// RolePermissions returns the full permission set granted to role,
// in the order of AllPermissions.
func (t *Table) RolePermissions(role Role) []Permission {
	set := t.grants[role]
	out := make([]Permission, 0, len(set))
	for _, p := range AllPermissions {
		if set[p] {
			out = append(out, p)
		}
	}
	return out
}

// CanActOnRole reports whether an actor with actorRole may act upon a member
// holding targetRole (role change, removal). The comparison is strictly
// greater-than: equal ranks may not act on each other, so an admin cannot
// remove another admin and an owner cannot demote a fellow owner.
func CanActOnRole(actorRole, targetRole Role) bool {
	return actorRole > targetRole
}

// CanAssignRole reports whether an actor with actorRole may assign
// roleToAssign to another member (invitation, role change). Same strict
// ordering as CanActOnRole, kept as a separate entry point because it guards
// a different call site: assignment grants a role, action targets a holder.
func CanAssignRole(actorRole, roleToAssign Role) bool {
	return actorRole > roleToAssign
}
