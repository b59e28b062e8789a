// ABOUTME: Tests for the role hierarchy and the role→permission table.
// ABOUTME: Pure unit tests, no database required.
package authz

import "testing"

func TestRoleOrdering(t *testing.T) {
	t.Parallel()
	if RoleViewer >= RoleMember || RoleMember >= RoleAdmin || RoleAdmin >= RoleOwner {
		t.Error("role ordering: want viewer < member < admin < owner")
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  Role
	}{
		{"owner", RoleOwner},
		{"admin", RoleAdmin},
		{"member", RoleMember},
		{"viewer", RoleViewer},
		{"unknown", RoleViewer},
		{"", RoleViewer},
	}
	for _, tc := range cases {
		if got := ParseRole(tc.input); got != tc.want {
			t.Errorf("ParseRole(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestParseRoleStrict(t *testing.T) {
	t.Parallel()
	for _, r := range Roles {
		got, ok := ParseRoleStrict(r.String())
		if !ok || got != r {
			t.Errorf("ParseRoleStrict(%q) = (%v, %v), want (%v, true)", r.String(), got, ok, r)
		}
	}
	// Unknown strings must be reported, never coerced to a default role.
	for _, s := range []string{"", "membr", "vewer", "OWNER", "superuser"} {
		if got, ok := ParseRoleStrict(s); ok {
			t.Errorf("ParseRoleStrict(%q) = (%v, true), want ok=false", s, got)
		}
	}
}

func TestRoleStringRoundTrip(t *testing.T) {
	t.Parallel()
	for _, r := range Roles {
		if got := ParseRole(r.String()); got != r {
			t.Errorf("ParseRole(%q) = %v, want %v", r.String(), got, r)
		}
	}
}

func TestCanActOnRole(t *testing.T) {
	t.Parallel()
	// Exhaustive matrix: actor may act only on strictly lower-ranked roles.
	for _, actor := range Roles {
		for _, target := range Roles {
			want := actor > target
			if got := CanActOnRole(actor, target); got != want {
				t.Errorf("CanActOnRole(%v, %v) = %v, want %v", actor, target, got, want)
			}
		}
	}
	// Spot checks for the cases that matter most.
	if !CanActOnRole(RoleOwner, RoleAdmin) {
		t.Error("owner must be able to act on admin")
	}
	if CanActOnRole(RoleAdmin, RoleOwner) {
		t.Error("admin must not be able to act on owner")
	}
	if CanActOnRole(RoleMember, RoleMember) {
		t.Error("equal ranks must not act on each other")
	}
}

func TestCanAssignRole(t *testing.T) {
	t.Parallel()
	for _, actor := range Roles {
		for _, assign := range Roles {
			want := actor > assign
			if got := CanAssignRole(actor, assign); got != want {
				t.Errorf("CanAssignRole(%v, %v) = %v, want %v", actor, assign, got, want)
			}
		}
	}
}

func TestDefaultTableMonotonic(t *testing.T) {
	t.Parallel()
	tbl := DefaultTable()
	// Every permission granted to a role must also be granted to all higher roles.
	for i, lower := range Roles {
		for _, higher := range Roles[i+1:] {
			for _, p := range tbl.RolePermissions(lower) {
				if !tbl.HasPermission(higher, p) {
					t.Errorf("%v holds %s but higher role %v does not", lower, p, higher)
				}
			}
		}
	}
}

func TestDefaultTableBaseline(t *testing.T) {
	t.Parallel()
	tbl := DefaultTable()
	for _, r := range Roles {
		if !tbl.HasPermission(r, PermWorkspaceView) {
			t.Errorf("%v must hold WORKSPACE_VIEW", r)
		}
	}
}

func TestOwnerHoldsEverything(t *testing.T) {
	t.Parallel()
	tbl := DefaultTable()
	for _, p := range AllPermissions {
		if !tbl.HasPermission(RoleOwner, p) {
			t.Errorf("owner missing %s", p)
		}
	}
}

func TestDefaultTableGrants(t *testing.T) {
	t.Parallel()
	tbl := DefaultTable()
	cases := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleViewer, PermDataView, true},
		{RoleViewer, PermDataCreate, false},
		{RoleMember, PermDataCreate, true},
		{RoleMember, PermMemberInvite, false},
		{RoleMember, PermClassifyRun, true},
		{RoleAdmin, PermMemberInvite, true},
		{RoleAdmin, PermWorkspaceDelete, false},
		{RoleAdmin, PermBatchRun, true},
		{RoleOwner, PermWorkspaceDelete, true},
		{RoleOwner, PermBillingManage, true},
	}
	for _, tc := range cases {
		if got := tbl.HasPermission(tc.role, tc.perm); got != tc.want {
			t.Errorf("HasPermission(%v, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestNewTableInjectable(t *testing.T) {
	t.Parallel()
	// Alternate tables can be injected for tests; the engine reads only the
	// table it is handed, never package-level state.
	tbl := NewTable(map[Role][]Permission{
		RoleViewer: {PermWorkspaceView},
		RoleOwner:  {PermWorkspaceDelete},
	})
	if tbl.HasPermission(RoleViewer, PermWorkspaceDelete) {
		t.Error("viewer must not inherit owner-only grants")
	}
	if !tbl.HasPermission(RoleOwner, PermWorkspaceView) {
		t.Error("owner must inherit viewer grants (cumulative construction)")
	}
	if got := len(tbl.RolePermissions(RoleMember)); got != 1 {
		t.Errorf("member permissions = %d, want 1 (inherited WORKSPACE_VIEW only)", got)
	}
}
