// ABOUTME: Closed permission enumeration and the role→permission table.
// ABOUTME: The table is built once at startup and must never be mutated afterwards.
package authz

// Permission is an atomic capability identifier checked by HasPermission.
// The set is closed: new permissions are added here, never at runtime.
type Permission string

// All permissions in the system, grouped by the surface they guard.
const (
	// Product data.
	PermDataView   Permission = "DATA_VIEW"
	PermDataCreate Permission = "DATA_CREATE"
	PermDataUpdate Permission = "DATA_UPDATE"
	PermDataDelete Permission = "DATA_DELETE"

	// Membership management.
	PermMemberView       Permission = "MEMBER_VIEW"
	PermMemberInvite     Permission = "MEMBER_INVITE"
	PermMemberRemove     Permission = "MEMBER_REMOVE"
	PermMemberRoleChange Permission = "MEMBER_ROLE_CHANGE"

	// Workspace lifecycle.
	PermWorkspaceView   Permission = "WORKSPACE_VIEW"
	PermWorkspaceUpdate Permission = "WORKSPACE_UPDATE"
	PermWorkspaceDelete Permission = "WORKSPACE_DELETE"

	// API keys.
	PermAPIKeyCreate Permission = "API_KEY_CREATE"
	PermAPIKeyRevoke Permission = "API_KEY_REVOKE"

	// Classification and batch jobs.
	PermClassifyRun Permission = "CLASSIFY_RUN"
	PermBatchRun    Permission = "BATCH_RUN"

	// Billing (read-only surface; billing mutation goes through the provider portal).
	PermBillingView   Permission = "BILLING_VIEW"
	PermBillingManage Permission = "BILLING_MANAGE"

	// Audit log.
	PermAuditView Permission = "AUDIT_VIEW"
)

// AllPermissions lists every permission in the closed set.
var AllPermissions = []Permission{
	PermDataView, PermDataCreate, PermDataUpdate, PermDataDelete,
	PermMemberView, PermMemberInvite, PermMemberRemove, PermMemberRoleChange,
	PermWorkspaceView, PermWorkspaceUpdate, PermWorkspaceDelete,
	PermAPIKeyCreate, PermAPIKeyRevoke,
	PermClassifyRun, PermBatchRun,
	PermBillingView, PermBillingManage,
	PermAuditView,
}

// Table maps each role to its granted permission set. Construct with NewTable
// or DefaultTable; treat as read-only afterwards, since it is shared across all
// requests without locking.
type Table struct {
	grants map[Role]map[Permission]bool
}

// NewTable builds a Table from per-role permission lists. Grants are
// cumulative: each role automatically receives everything granted to all
// lower-ranked roles, which keeps the table monotonic by construction.
func NewTable(perRole map[Role][]Permission) *Table {
	grants := make(map[Role]map[Permission]bool, len(Roles))
	acc := make(map[Permission]bool)
	for _, r := range Roles {
		for _, p := range perRole[r] {
			acc[p] = true
		}
		set := make(map[Permission]bool, len(acc))
		for p := range acc {
			set[p] = true
		}
		grants[r] = set
	}
	return &Table{grants: grants}
}

// DefaultTable returns the production role→permission mapping.
// Every role carries WORKSPACE_VIEW; grants accumulate with rank.
func DefaultTable() *Table {
	return NewTable(map[Role][]Permission{
		RoleViewer: {
			PermWorkspaceView,
			PermDataView,
			PermMemberView,
		},
		RoleMember: {
			PermDataCreate,
			PermDataUpdate,
			PermClassifyRun,
			PermAPIKeyCreate,
		},
		RoleAdmin: {
			PermDataDelete,
			PermMemberInvite,
			PermMemberRemove,
			PermMemberRoleChange,
			PermWorkspaceUpdate,
			PermAPIKeyRevoke,
			PermBatchRun,
			PermBillingView,
			PermAuditView,
		},
		RoleOwner: {
			PermWorkspaceDelete,
			PermBillingManage,
		},
	})
}
