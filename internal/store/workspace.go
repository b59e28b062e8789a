// ABOUTME: Store methods for workspace, membership, and invitation management.
// ABOUTME: All workspace-scoped methods take workspaceID as Layer 1 tenant isolation.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Workspace is a row in the workspaces table.
type Workspace struct {
	ID        uuid.UUID
	Name      string
	Plan      string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

const workspaceColumns = "id, name, plan, created_at, updated_at, deleted_at"

func scanWorkspace(row pgx.Row) (*Workspace, error) {
	var w Workspace
	err := row.Scan(&w.ID, &w.Name, &w.Plan, &w.CreatedAt, &w.UpdatedAt, &w.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Membership is one user's membership in one workspace, with workspace name
// attached for listing.
type Membership struct {
	WorkspaceID   uuid.UUID
	WorkspaceName string
	UserID        uuid.UUID
	Role          string
	CreatedAt     time.Time
}

// Member is one member row with user detail attached, for member listings.
type Member struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
	Role        string
	JoinedAt    time.Time
}

// Invitation is a row in the workspace_invitations table.
type Invitation struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Email       string
	Role        string
	Token       string
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	ExpiresAt   time.Time
	AcceptedAt  *time.Time
}

const invitationColumns = "id, workspace_id, email, role, token, created_by, created_at, expires_at, accepted_at"

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var inv Invitation
	err := row.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.Token,
		&inv.CreatedBy, &inv.CreatedAt, &inv.ExpiresAt, &inv.AcceptedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateWorkspaceWithOwner atomically creates a new workspace and adds ownerID
// as owner. Uses RLS bypass since no workspace context exists at creation time.
func (s *Store) CreateWorkspaceWithOwner(ctx context.Context, name string, ownerID uuid.UUID) (*Workspace, error) {
	var ws *Workspace
	err := s.WorkerTx(ctx, func(tx pgx.Tx) error {
		created, err := scanWorkspace(tx.QueryRow(ctx,
			`INSERT INTO workspaces (name) VALUES ($1) RETURNING `+workspaceColumns, name))
		if err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
		ws = created
		if _, err := tx.Exec(ctx,
			`INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, 'owner')`,
			ws.ID, ownerID); err != nil {
			return fmt.Errorf("create workspace member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// GetWorkspaceByID returns the workspace with the given ID, or (nil, nil) if
// not found or soft-deleted.
func (s *Store) GetWorkspaceByID(ctx context.Context, id uuid.UUID) (*Workspace, error) {
	var ws *Workspace
	err := s.WorkspaceTx(ctx, id, func(tx pgx.Tx) error {
		row, err := scanWorkspace(tx.QueryRow(ctx,
			`SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1 AND deleted_at IS NULL`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get workspace by id: %w", err)
		}
		ws = row
		return nil
	})
	return ws, err
}

// UpdateWorkspace updates the workspace name. Returns (nil, nil) if the
// workspace is not found or soft-deleted.
func (s *Store) UpdateWorkspace(ctx context.Context, id uuid.UUID, name string) (*Workspace, error) {
	var ws *Workspace
	err := s.WorkspaceTx(ctx, id, func(tx pgx.Tx) error {
		row, err := scanWorkspace(tx.QueryRow(ctx,
			`UPDATE workspaces SET name = $2, updated_at = now()
			 WHERE id = $1 AND deleted_at IS NULL
			 RETURNING `+workspaceColumns, id, name))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("update workspace: %w", err)
		}
		ws = row
		return nil
	})
	return ws, err
}

// SoftDeleteWorkspace marks the workspace deleted. Owner-only at the handler
// layer; data rows are retained for the retention window.
func (s *Store) SoftDeleteWorkspace(ctx context.Context, id uuid.UUID) error {
	return s.WorkspaceTx(ctx, id, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE workspaces SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
			return fmt.Errorf("soft delete workspace: %w", err)
		}
		return nil
	})
}

// GetMemberRole returns the role of userID in workspaceID, or (nil, nil) if not
// a member. Executes with RLS bypass — called from RequireWorkspaceRole
// middleware before workspace context is set.
func (s *Store) GetMemberRole(ctx context.Context, workspaceID, userID uuid.UUID) (*string, error) {
	var result *string
	err := s.WorkerTx(ctx, func(tx pgx.Tx) error {
		var role string
		err := tx.QueryRow(ctx,
			`SELECT role FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`,
			workspaceID, userID).Scan(&role)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		result = &role
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get member role: %w", err)
	}
	return result, nil
}

// ListMembers returns all members of a workspace ordered by join time.
func (s *Store) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]Member, error) {
	var result []Member
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT m.user_id, u.email, u.display_name, m.role, m.created_at
			 FROM workspace_members m
			 JOIN users u ON u.id = m.user_id
			 WHERE m.workspace_id = $1
			 ORDER BY m.created_at ASC`, workspaceID)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var m Member
			if err := rows.Scan(&m.UserID, &m.Email, &m.DisplayName, &m.Role, &m.JoinedAt); err != nil {
				return fmt.Errorf("list members: scan: %w", err)
			}
			result = append(result, m)
		}
		return rows.Err()
	})
	return result, err
}

// UpdateMemberRole changes the role of userID in workspaceID.
func (s *Store) UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role string) error {
	return s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE workspace_members SET role = $3 WHERE workspace_id = $1 AND user_id = $2`,
			workspaceID, userID, role); err != nil {
			return fmt.Errorf("update member role: %w", err)
		}
		return nil
	})
}

// RemoveMember removes userID from workspaceID.
func (s *Store) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	return s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`,
			workspaceID, userID); err != nil {
			return fmt.Errorf("remove member: %w", err)
		}
		return nil
	})
}

// ListUserWorkspaces returns all workspaces a user belongs to, ordered by
// workspace name. Uses RLS bypass — this is a cross-workspace query; no single
// workspaceID context applies.
func (s *Store) ListUserWorkspaces(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	var result []Membership
	err := s.WorkerTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT m.workspace_id, w.name, m.user_id, m.role, m.created_at
			 FROM workspace_members m
			 JOIN workspaces w ON w.id = m.workspace_id
			 WHERE m.user_id = $1 AND w.deleted_at IS NULL
			 ORDER BY w.name ASC`, userID)
		if err != nil {
			return fmt.Errorf("list user workspaces: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var m Membership
			if err := rows.Scan(&m.WorkspaceID, &m.WorkspaceName, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
				return fmt.Errorf("list user workspaces: scan: %w", err)
			}
			result = append(result, m)
		}
		return rows.Err()
	})
	return result, err
}

// GetOwnerCount returns the number of owners in the given workspace.
// Used to prevent removing or demoting the last owner.
func (s *Store) GetOwnerCount(ctx context.Context, workspaceID uuid.UUID) (int64, error) {
	var n int64
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM workspace_members WHERE workspace_id = $1 AND role = 'owner'`,
			workspaceID).Scan(&n); err != nil {
			return fmt.Errorf("get owner count: %w", err)
		}
		return nil
	})
	return n, err
}

// CreateInvitation inserts an invitation record and returns it.
func (s *Store) CreateInvitation(ctx context.Context, workspaceID uuid.UUID, email, role, token string, createdBy uuid.UUID, expiresAt time.Time) (*Invitation, error) {
	var inv *Invitation
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		row, err := scanInvitation(tx.QueryRow(ctx,
			`INSERT INTO workspace_invitations (workspace_id, email, role, token, created_by, expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+invitationColumns,
			workspaceID, email, role, token, createdBy, expiresAt))
		if err != nil {
			return err
		}
		inv = row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	return inv, nil
}

// GetInvitationByToken returns the invitation for the given token, or (nil, nil)
// if not found. Uses RLS bypass — called from public and accept endpoints with
// no workspace context. Callers are responsible for checking expiry and accepted_at.
func (s *Store) GetInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	var inv *Invitation
	err := s.WorkerTx(ctx, func(tx pgx.Tx) error {
		row, err := scanInvitation(tx.QueryRow(ctx,
			`SELECT `+invitationColumns+` FROM workspace_invitations WHERE token = $1`, token))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		inv = row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get invitation by token: %w", err)
	}
	return inv, nil
}

// AddMember inserts a membership row directly with the given role. Normal
// joins go through AcceptInvitation; this is for workspace bootstrap and tests.
func (s *Store) AddMember(ctx context.Context, workspaceID, userID uuid.UUID, role string) error {
	return s.WorkerTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, $3)`,
			workspaceID, userID, role); err != nil {
			return fmt.Errorf("add workspace member: %w", err)
		}
		return nil
	})
}

// AcceptInvitation atomically creates a workspace_members row and marks the
// invitation accepted. Uses RLS bypass since the caller has no workspace
// context yet (they are joining the workspace).
func (s *Store) AcceptInvitation(ctx context.Context, workspaceID, userID uuid.UUID, role string, invitationID uuid.UUID) error {
	return s.WorkerTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, $3)`,
			workspaceID, userID, role); err != nil {
			return fmt.Errorf("create workspace member: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE workspace_invitations SET accepted_at = now() WHERE id = $1`, invitationID); err != nil {
			return fmt.Errorf("mark invitation accepted: %w", err)
		}
		return nil
	})
}

// ListInvitations returns all pending, unexpired invitations for a workspace.
func (s *Store) ListInvitations(ctx context.Context, workspaceID uuid.UUID) ([]Invitation, error) {
	var result []Invitation
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+invitationColumns+`
			 FROM workspace_invitations
			 WHERE workspace_id = $1 AND accepted_at IS NULL AND expires_at > now()
			 ORDER BY created_at DESC`, workspaceID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var inv Invitation
			if err := rows.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.Token,
				&inv.CreatedBy, &inv.CreatedAt, &inv.ExpiresAt, &inv.AcceptedAt); err != nil {
				return err
			}
			result = append(result, inv)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return result, nil
}

// CancelInvitation deletes an invitation by ID within a workspace.
func (s *Store) CancelInvitation(ctx context.Context, workspaceID, id uuid.UUID) error {
	return s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM workspace_invitations WHERE workspace_id = $1 AND id = $2`,
			workspaceID, id); err != nil {
			return fmt.Errorf("cancel invitation: %w", err)
		}
		return nil
	})
}
