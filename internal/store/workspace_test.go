// ABOUTME: Integration tests for store/workspace.go — workspaces, members, invitations.
// ABOUTME: Uses testutil.NewTestDB; each test runs in its own container (t.Parallel).
package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/testutil"
)

func TestCreateWorkspaceWithOwner(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "owner@example.com", "Owner", "", 0)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	ws, err := s.CreateWorkspaceWithOwner(ctx, "Acme Imports", user.ID)
	if err != nil {
		t.Fatalf("CreateWorkspaceWithOwner: %v", err)
	}
	if ws.Name != "Acme Imports" {
		t.Errorf("name = %q, want %q", ws.Name, "Acme Imports")
	}

	// Creator holds the owner role; owner count is exactly one.
	role, err := s.GetMemberRole(ctx, ws.ID, user.ID)
	if err != nil {
		t.Fatalf("GetMemberRole: %v", err)
	}
	if role == nil || *role != "owner" {
		t.Errorf("creator role = %v, want owner", role)
	}
	owners, err := s.GetOwnerCount(ctx, ws.ID)
	if err != nil {
		t.Fatalf("GetOwnerCount: %v", err)
	}
	if owners != 1 {
		t.Errorf("owner count = %d, want 1", owners)
	}

	got, err := s.GetWorkspaceByID(ctx, ws.ID)
	if err != nil {
		t.Fatalf("GetWorkspaceByID: %v", err)
	}
	if got == nil || got.ID != ws.ID {
		t.Fatalf("GetWorkspaceByID = %+v, want %v", got, ws.ID)
	}

	missing, err := s.GetWorkspaceByID(ctx, uuid.New())
	if err != nil {
		t.Fatalf("GetWorkspaceByID(missing): %v", err)
	}
	if missing != nil {
		t.Error("GetWorkspaceByID(missing) should return nil")
	}
}

func TestGetMemberRole_NonMember(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, "o@example.com", "O", "", 0)
	ws, _ := s.CreateWorkspaceWithOwner(ctx, "WS", owner.ID)
	stranger, _ := s.CreateUser(ctx, "stranger@example.com", "Stranger", "", 0)

	role, err := s.GetMemberRole(ctx, ws.ID, stranger.ID)
	if err != nil {
		t.Fatalf("GetMemberRole: %v", err)
	}
	if role != nil {
		t.Errorf("expected nil for non-member, got %q", *role)
	}
}

func TestUpdateAndRemoveMember(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, "boss@example.com", "Boss", "", 0)
	ws, _ := s.CreateWorkspaceWithOwner(ctx, "ChangeWS", owner.ID)
	user, _ := s.CreateUser(ctx, "dave@example.com", "Dave", "", 0)
	if err := s.AddMember(ctx, ws.ID, user.ID, "viewer"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	if err := s.UpdateMemberRole(ctx, ws.ID, user.ID, "admin"); err != nil {
		t.Fatalf("UpdateMemberRole: %v", err)
	}
	role, _ := s.GetMemberRole(ctx, ws.ID, user.ID)
	if role == nil || *role != "admin" {
		t.Errorf("role after update = %v, want admin", role)
	}

	if err := s.RemoveMember(ctx, ws.ID, user.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	gone, _ := s.GetMemberRole(ctx, ws.ID, user.ID)
	if gone != nil {
		t.Error("member should be gone after RemoveMember")
	}
}

func TestListUserWorkspaces(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	user, _ := s.CreateUser(ctx, "carol@example.com", "Carol", "", 0)
	wsA, _ := s.CreateWorkspaceWithOwner(ctx, "Alpha Imports", user.ID)
	other, _ := s.CreateUser(ctx, "other@example.com", "Other", "", 0)
	wsB, _ := s.CreateWorkspaceWithOwner(ctx, "Beta Imports", other.ID)
	if err := s.AddMember(ctx, wsB.ID, user.ID, "member"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	list, err := s.ListUserWorkspaces(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListUserWorkspaces: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("memberships = %d, want 2", len(list))
	}
	// Ordered by workspace name.
	if list[0].WorkspaceID != wsA.ID || list[1].WorkspaceID != wsB.ID {
		t.Errorf("unexpected order: %v, %v", list[0].WorkspaceName, list[1].WorkspaceName)
	}
	if list[0].Role != "owner" || list[1].Role != "member" {
		t.Errorf("unexpected roles: %q, %q", list[0].Role, list[1].Role)
	}
}

func TestSoftDeleteWorkspace(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, "del@example.com", "Del", "", 0)
	ws, _ := s.CreateWorkspaceWithOwner(ctx, "Doomed", owner.ID)

	if err := s.SoftDeleteWorkspace(ctx, ws.ID); err != nil {
		t.Fatalf("SoftDeleteWorkspace: %v", err)
	}
	got, err := s.GetWorkspaceByID(ctx, ws.ID)
	if err != nil {
		t.Fatalf("GetWorkspaceByID: %v", err)
	}
	if got != nil {
		t.Error("soft-deleted workspace should not be readable")
	}

	// Memberships of a deleted workspace no longer resolve.
	list, err := s.ListUserWorkspaces(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListUserWorkspaces: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("memberships after delete = %d, want 0", len(list))
	}
}

func TestInvitation_AcceptFlow(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	admin, _ := s.CreateUser(ctx, "admin@example.com", "Admin", "", 0)
	ws, _ := s.CreateWorkspaceWithOwner(ctx, "InviteWS", admin.ID)

	token := "abc123token"
	expires := time.Now().Add(48 * time.Hour)
	inv, err := s.CreateInvitation(ctx, ws.ID, "newbie@example.com", "member", token, admin.ID, expires)
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	got, err := s.GetInvitationByToken(ctx, token)
	if err != nil {
		t.Fatalf("GetInvitationByToken: %v", err)
	}
	if got == nil {
		t.Fatal("GetInvitationByToken returned nil for existing token")
	}
	if got.Email != "newbie@example.com" {
		t.Errorf("email = %q, want newbie@example.com", got.Email)
	}
	if got.AcceptedAt != nil {
		t.Error("AcceptedAt should be nil before acceptance")
	}

	// Accepting adds the membership and stamps the invitation atomically.
	newbie, _ := s.CreateUser(ctx, "newbie@example.com", "Newbie", "", 0)
	if err := s.AcceptInvitation(ctx, ws.ID, newbie.ID, inv.Role, inv.ID); err != nil {
		t.Fatalf("AcceptInvitation: %v", err)
	}
	role, _ := s.GetMemberRole(ctx, ws.ID, newbie.ID)
	if role == nil || *role != "member" {
		t.Errorf("role after accept = %v, want member", role)
	}
	accepted, _ := s.GetInvitationByToken(ctx, token)
	if accepted == nil || accepted.AcceptedAt == nil {
		t.Error("AcceptedAt should be set after acceptance")
	}
}

func TestListInvitations_Filtering(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	admin, _ := s.CreateUser(ctx, "admin2@example.com", "Admin2", "", 0)
	ws, _ := s.CreateWorkspaceWithOwner(ctx, "FilterWS", admin.ID)

	if _, err := s.CreateInvitation(ctx, ws.ID, "active@example.com", "member",
		"activetoken", admin.ID, time.Now().Add(48*time.Hour)); err != nil {
		t.Fatalf("create active: %v", err)
	}
	if _, err := s.CreateInvitation(ctx, ws.ID, "expired@example.com", "member",
		"expiredtoken", admin.ID, time.Now().Add(-1*time.Hour)); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	cancelled, err := s.CreateInvitation(ctx, ws.ID, "cancelled@example.com", "member",
		"cancelledtoken", admin.ID, time.Now().Add(48*time.Hour))
	if err != nil {
		t.Fatalf("create cancelled: %v", err)
	}
	if err := s.CancelInvitation(ctx, ws.ID, cancelled.ID); err != nil {
		t.Fatalf("CancelInvitation: %v", err)
	}

	// Only the active, uncancelled invitation appears.
	list, err := s.ListInvitations(ctx, ws.ID)
	if err != nil {
		t.Fatalf("ListInvitations: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListInvitations returned %d items, want 1", len(list))
	}
	if list[0].Email != "active@example.com" {
		t.Errorf("unexpected invitation email: %q", list[0].Email)
	}

	// GetInvitationByToken still returns expired tokens (handler checks expiry).
	expired, err := s.GetInvitationByToken(ctx, "expiredtoken")
	if err != nil {
		t.Fatalf("GetInvitationByToken(expired): %v", err)
	}
	if expired == nil {
		t.Error("GetInvitationByToken should return expired invitations")
	}
}
