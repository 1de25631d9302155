package models

import "testing"

func member(userID string, role Role, perms Permissions) Member {
	return Member{UserID: userID, Role: role, Permissions: perms}
}

func TestAuthorizeOwnerUntargetable(t *testing.T) {
	owner := member("owner", RoleOwner, FullPermissions())
	admin := member("admin", RoleAdmin, FullPermissions())

	for _, action := range []GroupAction{ActionRemoveMember, ActionMuteMember, ActionChangeMemberRole} {
		denial := Authorize(admin, &owner, action)
		if denial == nil {
			t.Fatalf("expected denial for %s against owner", action)
		}
		if denial.Rule != "target_is_owner" {
			t.Fatalf("expected rule target_is_owner, got %q", denial.Rule)
		}
	}

	// 群主自己也不能成為目標
	if denial := Authorize(owner, &owner, ActionRemoveMember); denial == nil {
		t.Fatal("owner should not be able to target itself")
	}
}

func TestAuthorizeSelfTargeting(t *testing.T) {
	admin := member("admin", RoleAdmin, FullPermissions())

	denial := Authorize(admin, &admin, ActionRemoveMember)
	if denial == nil || denial.Rule != "self_removal" {
		t.Fatalf("expected self_removal denial, got %v", denial)
	}

	denial = Authorize(admin, &admin, ActionMuteMember)
	if denial == nil || denial.Rule != "self_mute" {
		t.Fatalf("expected self_mute denial, got %v", denial)
	}
}

func TestAuthorizeOwnerAllowedEverything(t *testing.T) {
	owner := member("owner", RoleOwner, FullPermissions())
	target := member("m1", RoleMember, DefaultMemberPermissions())

	actions := []GroupAction{
		ActionChangeGroupInfo, ActionDeleteMessages, ActionRemoveMember,
		ActionMuteMember, ActionInviteUsers, ActionPinMessages,
		ActionAddNewAdmins, ActionChangeMemberRole, ActionApproveJoinRequests,
	}
	for _, action := range actions {
		if denial := Authorize(owner, &target, action); denial != nil {
			t.Fatalf("owner denied %s: %s", action, denial.Rule)
		}
	}

	// admin 也可以被群主作為目標
	adminTarget := member("a1", RoleAdmin, FullPermissions())
	if denial := Authorize(owner, &adminTarget, ActionChangeMemberRole); denial != nil {
		t.Fatalf("owner should manage admins, got %s", denial.Rule)
	}
}

func TestAuthorizeAdminOnAdmin(t *testing.T) {
	a1 := member("a1", RoleAdmin, FullPermissions())
	a2 := member("a2", RoleAdmin, FullPermissions())

	denial := Authorize(a1, &a2, ActionRemoveMember)
	if denial == nil || denial.Rule != "target_is_admin" {
		t.Fatalf("expected target_is_admin denial, got %v", denial)
	}
}

func TestAuthorizeAdminMissingPermission(t *testing.T) {
	perms := FullPermissions()
	perms.BanUsers = false
	admin := member("a1", RoleAdmin, perms)
	target := member("m1", RoleMember, DefaultMemberPermissions())

	// remove 與 mute 都由 ban_users 把關
	for _, action := range []GroupAction{ActionRemoveMember, ActionMuteMember} {
		denial := Authorize(admin, &target, action)
		if denial == nil || denial.Rule != "missing_permission" {
			t.Fatalf("expected missing_permission for %s, got %v", action, denial)
		}
	}

	admin.Permissions.BanUsers = true
	if denial := Authorize(admin, &target, ActionRemoveMember); denial != nil {
		t.Fatalf("admin with ban_users denied: %s", denial.Rule)
	}
}

func TestAuthorizeMember(t *testing.T) {
	m := member("m1", RoleMember, DefaultMemberPermissions())

	if denial := Authorize(m, nil, ActionInviteUsers); denial != nil {
		t.Fatalf("member with invite_users denied invite: %s", denial.Rule)
	}

	m.Permissions.InviteUsers = false
	if denial := Authorize(m, nil, ActionInviteUsers); denial == nil {
		t.Fatal("member without invite_users should be denied")
	}

	target := member("m2", RoleMember, DefaultMemberPermissions())
	denial := Authorize(m, &target, ActionRemoveMember)
	if denial == nil || denial.Rule != "member_forbidden" {
		t.Fatalf("expected member_forbidden, got %v", denial)
	}
}

func TestCappedForDelegation(t *testing.T) {
	capped := FullPermissions().CappedForDelegation()
	if capped.AddNewAdmins || capped.BanUsers || capped.ApproveJoinRequests {
		t.Fatal("delegation cap should strip add_new_admins, ban_users and approve_join_requests")
	}
	if !capped.ChangeGroupInfo || !capped.DeleteMessages || !capped.InviteUsers || !capped.PinMessages {
		t.Fatal("delegation cap should keep the remaining permissions")
	}
}

func TestRestrictedToMember(t *testing.T) {
	restricted := FullPermissions().RestrictedToMember()
	if restricted != (Permissions{InviteUsers: true}) {
		t.Fatalf("member permissions should only keep invite_users, got %+v", restricted)
	}
}
