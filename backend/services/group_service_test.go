package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/vumotions/chatapp-server-sub000/backend/models"
)

func TestCreateGroupPrivateForcesApproval(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()

	conv, err := svc.CreateGroup(context.Background(), "owner", CreateGroupParams{
		Name:            "內部討論",
		GroupType:       models.GroupTypePrivate,
		RequireApproval: false,
		ParticipantIDs:  []string{"m1", "m2"},
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if !conv.RequireApproval {
		t.Fatal("private group must require approval")
	}

	owner := conv.Owner()
	if owner == nil || owner.UserID != "owner" {
		t.Fatalf("expected owner member, got %+v", owner)
	}
	if owner.Permissions != models.FullPermissions() {
		t.Fatal("owner should hold full permissions")
	}
	for _, id := range []string{"m1", "m2"} {
		m := conv.MemberOf(id)
		if m == nil || m.Role != models.RoleMember {
			t.Fatalf("expected %s as member, got %+v", id, m)
		}
		if m.Permissions != models.DefaultMemberPermissions() {
			t.Fatalf("member %s should hold default permissions", id)
		}
	}
	if !conv.ParticipantsInSync() {
		t.Fatal("participants mirror broken after create")
	}
}

func TestCreateGroupValidation(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()

	_, err := svc.CreateGroup(ctx, "owner", CreateGroupParams{Name: "  ", ParticipantIDs: []string{"m1", "m2"}})
	expectKind(t, err, KindInvalid, "group_name_required")

	// 去重後少於兩位其他成員
	_, err = svc.CreateGroup(ctx, "owner", CreateGroupParams{Name: "g", ParticipantIDs: []string{"m1", "m1", "owner"}})
	expectKind(t, err, KindInvalid, "participants_required")

	_, err = svc.CreateGroup(ctx, "owner", CreateGroupParams{Name: "g", GroupType: "secret", ParticipantIDs: []string{"m1", "m2"}})
	expectKind(t, err, KindInvalid, "invalid_group_type")
}

func TestCreateGroupCapacity(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()

	ids := make([]string, models.MaxGroupMembers)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%d", i)
	}
	_, err := svc.CreateGroup(context.Background(), "owner", CreateGroupParams{Name: "g", ParticipantIDs: ids})
	expectKind(t, err, KindConflict, "capacity_exceeded")
}

func TestAddMembersSkipsExistingAndChecksCapacity(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()
	conv := env.seedGroup(t, "owner", "m1", "m2")

	result, err := svc.AddMembers(ctx, "owner", conv.ID, []string{"m1", "m3", "m3", "m4"})
	if err != nil {
		t.Fatalf("AddMembers: %v", err)
	}
	if len(result.Added) != 2 || result.Added[0] != "m3" || result.Added[1] != "m4" {
		t.Fatalf("expected added [m3 m4], got %v", result.Added)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "m1" {
		t.Fatalf("expected skipped [m1], got %v", result.Skipped)
	}

	stored := env.store.mustGet(t, conv.ID)
	if stored.MemberOf("m3") == nil || stored.MemberOf("m4") == nil {
		t.Fatal("added members missing from stored conversation")
	}
	if stored.MemberOf("m3").InvitedBy != "owner" {
		t.Fatal("invited_by should record the actor")
	}
	if !stored.ParticipantsInSync() {
		t.Fatal("participants mirror broken after add")
	}

	// 全部已是成員：冪等成功且不寫入
	versionBefore := stored.Version
	result, err = svc.AddMembers(ctx, "owner", conv.ID, []string{"m1", "m3"})
	if err != nil {
		t.Fatalf("idempotent AddMembers: %v", err)
	}
	if len(result.Added) != 0 || len(result.Skipped) != 2 {
		t.Fatalf("expected all skipped, got %+v", result)
	}
	if env.store.mustGet(t, conv.ID).Version != versionBefore {
		t.Fatal("no-op add should not bump the version")
	}
}

func TestAddMembersAllOrNothingOnCapacity(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()

	ids := make([]string, models.MaxGroupMembers-1)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%d", i)
	}
	conv := env.seedGroup(t, append([]string{"owner"}, ids...)...)

	// 目前 100 人滿員，再加 1 人整批失敗，連未超額的部分也不寫入
	_, err := svc.AddMembers(ctx, "owner", conv.ID, []string{"extra1"})
	expectKind(t, err, KindConflict, "capacity_exceeded")
	if env.store.mustGet(t, conv.ID).MemberOf("extra1") != nil {
		t.Fatal("failed batch must not partially apply")
	}
}

func TestRemoveMemberPermissionRules(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()
	conv := env.seedGroup(t, "owner", "admin1", "admin2", "m1")
	_, err := env.store.Update(ctx, conv.ID, func(c *models.Conversation) error {
		c.MemberOf("admin1").Role = models.RoleAdmin
		c.MemberOf("admin1").Permissions = models.FullPermissions()
		c.MemberOf("admin2").Role = models.RoleAdmin
		perms := models.FullPermissions()
		perms.BanUsers = false
		c.MemberOf("admin2").Permissions = perms
		return nil
	})
	if err != nil {
		t.Fatalf("seed roles: %v", err)
	}

	// 沒有 ban_users 的管理員不能移除成員
	err = svc.RemoveMember(ctx, "admin2", conv.ID, "m1")
	expectKind(t, err, KindForbidden, "missing_permission")

	// 管理員之間互不隸屬
	err = svc.RemoveMember(ctx, "admin1", conv.ID, "admin2")
	expectKind(t, err, KindForbidden, "target_is_admin")

	// 群主不可被移除
	err = svc.RemoveMember(ctx, "admin1", conv.ID, "owner")
	expectKind(t, err, KindForbidden, "target_is_owner")

	// 不能移除自己
	err = svc.RemoveMember(ctx, "admin1", conv.ID, "admin1")
	expectKind(t, err, KindForbidden, "self_removal")

	// 有 ban_users 的管理員可以移除一般成員
	if err := svc.RemoveMember(ctx, "admin1", conv.ID, "m1"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	stored := env.store.mustGet(t, conv.ID)
	if stored.MemberOf("m1") != nil {
		t.Fatal("m1 should be removed")
	}
	if len(stored.FormerMembers) != 1 || stored.FormerMembers[0].UserID != "m1" {
		t.Fatal("removal should leave a former member record")
	}
}

func TestLeaveGroupOwnerCannotLeave(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()
	conv := env.seedGroup(t, "owner", "m1", "m2")

	err := svc.LeaveGroup(ctx, "owner", conv.ID)
	expectKind(t, err, KindConflict, "owner_cannot_leave")

	if err := svc.LeaveGroup(ctx, "m1", conv.ID); err != nil {
		t.Fatalf("LeaveGroup: %v", err)
	}
	stored := env.store.mustGet(t, conv.ID)
	if stored.IsParticipant("m1") {
		t.Fatal("m1 should no longer be a participant")
	}
	if !stored.ParticipantsInSync() {
		t.Fatal("participants mirror broken after leave")
	}
}

func TestUpdateGroupTrimsNameBeforeComparing(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()
	conv := env.seedGroup(t, "owner", "m1") // 名稱為「測試群組」

	// 只差在前後空白：修剪後與現值相同，應視為沒有變更
	name := "  測試群組  "
	_, err := svc.UpdateGroup(ctx, "owner", conv.ID, GroupSettingsPatch{Name: &name})
	expectKind(t, err, KindInvalid, "no_changes")

	name = "  新群組  "
	updated, err := svc.UpdateGroup(ctx, "owner", conv.ID, GroupSettingsPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	if updated.Name != "新群組" {
		t.Fatalf("expected trimmed name to be stored, got %q", updated.Name)
	}

	// 只改名稱不觸發設定事件
	for _, ev := range env.events.roomEvents {
		if ev == conv.ID.Hex()+"/"+models.EventGroupSettingsUpdated {
			t.Fatal("name-only update must not emit group_settings_updated")
		}
	}
}

func TestUpdateGroupSettingsEventResetOnRetry(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()
	conv := env.seedGroup(t, "owner", "m1")

	// 第一輪寫回失敗；並發寫入已把群組改成私密，重跑時只剩名稱有差異
	svc.conversations = &conflictOnceStore{
		memConversationStore: env.store,
		interleave: func(c *models.Conversation) {
			c.GroupType = models.GroupTypePrivate
			c.RequireApproval = true
		},
	}

	name := "新群組"
	private := models.GroupTypePrivate
	updated, err := svc.UpdateGroup(ctx, "owner", conv.ID, GroupSettingsPatch{Name: &name, GroupType: &private})
	if err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	if updated.Name != "新群組" || updated.GroupType != models.GroupTypePrivate {
		t.Fatalf("unexpected state after retry: %+v", updated)
	}

	// 重跑那一輪群組類型已無變更，不得殘留第一輪的設定旗標
	for _, ev := range env.events.roomEvents {
		if ev == conv.ID.Hex()+"/"+models.EventGroupSettingsUpdated {
			t.Fatal("retried update must not emit a stale group_settings_updated")
		}
	}
	found := false
	for _, ev := range env.events.roomEvents {
		if ev == conv.ID.Hex()+"/"+models.EventGroupUpdated {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected group_updated event, got %v", env.events.roomEvents)
	}
}

func TestUpdateMemberRoleOwnerImmutable(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	conv := env.seedGroup(t, "owner", "m1")

	ownerRole := models.RoleOwner
	_, err := svc.UpdateMemberRole(context.Background(), "owner", conv.ID, "m1", UpdateRoleParams{Role: &ownerRole})
	expectKind(t, err, KindInvalid, "owner_role_immutable")
}

func TestUpdateMemberRoleDelegatedCapping(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()
	conv := env.seedGroup(t, "owner", "admin1", "m1")
	_, err := env.store.Update(ctx, conv.ID, func(c *models.Conversation) error {
		c.MemberOf("admin1").Role = models.RoleAdmin
		c.MemberOf("admin1").Permissions = models.FullPermissions()
		return nil
	})
	if err != nil {
		t.Fatalf("seed roles: %v", err)
	}

	// 管理員提拔新管理員：即使要求完整權限，授出的集合也會被削減
	adminRole := models.RoleAdmin
	full := models.FullPermissions()
	updated, err := svc.UpdateMemberRole(ctx, "admin1", conv.ID, "m1", UpdateRoleParams{Role: &adminRole, Permissions: &full})
	if err != nil {
		t.Fatalf("UpdateMemberRole: %v", err)
	}
	if updated.Permissions.AddNewAdmins || updated.Permissions.BanUsers || updated.Permissions.ApproveJoinRequests {
		t.Fatalf("delegated promotion must cap permissions, got %+v", updated.Permissions)
	}
	if !updated.Permissions.ChangeGroupInfo {
		t.Fatal("capped promotion should keep the remaining permissions")
	}

	// 群主提拔則不削減
	m2 := models.Member{UserID: "m2", Role: models.RoleMember, Permissions: models.DefaultMemberPermissions()}
	if _, err := env.store.Update(ctx, conv.ID, func(c *models.Conversation) error {
		c.AddMember(m2)
		return nil
	}); err != nil {
		t.Fatalf("seed m2: %v", err)
	}
	updated, err = svc.UpdateMemberRole(ctx, "owner", conv.ID, "m2", UpdateRoleParams{Role: &adminRole, Permissions: &full})
	if err != nil {
		t.Fatalf("owner promotion: %v", err)
	}
	if updated.Permissions != models.FullPermissions() {
		t.Fatalf("owner promotion should grant requested permissions, got %+v", updated.Permissions)
	}
}

func TestUpdateMemberRoleDemotion(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()
	conv := env.seedGroup(t, "owner", "a1")
	_, err := env.store.Update(ctx, conv.ID, func(c *models.Conversation) error {
		c.MemberOf("a1").Role = models.RoleAdmin
		c.MemberOf("a1").Permissions = models.FullPermissions()
		return nil
	})
	if err != nil {
		t.Fatalf("seed roles: %v", err)
	}

	memberRole := models.RoleMember
	updated, err := svc.UpdateMemberRole(ctx, "owner", conv.ID, "a1", UpdateRoleParams{Role: &memberRole})
	if err != nil {
		t.Fatalf("demotion: %v", err)
	}
	if updated.Role != models.RoleMember {
		t.Fatalf("expected member role, got %s", updated.Role)
	}
	if updated.Permissions != (models.Permissions{InviteUsers: true}) {
		t.Fatalf("demotion should collapse permissions to member set, got %+v", updated.Permissions)
	}
}

func TestTransferOwnership(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()
	conv := env.seedGroup(t, "owner", "m1", "m2")

	err := svc.TransferOwnership(ctx, "owner", conv.ID, "owner")
	expectKind(t, err, KindInvalid, "transfer_to_self")

	err = svc.TransferOwnership(ctx, "m1", conv.ID, "m2")
	expectKind(t, err, KindForbidden, "owner_only")

	err = svc.TransferOwnership(ctx, "owner", conv.ID, "ghost")
	expectKind(t, err, KindNotFound, "member_not_found")

	messagesBefore := len(env.chat.messages)
	if err := svc.TransferOwnership(ctx, "owner", conv.ID, "m1"); err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}

	stored := env.store.mustGet(t, conv.ID)
	if stored.OwnerID != "m1" {
		t.Fatalf("owner_id pointer not updated, got %s", stored.OwnerID)
	}
	newOwner := stored.MemberOf("m1")
	if newOwner.Role != models.RoleOwner || newOwner.Permissions != models.FullPermissions() {
		t.Fatalf("new owner state wrong: %+v", newOwner)
	}
	former := stored.MemberOf("owner")
	if former.Role != models.RoleAdmin {
		t.Fatalf("former owner should become admin, got %s", former.Role)
	}
	if former.Permissions.AddNewAdmins {
		t.Fatal("former owner must lose add_new_admins")
	}
	if stored.Owner().UserID != "m1" {
		t.Fatal("exactly the new owner should hold the OWNER role")
	}
	if len(env.chat.messages) != messagesBefore+1 {
		t.Fatalf("expected exactly one system message, got %d new", len(env.chat.messages)-messagesBefore)
	}
}

func TestGetConversationNonMember(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	conv := env.seedGroup(t, "owner", "m1")

	_, err := svc.GetConversation(context.Background(), "stranger", conv.ID)
	expectKind(t, err, KindForbidden, "not_a_member")
}

func TestDisbandGroup(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()
	conv := env.seedGroup(t, "owner", "m1", "m2")

	err := svc.DisbandGroup(ctx, "m1", conv.ID)
	expectKind(t, err, KindForbidden, "owner_only")

	if err := svc.DisbandGroup(ctx, "owner", conv.ID); err != nil {
		t.Fatalf("DisbandGroup: %v", err)
	}
	if _, err := env.store.FindByID(ctx, conv.ID); err == nil {
		t.Fatal("conversation should be deleted")
	}
	if len(env.chat.deleted) != 1 || env.chat.deleted[0] != conv.ID.Hex() {
		t.Fatalf("room messages should be deleted, got %v", env.chat.deleted)
	}
	// 其餘成員收到解散通知
	want := map[string]bool{"m1/group_disbanded": true, "m2/group_disbanded": true}
	for _, n := range env.notifier.notified {
		delete(want, n)
	}
	if len(want) != 0 {
		t.Fatalf("missing disband notifications: %v", want)
	}
}

func TestRefreshInviteLink(t *testing.T) {
	env := newTestEnv()
	svc := env.groupService()
	ctx := context.Background()
	conv := env.seedGroup(t, "owner", "m1")
	_, err := env.store.Update(ctx, conv.ID, func(c *models.Conversation) error {
		c.MemberOf("m1").Permissions = models.Permissions{}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = svc.RefreshInviteLink(ctx, "m1", conv.ID)
	expectKind(t, err, KindForbidden, "missing_permission")

	link, err := svc.RefreshInviteLink(ctx, "owner", conv.ID)
	if err != nil {
		t.Fatalf("RefreshInviteLink: %v", err)
	}
	if link == "" {
		t.Fatal("expected non-empty invite link")
	}
	if env.store.mustGet(t, conv.ID).InviteLink != link {
		t.Fatal("stored invite link should match the returned token")
	}

	// 重新生成後舊連結失效
	second, err := svc.RefreshInviteLink(ctx, "owner", conv.ID)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if second == link {
		t.Fatal("refresh must rotate the token")
	}
}
