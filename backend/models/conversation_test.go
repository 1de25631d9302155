package models

import (
	"testing"
	"time"
)

func groupWith(memberIDs ...string) *Conversation {
	conv := &Conversation{Type: ConversationTypeGroup, GroupType: GroupTypePublic}
	for i, id := range memberIDs {
		role := RoleMember
		perms := DefaultMemberPermissions()
		if i == 0 {
			role = RoleOwner
			perms = FullPermissions()
			conv.OwnerID = id
		}
		conv.AddMember(Member{UserID: id, Role: role, Permissions: perms})
	}
	return conv
}

func TestAddMemberKeepsParticipantsMirror(t *testing.T) {
	conv := groupWith("owner", "m1", "m2")

	if !conv.ParticipantsInSync() {
		t.Fatal("participants should mirror members after AddMember")
	}
	if len(conv.Participants) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(conv.Participants))
	}

	// 重複加入不產生重複記錄
	if conv.AddMember(Member{UserID: "m1", Role: RoleMember}) {
		t.Fatal("adding an existing member should return false")
	}
	if len(conv.Members) != 3 || len(conv.Participants) != 3 {
		t.Fatal("duplicate add should not change members or participants")
	}
}

func TestRemoveMemberRecord(t *testing.T) {
	conv := groupWith("owner", "m1", "m2")
	leftAt := time.Now()

	if !conv.RemoveMemberRecord("m1", leftAt) {
		t.Fatal("expected removal of existing member")
	}
	if conv.MemberOf("m1") != nil || conv.IsParticipant("m1") {
		t.Fatal("removed member should vanish from members and participants")
	}
	if !conv.ParticipantsInSync() {
		t.Fatal("participants mirror broken after removal")
	}
	if len(conv.FormerMembers) != 1 || conv.FormerMembers[0].UserID != "m1" {
		t.Fatalf("expected former member record for m1, got %+v", conv.FormerMembers)
	}

	if conv.RemoveMemberRecord("ghost", leftAt) {
		t.Fatal("removing a non-member should return false")
	}
}

func TestMuteWindow(t *testing.T) {
	now := time.Now()
	until := now.Add(10 * time.Minute)
	m := Member{UserID: "m1", IsMuted: true, MutedUntil: &until}

	if !m.EffectivelyMuted(now) {
		t.Fatal("member should be muted before the deadline")
	}
	if m.MuteExpired(now) {
		t.Fatal("mute should not be expired before the deadline")
	}

	later := until.Add(time.Second)
	if m.EffectivelyMuted(later) {
		t.Fatal("member should not be muted after the deadline")
	}
	if !m.MuteExpired(later) {
		t.Fatal("mute should be expired after the deadline")
	}

	// 無限期禁言永不過期
	m.MutedUntil = nil
	if !m.EffectivelyMuted(later.Add(24 * time.Hour)) {
		t.Fatal("indefinite mute should stay effective")
	}
	if m.MuteExpired(later) {
		t.Fatal("indefinite mute never expires")
	}
}

func TestSendRestrictionWindow(t *testing.T) {
	now := time.Now()
	until := now.Add(30 * time.Minute)
	conv := &Conversation{
		Type:              ConversationTypeGroup,
		OnlyAdminsCanSend: true,
		RestrictUntil:     &until,
	}

	if !conv.SendRestrictionActive(now) {
		t.Fatal("restriction should be active before the deadline")
	}
	if conv.RestrictionExpired(now) {
		t.Fatal("restriction should not be expired before the deadline")
	}

	later := until.Add(time.Second)
	if conv.SendRestrictionActive(later) {
		t.Fatal("restriction should lapse after the deadline")
	}
	if !conv.RestrictionExpired(later) {
		t.Fatal("restriction should report expired after the deadline")
	}

	conv.RestrictUntil = nil
	if !conv.SendRestrictionActive(later) {
		t.Fatal("indefinite restriction should stay active")
	}
}

func TestPendingRequestFor(t *testing.T) {
	conv := groupWith("owner", "m1", "m2")
	conv.PendingRequests = []JoinRequest{
		{UserID: "u1", Status: JoinRequestRejected},
		{UserID: "u1", Status: JoinRequestPending},
		{UserID: "u2", Status: JoinRequestApproved},
	}

	req := conv.PendingRequestFor("u1")
	if req == nil || req.Status != JoinRequestPending {
		t.Fatalf("expected pending request for u1, got %+v", req)
	}
	if conv.PendingRequestFor("u2") != nil {
		t.Fatal("approved request should not count as pending")
	}
}

func TestAdmins(t *testing.T) {
	conv := groupWith("owner", "m1", "m2")
	conv.MemberOf("m1").Role = RoleAdmin

	admins := conv.Admins()
	if len(admins) != 2 {
		t.Fatalf("expected owner and m1 as admins, got %v", admins)
	}
}
