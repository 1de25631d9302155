package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/database"
	"github.com/vumotions/chatapp-server-sub000/backend/models"
	"github.com/vumotions/chatapp-server-sub000/backend/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupService 負責群組的生命週期與成員管理
// 所有會改動成員、設定的操作都以單一會話文件的條件更新完成，
// 提交成功後才做系統訊息、站內通知與 socket 推播（盡力而為，失敗僅記 log）
type GroupService struct {
	conversations database.ConversationStore
	users         UserDirectory
	chat          Messenger
	notifications Notifier
	events        Events
	now           func() time.Time
}

// NewGroupService 以 Mongo 存取層組裝 GroupService
func NewGroupService(store database.Store, events Events) *GroupService {
	if events == nil {
		events = NoopEvents{}
	}
	return &GroupService{
		conversations: store.Conversations(),
		users:         &mongoUserDirectory{coll: store.Collection("users")},
		chat:          NewChatService(store, nil),
		notifications: NewNotificationService(store),
		events:        events,
		now:           time.Now,
	}
}

// CreateGroupParams 建立群組的參數
type CreateGroupParams struct {
	Name            string
	AvatarURL       string
	GroupType       string // public, private；預設 public
	RequireApproval bool
	ParticipantIDs  []string // 不含群主自己
}

// CreateGroup 建立群組，群主取得完整權限，其餘成員為一般成員
func (s *GroupService) CreateGroup(ctx context.Context, ownerID string, params CreateGroupParams) (*models.Conversation, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, invalid("group_name_required", "群組名稱為必填項")
	}

	groupType := params.GroupType
	if groupType == "" {
		groupType = models.GroupTypePublic
	}
	if groupType != models.GroupTypePublic && groupType != models.GroupTypePrivate {
		return nil, invalid("invalid_group_type", "群組類型必須為 public 或 private")
	}

	// 私密群組強制開啟入群審核
	requireApproval := params.RequireApproval
	if groupType == models.GroupTypePrivate {
		requireApproval = true
	}

	// 去重並排除群主自己
	var participantIDs []string
	seen := map[string]bool{ownerID: true}
	for _, id := range params.ParticipantIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		participantIDs = append(participantIDs, id)
	}

	if len(participantIDs) < 2 {
		return nil, invalid("participants_required", "建立群組至少需要兩位其他成員")
	}
	if len(participantIDs)+1 > models.MaxGroupMembers {
		return nil, conflict("capacity_exceeded", fmt.Sprintf("群組成員數不能超過 %d 人", models.MaxGroupMembers))
	}

	now := s.now()
	conv := &models.Conversation{
		Type:            models.ConversationTypeGroup,
		Name:            name,
		AvatarURL:       params.AvatarURL,
		GroupType:       groupType,
		RequireApproval: requireApproval,
		OwnerID:         ownerID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	conv.AddMember(models.Member{
		UserID:      ownerID,
		Role:        models.RoleOwner,
		Permissions: models.FullPermissions(),
		JoinedAt:    now,
	})
	for _, id := range participantIDs {
		conv.AddMember(models.Member{
			UserID:      id,
			Role:        models.RoleMember,
			Permissions: models.DefaultMemberPermissions(),
			JoinedAt:    now,
			InvitedBy:   ownerID,
		})
	}

	if err := s.conversations.Insert(ctx, conv); err != nil {
		return nil, err
	}

	ownerName := lookupName(ctx, s.users, ownerID)
	s.appendSystemMessage(ctx, conv.ID.Hex(), ownerID, ownerName, fmt.Sprintf("%s 建立了群組「%s」", ownerName, name))

	payload := map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        ownerID,
		"name":            name,
	}
	s.events.NotifyRoom(conv.ID.Hex(), models.EventGroupCreated, payload)
	for _, id := range participantIDs {
		s.events.NotifyUser(id, models.EventGroupCreated, payload)
	}

	return conv, nil
}

// GroupSettingsPatch 更新群組設定的欄位，nil 代表不變更
type GroupSettingsPatch struct {
	Name            *string
	AvatarURL       *string
	GroupType       *string
	RequireApproval *bool
}

// UpdateGroup 更新群組設定，需要群主或持有 change_group_info 權限的管理員
// 系統訊息會逐一列出實際變更的欄位
func (s *GroupService) UpdateGroup(ctx context.Context, actorID string, conversationID primitive.ObjectID, patch GroupSettingsPatch) (*models.Conversation, error) {
	if patch.Name == nil && patch.AvatarURL == nil && patch.GroupType == nil && patch.RequireApproval == nil {
		return nil, invalid("no_fields", "沒有任何要更新的欄位")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, invalid("group_name_required", "群組名稱不能為空")
	}
	if patch.GroupType != nil && *patch.GroupType != models.GroupTypePublic && *patch.GroupType != models.GroupTypePrivate {
		return nil, invalid("invalid_group_type", "群組類型必須為 public 或 private")
	}

	var changed []string
	var settingsChanged bool
	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		actor, err := s.requireGroupMember(conv, actorID)
		if err != nil {
			return err
		}
		if denial := models.Authorize(*actor, nil, models.ActionChangeGroupInfo); denial != nil {
			return denialError(denial)
		}

		changed = changed[:0]
		settingsChanged = false
		if patch.Name != nil {
			if name := strings.TrimSpace(*patch.Name); name != conv.Name {
				conv.Name = name
				changed = append(changed, "名稱")
			}
		}
		if patch.AvatarURL != nil && *patch.AvatarURL != conv.AvatarURL {
			conv.AvatarURL = *patch.AvatarURL
			changed = append(changed, "頭像")
		}
		if patch.GroupType != nil && *patch.GroupType != conv.GroupType {
			conv.GroupType = *patch.GroupType
			changed = append(changed, "群組類型")
			settingsChanged = true
		}
		if patch.RequireApproval != nil && *patch.RequireApproval != conv.RequireApproval {
			conv.RequireApproval = *patch.RequireApproval
			changed = append(changed, "入群審核")
			settingsChanged = true
		}

		// 私密群組永遠需要審核，事後修正而不是報錯
		if conv.GroupType == models.GroupTypePrivate && !conv.RequireApproval {
			conv.RequireApproval = true
			settingsChanged = true
		}

		if len(changed) == 0 {
			return invalid("no_changes", "設定沒有任何變更")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	actorName := lookupName(ctx, s.users, actorID)
	s.appendSystemMessage(ctx, conv.ID.Hex(), actorID, actorName, fmt.Sprintf("%s 更新了群組%s", actorName, strings.Join(changed, "、")))

	payload := map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        actorID,
		"changed":         changed,
	}
	s.events.NotifyRoom(conv.ID.Hex(), models.EventGroupUpdated, payload)
	if settingsChanged {
		s.events.NotifyRoom(conv.ID.Hex(), models.EventGroupSettingsUpdated, payload)
	}
	return conv, nil
}

// DisbandGroup 解散群組並刪除所有訊息，只有群主可以執行
// 這裡直接檢查會話的 owner_id 指標，轉讓流程保證它與 OWNER 角色同步
func (s *GroupService) DisbandGroup(ctx context.Context, actorID string, conversationID primitive.ObjectID) error {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup() {
		return invalid("not_a_group", "此會話不是群組")
	}
	if conv.OwnerID != actorID {
		return forbidden("owner_only", "只有群主可以解散群組")
	}

	participants := append([]string(nil), conv.Participants...)

	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		return err
	}
	if err := s.chat.DeleteRoomMessages(ctx, conversationID.Hex()); err != nil {
		log.Printf("Failed to delete messages for disbanded group %s: %v", conversationID.Hex(), err)
	}

	payload := map[string]interface{}{
		"conversation_id": conversationID.Hex(),
		"actor_id":        actorID,
	}
	s.events.NotifyRoom(conversationID.Hex(), models.EventGroupDisbanded, payload)
	for _, id := range participants {
		if id == actorID {
			continue
		}
		s.events.NotifyUser(id, models.EventGroupDisbanded, payload)
		s.notify(ctx, id, models.NotificationGroupDisbanded, conversationID.Hex(), map[string]string{"actor_id": actorID})
	}
	return nil
}

// RefreshInviteLink 重新產生邀請連結，舊連結立即失效
// 群主、管理員，或持有 invite_users 權限的成員可以執行
func (s *GroupService) RefreshInviteLink(ctx context.Context, actorID string, conversationID primitive.ObjectID) (string, error) {
	token := utils.NewInviteToken()
	_, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		actor, err := s.requireGroupMember(conv, actorID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleOwner && actor.Role != models.RoleAdmin && !actor.Permissions.InviteUsers {
			return forbidden("missing_permission", "您沒有管理邀請連結的權限")
		}
		conv.InviteLink = token
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// AddMembersResult 實際加入與被略過（原本就在群組裡）的用戶
type AddMembersResult struct {
	Added        []string             `json:"added"`
	Skipped      []string             `json:"skipped"`
	Conversation *models.Conversation `json:"-"`
}

// AddMembers 將多個用戶直接加入群組
// 已是成員的用戶靜默略過；會導致超出人數上限時整批失敗
func (s *GroupService) AddMembers(ctx context.Context, actorID string, conversationID primitive.ObjectID, userIDs []string) (*AddMembersResult, error) {
	if len(userIDs) == 0 {
		return nil, invalid("user_ids_required", "請提供要加入的用戶")
	}

	result := &AddMembersResult{}
	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		actor, err := s.requireGroupMember(conv, actorID)
		if err != nil {
			return err
		}
		if denial := models.Authorize(*actor, nil, models.ActionInviteUsers); denial != nil {
			return denialError(denial)
		}

		result.Added = result.Added[:0]
		result.Skipped = result.Skipped[:0]
		seen := make(map[string]bool)
		var toAdd []string
		for _, id := range userIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			if conv.IsParticipant(id) {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			toAdd = append(toAdd, id)
		}

		if len(conv.Participants)+len(toAdd) > models.MaxGroupMembers {
			return conflict("capacity_exceeded", fmt.Sprintf("群組成員數不能超過 %d 人", models.MaxGroupMembers))
		}

		now := s.now()
		for _, id := range toAdd {
			conv.AddMember(models.Member{
				UserID:      id,
				Role:        models.RoleMember,
				Permissions: models.DefaultMemberPermissions(),
				JoinedAt:    now,
				InvitedBy:   actorID,
			})
			result.Added = append(result.Added, id)
		}
		if len(result.Added) == 0 {
			return errSkipUpdate
		}
		return nil
	})
	if err != nil {
		if err == errSkipUpdate {
			// 所有人都已在群組裡，冪等成功
			return result, nil
		}
		return nil, err
	}
	result.Conversation = conv

	actorName := lookupName(ctx, s.users, actorID)
	var addedNames []string
	for _, id := range result.Added {
		addedNames = append(addedNames, lookupName(ctx, s.users, id))
	}
	s.appendSystemMessage(ctx, conv.ID.Hex(), actorID, actorName, fmt.Sprintf("%s 將 %s 加入群組", actorName, strings.Join(addedNames, "、")))

	payload := map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        actorID,
		"added":           result.Added,
	}
	s.events.NotifyRoom(conv.ID.Hex(), models.EventMembersAdded, payload)
	for _, id := range result.Added {
		s.events.NotifyUser(id, models.EventMembersAdded, payload)
	}
	return result, nil
}

// RemoveMember 將成員移出群組，受 4 級權限規則保護：
// 不能移除自己、不能移除群主、管理員不能互移，管理員需要 ban_users 權限
func (s *GroupService) RemoveMember(ctx context.Context, actorID string, conversationID primitive.ObjectID, targetID string) error {
	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		actor, err := s.requireGroupMember(conv, actorID)
		if err != nil {
			return err
		}
		target := conv.MemberOf(targetID)
		if target == nil {
			return notFound("member_not_found", "目標用戶不在此群組中")
		}
		if denial := models.Authorize(*actor, target, models.ActionRemoveMember); denial != nil {
			return denialError(denial)
		}
		conv.RemoveMemberRecord(targetID, s.now())
		return nil
	})
	if err != nil {
		return err
	}

	actorName := lookupName(ctx, s.users, actorID)
	targetName := lookupName(ctx, s.users, targetID)
	s.appendSystemMessage(ctx, conv.ID.Hex(), actorID, actorName, fmt.Sprintf("%s 將 %s 移出群組", actorName, targetName))

	payload := map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        actorID,
		"target_id":       targetID,
	}
	s.events.NotifyRoom(conv.ID.Hex(), models.EventMemberRemoved, payload)
	s.events.NotifyUser(targetID, models.EventMemberRemoved, payload)
	return nil
}

// LeaveGroup 離開群組，群主必須先轉讓
func (s *GroupService) LeaveGroup(ctx context.Context, userID string, conversationID primitive.ObjectID) error {
	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		member, err := s.requireGroupMember(conv, userID)
		if err != nil {
			return err
		}
		if member.Role == models.RoleOwner {
			return conflict("owner_cannot_leave", "群組創建者不能離開群組，請先轉移群組所有權或刪除群組")
		}
		conv.RemoveMemberRecord(userID, s.now())
		return nil
	})
	if err != nil {
		return err
	}

	userName := lookupName(ctx, s.users, userID)
	s.appendSystemMessage(ctx, conv.ID.Hex(), userID, userName, fmt.Sprintf("%s 離開了群組", userName))

	s.events.NotifyRoom(conv.ID.Hex(), models.EventMemberLeft, map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        userID,
	})
	return nil
}

// UpdateRoleParams 更新成員角色、權限與頭銜的參數，nil 代表不變更
type UpdateRoleParams struct {
	Role        *models.Role
	Permissions *models.Permissions
	CustomTitle *string
}

// UpdateMemberRole 變更成員角色或權限
// OWNER 角色不能經由此操作設定或取消，轉讓群組請走 TransferOwnership
// 被授權的管理員提拔新管理員時，授出的權限會被強制削減
func (s *GroupService) UpdateMemberRole(ctx context.Context, actorID string, conversationID primitive.ObjectID, targetID string, params UpdateRoleParams) (*models.Member, error) {
	if params.Role == nil && params.Permissions == nil && params.CustomTitle == nil {
		return nil, invalid("no_fields", "沒有任何要更新的欄位")
	}
	if params.Role != nil && *params.Role == models.RoleOwner {
		return nil, invalid("owner_role_immutable", "不能透過此操作設定群主，請使用轉讓群組")
	}
	if params.Role != nil && *params.Role != models.RoleAdmin && *params.Role != models.RoleMember {
		return nil, invalid("invalid_role", "角色必須為 admin 或 member")
	}

	var updated models.Member
	var promoted bool
	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		actor, err := s.requireGroupMember(conv, actorID)
		if err != nil {
			return err
		}
		target := conv.MemberOf(targetID)
		if target == nil {
			return notFound("member_not_found", "目標用戶不在此群組中")
		}
		if denial := models.Authorize(*actor, target, models.ActionChangeMemberRole); denial != nil {
			return denialError(denial)
		}

		promoted = false
		delegated := actor.Role == models.RoleAdmin

		if params.Role != nil && *params.Role != target.Role {
			target.Role = *params.Role
			if *params.Role == models.RoleAdmin {
				promoted = true
				perms := defaultAdminPermissions()
				if params.Permissions != nil {
					perms = *params.Permissions
				}
				if delegated {
					perms = perms.CappedForDelegation()
				}
				target.Permissions = perms
			} else {
				// 降回一般成員，權限收斂到 member 允許的範圍
				target.Permissions = target.Permissions.RestrictedToMember()
			}
		} else if params.Permissions != nil {
			perms := *params.Permissions
			if target.Role == models.RoleMember {
				perms = perms.RestrictedToMember()
			} else if delegated {
				perms = perms.CappedForDelegation()
			}
			target.Permissions = perms
		}

		if params.CustomTitle != nil {
			target.CustomTitle = *params.CustomTitle
		}

		updated = *target
		return nil
	})
	if err != nil {
		return nil, err
	}

	actorName := lookupName(ctx, s.users, actorID)
	targetName := lookupName(ctx, s.users, targetID)
	var text string
	switch {
	case promoted:
		text = fmt.Sprintf("%s 將 %s 設為管理員", actorName, targetName)
	case params.Role != nil:
		text = fmt.Sprintf("%s 取消了 %s 的管理員身分", actorName, targetName)
	default:
		text = fmt.Sprintf("%s 更新了 %s 的群組權限", actorName, targetName)
	}
	s.appendSystemMessage(ctx, conv.ID.Hex(), actorID, actorName, text)

	s.events.NotifyRoom(conv.ID.Hex(), models.EventMemberRoleUpdated, map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        actorID,
		"target_id":       targetID,
		"role":            updated.Role,
	})
	s.notify(ctx, targetID, models.NotificationRoleChanged, conv.ID.Hex(), map[string]string{"actor_id": actorID, "role": string(updated.Role)})
	return &updated, nil
}

// TransferOwnership 轉讓群組
// 新群主取得完整權限；原群主降為管理員但不能再任命管理員；owner_id 指標同步更新
func (s *GroupService) TransferOwnership(ctx context.Context, actorID string, conversationID primitive.ObjectID, newOwnerID string) error {
	if actorID == newOwnerID {
		return invalid("transfer_to_self", "不能將群組轉讓給自己")
	}

	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		actor, err := s.requireGroupMember(conv, actorID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleOwner {
			return forbidden("owner_only", "只有群主可以轉讓群組")
		}
		newOwner := conv.MemberOf(newOwnerID)
		if newOwner == nil {
			return notFound("member_not_found", "新群主必須已是群組成員")
		}

		newOwner.Role = models.RoleOwner
		newOwner.Permissions = models.FullPermissions()
		actor.Role = models.RoleAdmin
		actor.Permissions = models.OwnerDowngradePermissions()
		conv.OwnerID = newOwnerID
		return nil
	})
	if err != nil {
		return err
	}

	actorName := lookupName(ctx, s.users, actorID)
	newOwnerName := lookupName(ctx, s.users, newOwnerID)
	s.appendSystemMessage(ctx, conv.ID.Hex(), actorID, actorName, fmt.Sprintf("%s 將群組轉讓給 %s", actorName, newOwnerName))

	payload := map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        actorID,
		"target_id":       newOwnerID,
	}
	s.events.NotifyRoom(conv.ID.Hex(), models.EventOwnershipTransferred, payload)
	s.events.NotifyUser(newOwnerID, models.EventOwnershipTransferred, payload)
	s.notify(ctx, newOwnerID, models.NotificationRoleChanged, conv.ID.Hex(), map[string]string{"actor_id": actorID, "role": string(models.RoleOwner)})
	return nil
}

// ListConversations 查詢用戶參與的會話
func (s *GroupService) ListConversations(ctx context.Context, userID string, filter database.ConversationListFilter) ([]models.Conversation, error) {
	filter.Participant = userID
	return s.conversations.List(ctx, filter)
}

// GetConversation 讀取單一會話，非成員不可見
func (s *GroupService) GetConversation(ctx context.Context, userID string, conversationID primitive.ObjectID) (*models.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(userID) {
		return nil, forbidden("not_a_member", "您不是此群組的成員")
	}
	return conv, nil
}

// requireGroupMember 確認會話是群組且 actor 是成員，返回可原地修改的成員指標
func (s *GroupService) requireGroupMember(conv *models.Conversation, userID string) (*models.Member, error) {
	if !conv.IsGroup() {
		return nil, invalid("not_a_group", "此會話不是群組")
	}
	member := conv.MemberOf(userID)
	if member == nil {
		return nil, forbidden("not_a_member", "您不是此群組的成員")
	}
	return member, nil
}

// appendSystemMessage 寫入系統事件訊息，失敗只記 log 不回滾狀態
func (s *GroupService) appendSystemMessage(ctx context.Context, conversationID, actorID, actorName, text string) {
	if _, err := s.chat.PersistSystemMessage(ctx, conversationID, actorID, actorName, text); err != nil {
		log.Printf("Failed to persist system message for conversation %s: %v", conversationID, err)
	}
}

// notify 寫入站內通知，失敗只記 log
func (s *GroupService) notify(ctx context.Context, userID, kind, relatedID string, metadata map[string]string) {
	if err := s.notifications.CreateOrRefresh(ctx, userID, kind, relatedID, metadata); err != nil {
		log.Printf("Failed to create notification for user %s (kind=%s): %v", userID, kind, err)
	}
}

// defaultAdminPermissions 新任管理員未指定權限時的預設集合
func defaultAdminPermissions() models.Permissions {
	p := models.FullPermissions()
	p.AddNewAdmins = false
	return p
}
