package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/database"
	"github.com/vumotions/chatapp-server-sub000/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ModerationService 管理兩種限時狀態：成員禁言與群組發言限制
// 兩者都採惰性清除：到期的旗標在下一次讀到時才順手清掉，沒有背景排程
type ModerationService struct {
	conversations database.ConversationStore
	users         UserDirectory
	chat          Messenger
	events        Events
	now           func() time.Time
}

// NewModerationService 以 Mongo 存取層組裝 ModerationService
func NewModerationService(store database.Store, events Events) *ModerationService {
	if events == nil {
		events = NoopEvents{}
	}
	return &ModerationService{
		conversations: store.Conversations(),
		users:         &mongoUserDirectory{coll: store.Collection("users")},
		chat:          NewChatService(store, nil),
		events:        events,
		now:           time.Now,
	}
}

// MuteMember 禁言成員，durationMinutes <= 0 代表無限期
// 權限規則與移除成員相同：管理員需要 ban_users，且不能對管理員或群主
func (s *ModerationService) MuteMember(ctx context.Context, actorID string, conversationID primitive.ObjectID, targetID string, durationMinutes int) error {
	var mutedUntil *time.Time
	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		actor, err := s.requireGroupMember(conv, actorID)
		if err != nil {
			return err
		}
		target := conv.MemberOf(targetID)
		if target == nil {
			return notFound("member_not_found", "目標用戶不在此群組中")
		}
		if denial := models.Authorize(*actor, target, models.ActionMuteMember); denial != nil {
			return denialError(denial)
		}

		target.IsMuted = true
		if durationMinutes > 0 {
			until := s.now().Add(time.Duration(durationMinutes) * time.Minute)
			target.MutedUntil = &until
			mutedUntil = &until
		} else {
			target.MutedUntil = nil
		}
		return nil
	})
	if err != nil {
		return err
	}

	actorName := lookupName(ctx, s.users, actorID)
	targetName := lookupName(ctx, s.users, targetID)
	text := fmt.Sprintf("%s 禁言了 %s", actorName, targetName)
	if durationMinutes > 0 {
		text = fmt.Sprintf("%s 禁言了 %s，時長 %d 分鐘", actorName, targetName, durationMinutes)
	}
	s.appendSystemMessage(ctx, conv.ID.Hex(), actorID, actorName, text)

	payload := map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        actorID,
		"target_id":       targetID,
	}
	if mutedUntil != nil {
		payload["muted_until"] = mutedUntil.Format(time.RFC3339)
	}
	s.events.NotifyRoom(conv.ID.Hex(), models.EventMemberMuted, payload)
	s.events.NotifyUser(targetID, models.EventMemberMuted, payload)
	return nil
}

// UnmuteMember 解除禁言，目標本來就沒被禁言時冪等成功
func (s *ModerationService) UnmuteMember(ctx context.Context, actorID string, conversationID primitive.ObjectID, targetID string) error {
	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		actor, err := s.requireGroupMember(conv, actorID)
		if err != nil {
			return err
		}
		target := conv.MemberOf(targetID)
		if target == nil {
			return notFound("member_not_found", "目標用戶不在此群組中")
		}
		if denial := models.Authorize(*actor, target, models.ActionMuteMember); denial != nil {
			return denialError(denial)
		}
		if !target.IsMuted {
			return errSkipUpdate
		}
		target.IsMuted = false
		target.MutedUntil = nil
		return nil
	})
	if err != nil {
		if err == errSkipUpdate {
			return nil
		}
		return err
	}

	s.events.NotifyRoom(conv.ID.Hex(), models.EventMemberUnmuted, map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        actorID,
		"target_id":       targetID,
	})
	s.events.NotifyUser(targetID, models.EventMemberUnmuted, map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        actorID,
		"target_id":       targetID,
	})
	return nil
}

// SetSendRestriction 開關「僅管理員可發言」，只有群主可以執行
// durationMinutes <= 0 代表無限期；關閉時同時清掉時限
func (s *ModerationService) SetSendRestriction(ctx context.Context, actorID string, conversationID primitive.ObjectID, enabled bool, durationMinutes int) error {
	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		actor, err := s.requireGroupMember(conv, actorID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleOwner {
			return forbidden("owner_only", "只有群主可以設定發言限制")
		}

		conv.OnlyAdminsCanSend = enabled
		conv.RestrictUntil = nil
		if enabled && durationMinutes > 0 {
			until := s.now().Add(time.Duration(durationMinutes) * time.Minute)
			conv.RestrictUntil = &until
		}
		return nil
	})
	if err != nil {
		return err
	}

	actorName := lookupName(ctx, s.users, actorID)
	text := fmt.Sprintf("%s 關閉了僅管理員可發言", actorName)
	if enabled {
		text = fmt.Sprintf("%s 開啟了僅管理員可發言", actorName)
	}
	s.appendSystemMessage(ctx, conv.ID.Hex(), actorID, actorName, text)

	s.events.NotifyRoom(conv.ID.Hex(), models.EventGroupSettingsUpdated, map[string]interface{}{
		"conversation_id":      conv.ID.Hex(),
		"actor_id":             actorID,
		"only_admins_can_send": enabled,
	})
	return nil
}

// CanSend 判斷用戶現在能否在會話中發言
// 回傳 (是否可發言, 拒絕原因)；讀到已過期的禁言或限制時會順手清除儲存的旗標
func (s *ModerationService) CanSend(ctx context.Context, conversationID primitive.ObjectID, userID string, now time.Time) (bool, string, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return false, "", err
	}
	if !conv.IsParticipant(userID) {
		return false, "您不是此會話的成員", nil
	}

	// 私聊沒有成員角色，也不套用發言限制
	if !conv.IsGroup() {
		return true, "", nil
	}

	member := conv.MemberOf(userID)
	if member == nil {
		return false, "您不是此群組的成員", nil
	}

	if member.MuteExpired(now) {
		// 禁言已到期，清掉旗標；清除失敗下次讀取會再試，不影響本次判斷
		s.clearExpiredMute(ctx, conversationID, userID, now)
	} else if member.EffectivelyMuted(now) {
		return false, "您已被禁言", nil
	}

	restricted := conv.SendRestrictionActive(now)
	if conv.RestrictionExpired(now) {
		s.clearExpiredRestriction(ctx, conversationID, now)
		restricted = false
	}
	if restricted && member.Role == models.RoleMember {
		return false, "目前僅管理員可以發言", nil
	}
	return true, "", nil
}

// clearExpiredMute 惰性清除已到期的成員禁言
func (s *ModerationService) clearExpiredMute(ctx context.Context, conversationID primitive.ObjectID, userID string, now time.Time) {
	_, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		member := conv.MemberOf(userID)
		if member == nil || !member.MuteExpired(now) {
			return errSkipUpdate
		}
		member.IsMuted = false
		member.MutedUntil = nil
		return nil
	})
	if err != nil && err != errSkipUpdate {
		log.Printf("Failed to clear expired mute for user %s in conversation %s: %v", userID, conversationID.Hex(), err)
	}
}

// clearExpiredRestriction 惰性清除已到期的發言限制
func (s *ModerationService) clearExpiredRestriction(ctx context.Context, conversationID primitive.ObjectID, now time.Time) {
	_, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		if !conv.RestrictionExpired(now) {
			return errSkipUpdate
		}
		conv.OnlyAdminsCanSend = false
		conv.RestrictUntil = nil
		return nil
	})
	if err != nil && err != errSkipUpdate {
		log.Printf("Failed to clear expired send restriction for conversation %s: %v", conversationID.Hex(), err)
	}
}

func (s *ModerationService) requireGroupMember(conv *models.Conversation, userID string) (*models.Member, error) {
	if !conv.IsGroup() {
		return nil, invalid("not_a_group", "此會話不是群組")
	}
	member := conv.MemberOf(userID)
	if member == nil {
		return nil, forbidden("not_a_member", "您不是此群組的成員")
	}
	return member, nil
}

func (s *ModerationService) appendSystemMessage(ctx context.Context, conversationID, actorID, actorName, text string) {
	if _, err := s.chat.PersistSystemMessage(ctx, conversationID, actorID, actorName, text); err != nil {
		log.Printf("Failed to persist system message for conversation %s: %v", conversationID, err)
	}
}
