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

// JoinRequestService 入群申請的狀態機
// none → pending → approved / rejected；終結後同一用戶可以再開新的 pending
type JoinRequestService struct {
	conversations database.ConversationStore
	users         UserDirectory
	chat          Messenger
	notifications Notifier
	events        Events
	now           func() time.Time
}

// NewJoinRequestService 以 Mongo 存取層組裝 JoinRequestService
func NewJoinRequestService(store database.Store, events Events) *JoinRequestService {
	if events == nil {
		events = NoopEvents{}
	}
	return &JoinRequestService{
		conversations: store.Conversations(),
		users:         &mongoUserDirectory{coll: store.Collection("users")},
		chat:          NewChatService(store, nil),
		notifications: NewNotificationService(store),
		events:        events,
		now:           time.Now,
	}
}

// 申請的結果狀態
const (
	JoinOutcomeJoined         = "joined"          // 免審核，直接入群
	JoinOutcomePending        = "pending"         // 已送出申請，等待審核
	JoinOutcomeAlreadyMember  = "already_member"  // 已是成員，冪等成功
	JoinOutcomeAlreadyPending = "already_pending" // 已有待審申請，冪等成功
)

// JoinResult 申請入群的結果
type JoinResult struct {
	Outcome      string               `json:"outcome"`
	Conversation *models.Conversation `json:"-"`
}

// RequestJoin 申請加入群組
// 私密群組或開啟審核的群組建立 pending 申請並通知管理層；
// 公開且免審核的群組直接入群。重複呼叫是冪等的
func (s *JoinRequestService) RequestJoin(ctx context.Context, conversationID primitive.ObjectID, userID, invitedBy string) (*JoinResult, error) {
	result := &JoinResult{}
	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		if !conv.IsGroup() {
			return invalid("not_a_group", "此會話不是群組")
		}
		if conv.IsParticipant(userID) {
			result.Outcome = JoinOutcomeAlreadyMember
			result.Conversation = conv
			return errSkipUpdate
		}
		if conv.PendingRequestFor(userID) != nil {
			result.Outcome = JoinOutcomeAlreadyPending
			result.Conversation = conv
			return errSkipUpdate
		}

		requireApproval := conv.GroupType == models.GroupTypePrivate || conv.RequireApproval
		now := s.now()
		if requireApproval {
			// 滿員的群組仍可排隊，審核通過時才檢查容量
			conv.PendingRequests = append(conv.PendingRequests, models.JoinRequest{
				UserID:      userID,
				Status:      models.JoinRequestPending,
				RequestedAt: now,
				InvitedBy:   invitedBy,
			})
			result.Outcome = JoinOutcomePending
			return nil
		}

		if len(conv.Participants)+1 > models.MaxGroupMembers {
			return conflict("capacity_exceeded", fmt.Sprintf("群組成員數不能超過 %d 人", models.MaxGroupMembers))
		}
		conv.AddMember(models.Member{
			UserID:      userID,
			Role:        models.RoleMember,
			Permissions: models.DefaultMemberPermissions(),
			JoinedAt:    now,
			InvitedBy:   invitedBy,
		})
		result.Outcome = JoinOutcomeJoined
		return nil
	})
	if err != nil {
		if err == errSkipUpdate {
			return result, nil
		}
		return nil, err
	}
	result.Conversation = conv

	userName := lookupName(ctx, s.users, userID)
	switch result.Outcome {
	case JoinOutcomePending:
		// 通知所有群主與管理員有新申請
		payload := map[string]interface{}{
			"conversation_id": conv.ID.Hex(),
			"actor_id":        userID,
		}
		for _, adminID := range conv.Admins() {
			s.events.NotifyUser(adminID, models.EventNewJoinRequest, payload)
			s.notify(ctx, adminID, models.NotificationJoinRequest, conv.ID.Hex(), map[string]string{"user_id": userID})
		}
	case JoinOutcomeJoined:
		s.appendSystemMessage(ctx, conv.ID.Hex(), userID, userName, fmt.Sprintf("%s 加入了群組", userName))
		s.events.NotifyRoom(conv.ID.Hex(), models.EventMemberJoined, map[string]interface{}{
			"conversation_id": conv.ID.Hex(),
			"actor_id":        userID,
		})
	}
	return result, nil
}

// JoinByInviteLink 透過邀請連結加入，解析連結後走一般申請流程
func (s *JoinRequestService) JoinByInviteLink(ctx context.Context, token, userID string) (*JoinResult, error) {
	if token == "" {
		return nil, invalid("invite_link_required", "邀請連結為必填項")
	}
	conv, err := s.conversations.FindByInviteLink(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.RequestJoin(ctx, conv.ID, userID, "")
}

// Approve 通過入群申請
// 將該用戶的所有 pending 申請標記為 approved；若尚未入群則加入
// 對已是成員的用戶仍會標記申請，保持冪等
func (s *JoinRequestService) Approve(ctx context.Context, conversationID primitive.ObjectID, approverID, targetID string) error {
	var alreadyMember bool
	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		if _, err := s.requireApprover(conv, approverID); err != nil {
			return err
		}

		now := s.now()
		marked := 0
		for i := range conv.PendingRequests {
			if conv.PendingRequests[i].UserID == targetID && conv.PendingRequests[i].Status == models.JoinRequestPending {
				conv.PendingRequests[i].Status = models.JoinRequestApproved
				conv.PendingRequests[i].ProcessedAt = &now
				conv.PendingRequests[i].ProcessedBy = approverID
				marked++
			}
		}
		if marked == 0 {
			return notFound("request_not_found", "找不到該用戶的待審申請")
		}

		alreadyMember = conv.IsParticipant(targetID)
		if !alreadyMember {
			if len(conv.Participants)+1 > models.MaxGroupMembers {
				return conflict("capacity_exceeded", fmt.Sprintf("群組成員數不能超過 %d 人", models.MaxGroupMembers))
			}
			conv.AddMember(models.Member{
				UserID:      targetID,
				Role:        models.RoleMember,
				Permissions: models.DefaultMemberPermissions(),
				JoinedAt:    now,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	approverName := lookupName(ctx, s.users, approverID)
	targetName := lookupName(ctx, s.users, targetID)
	if !alreadyMember {
		s.appendSystemMessage(ctx, conv.ID.Hex(), approverID, approverName, fmt.Sprintf("%s 通過了 %s 的入群申請", approverName, targetName))
	}

	payload := map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        approverID,
		"target_id":       targetID,
	}
	s.events.NotifyRoom(conv.ID.Hex(), models.EventJoinRequestApproved, payload)
	s.events.NotifyUser(targetID, models.EventJoinRequestApproved, payload)
	s.notify(ctx, targetID, models.NotificationJoinRequestApproved, conv.ID.Hex(), map[string]string{"actor_id": approverID})
	return nil
}

// Reject 駁回入群申請
// 移除該用戶所有 pending 申請，另外寫入一筆以當下時間戳記的 rejected 記錄
func (s *JoinRequestService) Reject(ctx context.Context, conversationID primitive.ObjectID, rejecterID, targetID string) error {
	conv, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		if _, err := s.requireApprover(conv, rejecterID); err != nil {
			return err
		}

		kept := conv.PendingRequests[:0]
		removed := 0
		for _, req := range conv.PendingRequests {
			if req.UserID == targetID && req.Status == models.JoinRequestPending {
				removed++
				continue
			}
			kept = append(kept, req)
		}
		if removed == 0 {
			return notFound("request_not_found", "找不到該用戶的待審申請")
		}

		now := s.now()
		conv.PendingRequests = append(kept, models.JoinRequest{
			UserID:      targetID,
			Status:      models.JoinRequestRejected,
			RequestedAt: now,
			ProcessedAt: &now,
			ProcessedBy: rejecterID,
		})
		return nil
	})
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"conversation_id": conv.ID.Hex(),
		"actor_id":        rejecterID,
		"target_id":       targetID,
	}
	s.events.NotifyUser(targetID, models.EventJoinRequestRejected, payload)
	s.notify(ctx, targetID, models.NotificationJoinRequestRejected, conv.ID.Hex(), map[string]string{"actor_id": rejecterID})
	return nil
}

// ClearRequests 批次刪除指定狀態的申請，返回刪除筆數
func (s *JoinRequestService) ClearRequests(ctx context.Context, conversationID primitive.ObjectID, actorID, status string) (int, error) {
	if status != models.JoinRequestPending && status != models.JoinRequestApproved && status != models.JoinRequestRejected {
		return 0, invalid("invalid_status", "狀態必須為 pending、approved 或 rejected")
	}

	removed := 0
	_, err := s.conversations.Update(ctx, conversationID, func(conv *models.Conversation) error {
		if _, err := s.requireApprover(conv, actorID); err != nil {
			return err
		}

		removed = 0
		kept := conv.PendingRequests[:0]
		for _, req := range conv.PendingRequests {
			if req.Status == status {
				removed++
				continue
			}
			kept = append(kept, req)
		}
		if removed == 0 {
			return errSkipUpdate
		}
		conv.PendingRequests = kept
		return nil
	})
	if err != nil && err != errSkipUpdate {
		return 0, err
	}
	return removed, nil
}

// Status 查詢用戶最近一筆申請的狀態，從未申請過時返回 none
func (s *JoinRequestService) Status(ctx context.Context, conversationID primitive.ObjectID, userID string) (string, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return "", err
	}

	var latest *models.JoinRequest
	for i := range conv.PendingRequests {
		req := &conv.PendingRequests[i]
		if req.UserID != userID {
			continue
		}
		if req.Status == models.JoinRequestPending {
			return models.JoinRequestPending, nil
		}
		if latest == nil || req.RequestedAt.After(latest.RequestedAt) {
			latest = req
		}
	}
	if latest == nil {
		return models.JoinRequestNone, nil
	}
	return latest.Status, nil
}

// ListPending 列出待審申請，需要審核權限
func (s *JoinRequestService) ListPending(ctx context.Context, conversationID primitive.ObjectID, actorID string) ([]models.JoinRequest, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireApprover(conv, actorID); err != nil {
		return nil, err
	}

	var pending []models.JoinRequest
	for _, req := range conv.PendingRequests {
		if req.Status == models.JoinRequestPending {
			pending = append(pending, req)
		}
	}
	return pending, nil
}

// requireApprover 確認 actor 有審核入群申請的資格
func (s *JoinRequestService) requireApprover(conv *models.Conversation, userID string) (*models.Member, error) {
	if !conv.IsGroup() {
		return nil, invalid("not_a_group", "此會話不是群組")
	}
	member := conv.MemberOf(userID)
	if member == nil {
		return nil, forbidden("not_a_member", "您不是此群組的成員")
	}
	if denial := models.Authorize(*member, nil, models.ActionApproveJoinRequests); denial != nil {
		return nil, denialError(denial)
	}
	return member, nil
}

func (s *JoinRequestService) appendSystemMessage(ctx context.Context, conversationID, actorID, actorName, text string) {
	if _, err := s.chat.PersistSystemMessage(ctx, conversationID, actorID, actorName, text); err != nil {
		log.Printf("Failed to persist system message for conversation %s: %v", conversationID, err)
	}
}

func (s *JoinRequestService) notify(ctx context.Context, userID, kind, relatedID string, metadata map[string]string) {
	if err := s.notifications.CreateOrRefresh(ctx, userID, kind, relatedID, metadata); err != nil {
		log.Printf("Failed to create notification for user %s (kind=%s): %v", userID, kind, err)
	}
}
