package services

import (
	"context"

	"github.com/vumotions/chatapp-server-sub000/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Events 即時事件的出口，由 websockets.Hub 實作
// 推播是盡力而為：沒有連線時靜默略過，失敗不影響已提交的狀態變更
type Events interface {
	NotifyRoom(roomID, event string, payload map[string]interface{})
	NotifyUser(userID, event string, payload map[string]interface{})
}

// NoopEvents 沒有 socket 伺服器時的空實作
type NoopEvents struct{}

func (NoopEvents) NotifyRoom(string, string, map[string]interface{}) {}
func (NoopEvents) NotifyUser(string, string, map[string]interface{}) {}

// Messenger 系統訊息時間軸的出口，由 ChatService 實作
type Messenger interface {
	PersistSystemMessage(ctx context.Context, conversationID, actorID, actorName, text string) (string, error)
	DeleteRoomMessages(ctx context.Context, roomID string) error
}

// Notifier 站內通知的出口，由 NotificationService 實作
type Notifier interface {
	CreateOrRefresh(ctx context.Context, userID, kind, relatedID string, metadata map[string]string) error
}

// UserDirectory 查詢用戶展示資訊，僅用於組合系統訊息文字
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (models.UserSummary, error)
}

// mongoUserDirectory 從 users 集合讀取
type mongoUserDirectory struct {
	coll *mongo.Collection
}

func (d *mongoUserDirectory) Lookup(ctx context.Context, userID string) (models.UserSummary, error) {
	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return models.UserSummary{}, err
	}

	var user models.User
	if err := d.coll.FindOne(ctx, bson.M{"_id": objectID}).Decode(&user); err != nil {
		return models.UserSummary{}, err
	}

	summary := models.UserSummary{ID: userID, Username: user.Username}
	if user.AvatarURL != nil {
		summary.AvatarURL = *user.AvatarURL
	}
	return summary, nil
}

// lookupName 解析用戶名稱，查不到時退回用戶 ID，保證系統訊息一定組得出來
func lookupName(ctx context.Context, users UserDirectory, userID string) string {
	summary, err := users.Lookup(ctx, userID)
	if err != nil || summary.Username == "" {
		return userID
	}
	return summary.Username
}
