package services

import (
	"context"
	"log"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/database"
	"github.com/vumotions/chatapp-server-sub000/backend/models"
	"github.com/vumotions/chatapp-server-sub000/backend/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChatService 訊息時間軸
// 用戶訊息加密儲存；系統事件訊息以明文儲存，type 為 system
type ChatService struct {
	store         database.Store
	conversations database.ConversationStore
	encryptionKey []byte
}

// NewChatService 組裝 ChatService，只處理系統訊息時可以不帶加密金鑰
func NewChatService(store database.Store, encryptionKey []byte) *ChatService {
	return &ChatService{
		store:         store,
		conversations: store.Conversations(),
		encryptionKey: encryptionKey,
	}
}

// SaveMessage 加密並儲存一則用戶訊息，同時更新會話的最後訊息指標
func (s *ChatService) SaveMessage(ctx context.Context, senderID, senderName, roomID, content, messageType string) (models.Message, error) {
	encryptedContent, err := utils.Encrypt(content, s.encryptionKey)
	if err != nil {
		return models.Message{}, err
	}

	message := models.Message{
		ID:         primitive.NewObjectID(),
		SenderID:   senderID,
		SenderName: senderName,
		Room:       roomID,
		Content:    encryptedContent,
		Timestamp:  time.Now(),
		Type:       messageType,
	}

	collection := s.store.Collection("messages")
	if _, err := collection.InsertOne(ctx, message); err != nil {
		return models.Message{}, err
	}

	// 最後訊息顯示原始內容
	s.updateLastMessage(ctx, roomID, content, message.Timestamp)
	return message, nil
}

// PersistSystemMessage 寫入一則系統事件訊息並返回其 ID
// 內容是已解析好名稱的可讀文字，不加密
func (s *ChatService) PersistSystemMessage(ctx context.Context, conversationID, actorID, actorName, text string) (string, error) {
	message := models.Message{
		ID:         primitive.NewObjectID(),
		SenderID:   actorID,
		SenderName: actorName,
		Room:       conversationID,
		Content:    text,
		Timestamp:  time.Now(),
		Type:       models.MessageTypeSystem,
	}

	collection := s.store.Collection("messages")
	if _, err := collection.InsertOne(ctx, message); err != nil {
		return "", err
	}

	s.updateLastMessage(ctx, conversationID, text, message.Timestamp)
	return message.ID.Hex(), nil
}

// DeleteRoomMessages 刪除會話的所有訊息（解散群組時使用）
func (s *ChatService) DeleteRoomMessages(ctx context.Context, roomID string) error {
	collection := s.store.Collection("messages")
	_, err := collection.DeleteMany(ctx, bson.M{"room": roomID})
	return err
}

// GetRoomMessages 讀取會話訊息並解密用戶訊息，系統訊息原樣返回
func (s *ChatService) GetRoomMessages(ctx context.Context, roomID string, limit int64) ([]models.Message, error) {
	collection := s.store.Collection("messages")
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := collection.Find(ctx, bson.M{"room": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	for i := range messages {
		if messages[i].Type == models.MessageTypeSystem {
			continue
		}
		decrypted, err := utils.Decrypt(messages[i].Content, s.encryptionKey)
		if err != nil {
			// 解密失敗的訊息保留密文並記 log，不中斷整批讀取
			log.Printf("Failed to decrypt message %s: %v", messages[i].ID.Hex(), err)
			continue
		}
		messages[i].Content = decrypted
	}
	return messages, nil
}

// IsUserInRoom 檢查用戶是否為會話成員
func (s *ChatService) IsUserInRoom(ctx context.Context, roomID primitive.ObjectID, userID string) (bool, error) {
	conv, err := s.conversations.FindByID(ctx, roomID)
	if err == database.ErrConversationNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return conv.IsParticipant(userID), nil
}

// MarkMessagesAsRead 标记房间内的消息为已读
func (s *ChatService) MarkMessagesAsRead(ctx context.Context, roomID primitive.ObjectID, userID string) error {
	collection := s.store.Collection("messages")

	// 更新该房间内所有非自己发送且未读的消息
	filter := bson.M{
		"room":      roomID.Hex(),
		"sender_id": bson.M{"$ne": userID},
		"read_by":   bson.M{"$ne": userID},
	}

	update := bson.M{
		"$addToSet": bson.M{
			"read_by": userID,
		},
	}

	_, err := collection.UpdateMany(ctx, filter, update)
	return err
}

// updateLastMessage 更新會話的最後訊息指標，失敗只記 log
func (s *ChatService) updateLastMessage(ctx context.Context, roomID, lastMessage string, lastMessageTime time.Time) {
	roomObjectID, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		log.Printf("Invalid Room ObjectID for last message update: %s, Error: %v", roomID, err)
		return
	}

	_, err = s.conversations.Update(ctx, roomObjectID, func(conv *models.Conversation) error {
		conv.LastMessage = lastMessage
		conv.LastMessageTime = lastMessageTime
		return nil
	})
	if err != nil {
		log.Printf("Failed to update room last message: %v", err)
	}
}
