package database

import (
	"context"
	"errors"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrConversationNotFound 會話不存在
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrVersionConflict 樂觀鎖在重試上限內仍然衝突
	ErrVersionConflict = errors.New("conversation version conflict")
)

// 版本衝突時的重試次數上限
const updateRetries = 3

// ConversationListFilter 查詢用戶會話列表的條件
type ConversationListFilter struct {
	Participant     string // 必填，查詢此用戶參與的會話
	Type            string // 可選，private 或 group
	IncludeArchived bool   // 是否包含該用戶已封存的會話
	NameContains    string // 可選，名稱模糊比對
}

// ConversationStore 會話的存取層
// 所有寫入以整份文件為單位做條件更新，同一會話的併發寫入由版本號序列化
type ConversationStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	FindByInviteLink(ctx context.Context, token string) (*models.Conversation, error)
	Insert(ctx context.Context, conv *models.Conversation) error
	// Update 讀取會話、套用 mutate、以版本條件寫回，衝突時整輪重試
	// 成功時返回寫回後的文件，呼叫端不需要再查一次
	Update(ctx context.Context, id primitive.ObjectID, mutate func(*models.Conversation) error) (*models.Conversation, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, filter ConversationListFilter) ([]models.Conversation, error)
}

type mongoConversationStore struct {
	coll *mongo.Collection
}

func (s *mongoConversationStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *mongoConversationStore) FindByInviteLink(ctx context.Context, token string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.coll.FindOne(ctx, bson.M{"invite_link": token}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *mongoConversationStore) Insert(ctx context.Context, conv *models.Conversation) error {
	if conv.ID.IsZero() {
		conv.ID = primitive.NewObjectID()
	}
	conv.Version = 1
	_, err := s.coll.InsertOne(ctx, conv)
	return err
}

func (s *mongoConversationStore) Update(ctx context.Context, id primitive.ObjectID, mutate func(*models.Conversation) error) (*models.Conversation, error) {
	for attempt := 0; attempt < updateRetries; attempt++ {
		conv, err := s.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := mutate(conv); err != nil {
			return nil, err
		}

		currentVersion := conv.Version
		conv.Version++
		conv.UpdatedAt = time.Now()

		result, err := s.coll.ReplaceOne(ctx, bson.M{"_id": id, "version": currentVersion}, conv)
		if err != nil {
			return nil, err
		}
		if result.ModifiedCount == 1 {
			return conv, nil
		}
		// 版本已被其他請求推進，重讀再試
	}
	return nil, ErrVersionConflict
}

func (s *mongoConversationStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (s *mongoConversationStore) List(ctx context.Context, filter ConversationListFilter) ([]models.Conversation, error) {
	query := bson.M{"participants": filter.Participant}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if !filter.IncludeArchived {
		query["archived_for"] = bson.M{"$ne": filter.Participant}
	}
	if filter.NameContains != "" {
		query["name"] = bson.M{"$regex": primitive.Regex{Pattern: filter.NameContains, Options: "i"}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "last_message_time", Value: -1}})
	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var conversations []models.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}
