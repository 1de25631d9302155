package services

import (
	"context"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/database"
	"github.com/vumotions/chatapp-server-sub000/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationService 站內通知
type NotificationService struct {
	coll *mongo.Collection
}

// NewNotificationService 以 Mongo 存取層組裝 NotificationService
func NewNotificationService(store database.Store) *NotificationService {
	return &NotificationService{coll: store.Collection("notifications")}
}

// CreateOrRefresh 建立或刷新通知
// 以 (user_id, kind, related_id) 為唯一鍵 upsert：重複觸發時更新時間並重置為未讀，
// 不會堆出重複通知
func (s *NotificationService) CreateOrRefresh(ctx context.Context, userID, kind, relatedID string, metadata map[string]string) error {
	now := time.Now()
	filter := bson.M{
		"user_id":    userID,
		"kind":       kind,
		"related_id": relatedID,
	}
	update := bson.M{
		"$set": bson.M{
			"metadata":   metadata,
			"is_read":    false,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}

	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// ListForUser 讀取用戶的通知，最新的在前
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var notifications []models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead 將通知標記為已讀
func (s *NotificationService) MarkRead(ctx context.Context, userID, kind, relatedID string) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{
		"user_id":    userID,
		"kind":       kind,
		"related_id": relatedID,
	}, bson.M{
		"$set": bson.M{"is_read": true, "updated_at": time.Now()},
	})
	return err
}
