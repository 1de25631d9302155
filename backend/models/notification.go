package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 通知種類
const (
	NotificationJoinRequest         = "join_request"
	NotificationJoinRequestApproved = "join_request_approved"
	NotificationJoinRequestRejected = "join_request_rejected"
	NotificationRoleChanged         = "role_changed"
	NotificationGroupDisbanded      = "group_disbanded"
)

// Notification 站內通知
// 同一組 (user_id, kind, related_id) 永遠只有一筆，重複觸發時更新時間並重置已讀
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Kind      string             `bson:"kind" json:"kind"`
	RelatedID string             `bson:"related_id" json:"related_id"`
	Metadata  map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	IsRead    bool               `bson:"is_read" json:"is_read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
