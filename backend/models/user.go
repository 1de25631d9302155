package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User 表示用戶模型
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Username  string             `bson:"username" json:"username"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"` // json:"-" 表示在序列化時不包含此欄位
	Language  string             `bson:"language" json:"language"`
	AvatarURL *string            `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	IsOnline  bool               `bson:"is_online" json:"is_online"`
	LastSeen  *time.Time         `bson:"last_seen,omitempty" json:"last_seen,omitempty"`
	IsActive  bool               `bson:"is_active" json:"is_active"` // 帳號是否活躍
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// UserSummary 組合系統訊息文字時需要的最小用戶資訊
type UserSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
