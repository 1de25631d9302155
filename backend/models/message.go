package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 訊息類型
const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system" // 系統事件訊息（入群、改名、轉讓等），內容不加密
)

// Message 代表一条聊天讯息
type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID   string             `bson:"sender_id" json:"sender_id"`
	SenderName string             `bson:"sender_name" json:"sender_name"` // 发送者用户名
	Room       string             `bson:"room" json:"room"`
	Content    string             `bson:"content" json:"content"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
	Type       string             `bson:"type" json:"type"`
	ReadBy     []string           `bson:"read_by,omitempty" json:"read_by,omitempty"` // 已讀用戶
}
