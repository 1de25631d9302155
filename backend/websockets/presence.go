package websockets

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceKeyPrefix = "presence:"

// PresenceDirectory 記錄用戶當前的 socket 連線
// 單實例時只用本地 map；設定 Redis 之後會同步鏡像一份，
// 讓多實例部署也查得到其他實例上的連線
type PresenceDirectory struct {
	mu          sync.RWMutex
	connections map[string]string // userID -> socketID

	redis *redis.Client // 選填
}

// NewPresenceDirectory 建立在線目錄，redisClient 可以為 nil
func NewPresenceDirectory(redisClient *redis.Client) *PresenceDirectory {
	return &PresenceDirectory{
		connections: make(map[string]string),
		redis:       redisClient,
	}
}

// Connected 登記用戶的連線，同一用戶重複連線時以最新的為準
func (d *PresenceDirectory) Connected(userID, socketID string) {
	d.mu.Lock()
	d.connections[userID] = socketID
	d.mu.Unlock()

	if d.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := d.redis.Set(ctx, presenceKeyPrefix+userID, socketID, 0).Err(); err != nil {
			log.Printf("Failed to mirror presence to Redis for user %s: %v", userID, err)
		}
	}
}

// Disconnected 移除用戶的連線記錄
// 只在當前記錄的 socket 與斷線的相同時移除，避免重連後被舊連線的斷線事件清掉
func (d *PresenceDirectory) Disconnected(userID, socketID string) {
	d.mu.Lock()
	removed := false
	if current, ok := d.connections[userID]; ok && current == socketID {
		delete(d.connections, userID)
		removed = true
	}
	d.mu.Unlock()

	if removed && d.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := d.redis.Del(ctx, presenceKeyPrefix+userID).Err(); err != nil {
			log.Printf("Failed to remove presence from Redis for user %s: %v", userID, err)
		}
	}
}

// Lookup 查詢用戶當前的 socket 連線，本地沒有時退回查 Redis
func (d *PresenceDirectory) Lookup(userID string) (string, bool) {
	d.mu.RLock()
	socketID, ok := d.connections[userID]
	d.mu.RUnlock()
	if ok {
		return socketID, true
	}

	if d.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		socketID, err := d.redis.Get(ctx, presenceKeyPrefix+userID).Result()
		if err == nil && socketID != "" {
			return socketID, true
		}
	}
	return "", false
}

// OnlineCount 本實例當前的在線人數
func (d *PresenceDirectory) OnlineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.connections)
}
