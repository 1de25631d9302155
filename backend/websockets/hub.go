package websockets

import (
	socketio "github.com/googollee/go-socket.io"
)

// userRoomPrefix 每個已驗證的連線都會加入自己的個人房間，供點對點推播
const userRoomPrefix = "user:"

// Hub 是業務層對 socket 的唯一出口，實作 services.Events
// 推播是盡力而為：目標沒有連線時靜默略過
type Hub struct {
	server   *socketio.Server
	presence *PresenceDirectory
}

// NewHub 建立 Hub
func NewHub(server *socketio.Server, presence *PresenceDirectory) *Hub {
	return &Hub{server: server, presence: presence}
}

// NotifyRoom 推播事件給房間內的所有連線
func (h *Hub) NotifyRoom(roomID, event string, payload map[string]interface{}) {
	h.server.BroadcastToRoom("/", roomID, event, payload)
}

// NotifyUser 推播事件給指定用戶的個人房間
// 用戶離線時個人房間是空的，廣播自然落空，不視為錯誤
func (h *Hub) NotifyUser(userID, event string, payload map[string]interface{}) {
	h.server.BroadcastToRoom("/", userRoomPrefix+userID, event, payload)
}

// Lookup 查詢用戶當前的連線
func (h *Hub) Lookup(userID string) (string, bool) {
	return h.presence.Lookup(userID)
}
