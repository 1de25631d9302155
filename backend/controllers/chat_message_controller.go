package controllers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/config"
	"github.com/vumotions/chatapp-server-sub000/backend/models"
	"github.com/vumotions/chatapp-server-sub000/backend/services"

	"github.com/gorilla/mux"
)

// GetMessagesByRoom 取得會話的歷史訊息，僅限成員讀取
func GetMessagesByRoom(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	roomID, ok := parseObjectID(w, mux.Vars(r)["roomId"], "會話")
	if !ok {
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.LoadConfig()
	chatService := services.NewChatService(store, []byte(cfg.EncryptionSecret))

	isMember, err := chatService.IsUserInRoom(ctx, roomID, userID)
	if err != nil {
		log.Printf("Failed to check room membership for %s: %v", userID, err)
		http.Error(w, `{"error": "伺服器內部錯誤"}`, http.StatusInternalServerError)
		return
	}
	if !isMember {
		http.Error(w, `{"error": "您不是此會話的成員"}`, http.StatusForbidden)
		return
	}

	var limit int64 = 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	messages, err := chatService.GetRoomMessages(ctx, roomID.Hex(), limit)
	if err != nil {
		log.Printf("Failed to load messages for room %s: %v", roomID.Hex(), err)
		http.Error(w, `{"error": "讀取訊息失敗"}`, http.StatusInternalServerError)
		return
	}

	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

// MarkMessagesRead 標記會話內他人發送的訊息為已讀
func MarkMessagesRead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	roomID, ok := parseObjectID(w, mux.Vars(r)["roomId"], "會話")
	if !ok {
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chatService := services.NewChatService(store, nil)

	isMember, err := chatService.IsUserInRoom(ctx, roomID, userID)
	if err != nil {
		log.Printf("Failed to check room membership for %s: %v", userID, err)
		http.Error(w, `{"error": "伺服器內部錯誤"}`, http.StatusInternalServerError)
		return
	}
	if !isMember {
		http.Error(w, `{"error": "您不是此會話的成員"}`, http.StatusForbidden)
		return
	}

	if err := chatService.MarkMessagesAsRead(ctx, roomID, userID); err != nil {
		log.Printf("Failed to mark messages as read in room %s: %v", roomID.Hex(), err)
		http.Error(w, `{"error": "標記已讀失敗"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "訊息已標記為已讀",
	})
}
