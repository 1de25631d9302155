package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/models"
	"github.com/vumotions/chatapp-server-sub000/backend/services"
)

// MarkNotificationReadRequest 定義標記通知已讀請求的結構
type MarkNotificationReadRequest struct {
	Kind      string `json:"kind"`
	RelatedID string `json:"related_id"`
}

// GetNotifications 取得當前用戶的通知列表，最新的在前
func GetNotifications(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var limit int64 = 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	notifications, err := services.NewNotificationService(store).ListForUser(ctx, userID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if notifications == nil {
		notifications = []models.Notification{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// MarkNotificationRead 標記單一通知為已讀
func MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req MarkNotificationReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "無效的請求格式"}`, http.StatusBadRequest)
		return
	}
	if req.Kind == "" || req.RelatedID == "" {
		http.Error(w, `{"error": "通知類型和關聯 ID 為必填項"}`, http.StatusBadRequest)
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := services.NewNotificationService(store).MarkRead(ctx, userID, req.Kind, req.RelatedID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "通知已標記為已讀",
	})
}
