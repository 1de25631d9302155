package controllers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/services"

	"github.com/gorilla/mux"
)

// MuteMemberRequest 定義禁言請求的結構
// DurationMinutes 為 0 或缺省表示無限期禁言
type MuteMemberRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

// SetSendRestrictionRequest 定義全群發言限制請求的結構
type SetSendRestrictionRequest struct {
	Enabled         bool `json:"enabled"`
	DurationMinutes int  `json:"duration_minutes"` // 0 表示無限期
}

// MuteGroupMember 禁言群組成員
func MuteGroupMember(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	groupID, ok := parseObjectID(w, vars["groupId"], "群組")
	if !ok {
		return
	}
	targetID := vars["userId"]
	if targetID == "" {
		http.Error(w, `{"error": "成員 ID 為必填項"}`, http.StatusBadRequest)
		return
	}

	var req MuteMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "無效的請求格式"}`, http.StatusBadRequest)
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	moderation := services.NewModerationService(store, getEvents(r))
	if err := moderation.MuteMember(ctx, userID, groupID, targetID, req.DurationMinutes); err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Printf("Member %s muted in group %s by %s (duration: %d minutes)", targetID, groupID.Hex(), userID, req.DurationMinutes)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "成員已被禁言",
	})
}

// UnmuteGroupMember 解除成員禁言，對未被禁言的成員呼叫是冪等的
func UnmuteGroupMember(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	groupID, ok := parseObjectID(w, vars["groupId"], "群組")
	if !ok {
		return
	}
	targetID := vars["userId"]
	if targetID == "" {
		http.Error(w, `{"error": "成員 ID 為必填項"}`, http.StatusBadRequest)
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	moderation := services.NewModerationService(store, getEvents(r))
	if err := moderation.UnmuteMember(ctx, userID, groupID, targetID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "已解除禁言",
	})
}

// SetSendRestriction 開關「僅管理員可發言」模式，僅限群主
func SetSendRestriction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := parseObjectID(w, mux.Vars(r)["groupId"], "群組")
	if !ok {
		return
	}

	var req SetSendRestrictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "無效的請求格式"}`, http.StatusBadRequest)
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	moderation := services.NewModerationService(store, getEvents(r))
	if err := moderation.SetSendRestriction(ctx, userID, groupID, req.Enabled, req.DurationMinutes); err != nil {
		writeServiceError(w, r, err)
		return
	}

	message := "已關閉發言限制"
	if req.Enabled {
		message = "已開啟僅管理員可發言"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": message,
	})
}
