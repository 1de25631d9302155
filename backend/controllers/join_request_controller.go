package controllers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/models"
	"github.com/vumotions/chatapp-server-sub000/backend/services"

	"github.com/gorilla/mux"
)

// ClearJoinRequestsRequest 定義清空申請記錄請求的結構
type ClearJoinRequestsRequest struct {
	Status string `json:"status"` // approved, rejected
}

// RequestJoinGroup 申請加入群組
// 免審核的公開群組會直接入群，其餘情況建立待審核申請
func RequestJoinGroup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := parseObjectID(w, mux.Vars(r)["groupId"], "群組")
	if !ok {
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	joinService := services.NewJoinRequestService(store, getEvents(r))
	result, err := joinService.RequestJoin(ctx, groupID, userID, "")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Printf("Join request from %s for group %s: %s", userID, groupID.Hex(), result.Outcome)

	message := "申請已送出，請等待管理員審核"
	switch result.Outcome {
	case services.JoinOutcomeJoined:
		message = "已加入群組"
	case services.JoinOutcomeAlreadyMember:
		message = "您已經是群組成員"
	case services.JoinOutcomeAlreadyPending:
		message = "您已有待審核的申請"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": message,
		"outcome": result.Outcome,
	})
}

// ApproveJoinRequest 批准入群申請
func ApproveJoinRequest(w http.ResponseWriter, r *http.Request) {
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
		http.Error(w, `{"error": "申請人 ID 為必填項"}`, http.StatusBadRequest)
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	joinService := services.NewJoinRequestService(store, getEvents(r))
	if err := joinService.Approve(ctx, groupID, userID, targetID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Printf("Join request approved: group=%s target=%s by=%s", groupID.Hex(), targetID, userID)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "申請已批准",
	})
}

// RejectJoinRequest 拒絕入群申請
func RejectJoinRequest(w http.ResponseWriter, r *http.Request) {
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
		http.Error(w, `{"error": "申請人 ID 為必填項"}`, http.StatusBadRequest)
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	joinService := services.NewJoinRequestService(store, getEvents(r))
	if err := joinService.Reject(ctx, groupID, userID, targetID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Printf("Join request rejected: group=%s target=%s by=%s", groupID.Hex(), targetID, userID)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "申請已拒絕",
	})
}

// ClearJoinRequests 清空指定狀態的歷史申請記錄
func ClearJoinRequests(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := parseObjectID(w, mux.Vars(r)["groupId"], "群組")
	if !ok {
		return
	}

	var req ClearJoinRequestsRequest
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

	joinService := services.NewJoinRequestService(store, getEvents(r))
	cleared, err := joinService.ClearRequests(ctx, groupID, userID, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "申請記錄已清空",
		"cleared": cleared,
	})
}

// GetMyJoinRequestStatus 查詢自己在某群組的申請狀態
func GetMyJoinRequestStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := parseObjectID(w, mux.Vars(r)["groupId"], "群組")
	if !ok {
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	joinService := services.NewJoinRequestService(store, getEvents(r))
	status, err := joinService.Status(ctx, groupID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": status,
	})
}

// GetPendingJoinRequests 取得群組的待審核申請列表
func GetPendingJoinRequests(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := parseObjectID(w, mux.Vars(r)["groupId"], "群組")
	if !ok {
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	joinService := services.NewJoinRequestService(store, getEvents(r))
	pending, err := joinService.ListPending(ctx, groupID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if pending == nil {
		pending = []models.JoinRequest{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": pending,
		"count":    len(pending),
	})
}
