package controllers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/database"
	"github.com/vumotions/chatapp-server-sub000/backend/models"
	"github.com/vumotions/chatapp-server-sub000/backend/services"

	"github.com/gorilla/mux"
)

// CreateGroupRequest 定義建立群組請求的結構
type CreateGroupRequest struct {
	Name            string   `json:"name"`
	AvatarURL       string   `json:"avatar_url"`
	GroupType       string   `json:"group_type"`       // public, private
	RequireApproval bool     `json:"require_approval"` // private 群組會被強制開啟
	ParticipantIDs  []string `json:"participant_ids"`
}

// UpdateGroupSettingsRequest 定義更新群組設定請求的結構
// 指標欄位缺省表示不更動
type UpdateGroupSettingsRequest struct {
	Name            *string `json:"name"`
	AvatarURL       *string `json:"avatar_url"`
	GroupType       *string `json:"group_type"`
	RequireApproval *bool   `json:"require_approval"`
}

// CreateGroup 建立群組
func CreateGroup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req CreateGroupRequest
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

	groupService := services.NewGroupService(store, getEvents(r))
	conv, err := groupService.CreateGroup(ctx, userID, services.CreateGroupParams{
		Name:            req.Name,
		AvatarURL:       req.AvatarURL,
		GroupType:       req.GroupType,
		RequireApproval: req.RequireApproval,
		ParticipantIDs:  req.ParticipantIDs,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Printf("Group created: %s (%s) by %s", conv.Name, conv.ID.Hex(), userID)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "群組建立成功",
		"group":   conv,
	})
}

// GetUserGroups 取得當前用戶所屬的所有群組
func GetUserGroups(w http.ResponseWriter, r *http.Request) {
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

	groupService := services.NewGroupService(store, getEvents(r))
	conversations, err := groupService.ListConversations(ctx, userID, database.ConversationListFilter{
		Type:         models.ConversationTypeGroup,
		NameContains: r.URL.Query().Get("q"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if conversations == nil {
		conversations = []models.Conversation{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups": conversations,
		"count":  len(conversations),
	})
}

// GetGroup 取得單一群組詳情，僅限成員查看
func GetGroup(w http.ResponseWriter, r *http.Request) {
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

	groupService := services.NewGroupService(store, getEvents(r))
	conv, err := groupService.GetConversation(ctx, userID, groupID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group": conv,
	})
}

// UpdateGroupSettings 更新群組名稱、頭像、類型或審核設定
func UpdateGroupSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := parseObjectID(w, mux.Vars(r)["groupId"], "群組")
	if !ok {
		return
	}

	var req UpdateGroupSettingsRequest
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

	groupService := services.NewGroupService(store, getEvents(r))
	conv, err := groupService.UpdateGroup(ctx, userID, groupID, services.GroupSettingsPatch{
		Name:            req.Name,
		AvatarURL:       req.AvatarURL,
		GroupType:       req.GroupType,
		RequireApproval: req.RequireApproval,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "群組設定更新成功",
		"group":   conv,
	})
}

// DisbandGroup 解散群組，僅限群主
func DisbandGroup(w http.ResponseWriter, r *http.Request) {
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

	groupService := services.NewGroupService(store, getEvents(r))
	if err := groupService.DisbandGroup(ctx, userID, groupID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Printf("Group disbanded: %s by %s", groupID.Hex(), userID)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "群組已解散",
	})
}

// RefreshInviteLink 重新生成群組邀請連結，舊連結立即失效
func RefreshInviteLink(w http.ResponseWriter, r *http.Request) {
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

	groupService := services.NewGroupService(store, getEvents(r))
	link, err := groupService.RefreshInviteLink(ctx, userID, groupID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "邀請連結已更新",
		"invite_link": link,
	})
}

// JoinGroupByInviteLink 透過邀請連結加入群組
// 開啟審核的群組仍會進入待審核佇列
func JoinGroupByInviteLink(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	token := mux.Vars(r)["token"]
	if token == "" {
		http.Error(w, `{"error": "邀請連結為必填項"}`, http.StatusBadRequest)
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	joinService := services.NewJoinRequestService(store, getEvents(r))
	result, err := joinService.JoinByInviteLink(ctx, token, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcome":  result.Outcome,
		"group_id": result.Conversation.ID.Hex(),
	})
}
