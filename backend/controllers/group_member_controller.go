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
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AddMembersRequest 定義批量加入成員請求的結構
type AddMembersRequest struct {
	UserIDs []string `json:"user_ids"`
}

// UpdateMemberRoleRequest 定義變更成員角色請求的結構
// 指標欄位缺省表示不更動
type UpdateMemberRoleRequest struct {
	Role        *string             `json:"role"` // admin, member
	Permissions *models.Permissions `json:"permissions"`
	CustomTitle *string             `json:"custom_title"`
}

// TransferOwnershipRequest 定義轉讓群主請求的結構
type TransferOwnershipRequest struct {
	NewOwnerID string `json:"new_owner_id"`
}

// AddGroupMembers 將多個用戶直接加入群組
func AddGroupMembers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := parseObjectID(w, mux.Vars(r)["groupId"], "群組")
	if !ok {
		return
	}

	var req AddMembersRequest
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
	result, err := groupService.AddMembers(ctx, userID, groupID, req.UserIDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "成員加入成功",
		"added":   result.Added,
		"skipped": result.Skipped,
	})
}

// RemoveGroupMember 將成員移出群組
func RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
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

	groupService := services.NewGroupService(store, getEvents(r))
	if err := groupService.RemoveMember(ctx, userID, groupID, targetID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Printf("Member %s removed from group %s by %s", targetID, groupID.Hex(), userID)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "成員已移出群組",
	})
}

// LeaveGroup 主動退出群組，群主需先轉讓才能退出
func LeaveGroup(w http.ResponseWriter, r *http.Request) {
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
	if err := groupService.LeaveGroup(ctx, userID, groupID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "已退出群組",
	})
}

// UpdateMemberRole 變更成員的角色、權限或頭銜
func UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateMemberRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "無效的請求格式"}`, http.StatusBadRequest)
		return
	}

	params := services.UpdateRoleParams{
		Permissions: req.Permissions,
		CustomTitle: req.CustomTitle,
	}
	if req.Role != nil {
		role := models.Role(*req.Role)
		if role != models.RoleAdmin && role != models.RoleMember {
			http.Error(w, `{"error": "角色必須為 'admin' 或 'member'"}`, http.StatusBadRequest)
			return
		}
		params.Role = &role
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	groupService := services.NewGroupService(store, getEvents(r))
	member, err := groupService.UpdateMemberRole(ctx, userID, groupID, targetID, params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "成員角色更新成功",
		"member":  member,
	})
}

// TransferOwnership 把群主身份轉讓給另一位成員
func TransferOwnership(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := parseObjectID(w, mux.Vars(r)["groupId"], "群組")
	if !ok {
		return
	}

	var req TransferOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "無效的請求格式"}`, http.StatusBadRequest)
		return
	}
	if req.NewOwnerID == "" {
		http.Error(w, `{"error": "新群主 ID 為必填項"}`, http.StatusBadRequest)
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	groupService := services.NewGroupService(store, getEvents(r))
	if err := groupService.TransferOwnership(ctx, userID, groupID, req.NewOwnerID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Printf("Group %s ownership transferred from %s to %s", groupID.Hex(), userID, req.NewOwnerID)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "群主轉讓成功",
	})
}

// GetGroupMembers 取得群組成員名單，附帶用戶名與頭像
func GetGroupMembers(w http.ResponseWriter, r *http.Request) {
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

	// 批量查出成員的用戶資料
	memberIDs := make([]primitive.ObjectID, 0, len(conv.Members))
	for _, m := range conv.Members {
		if objectID, err := primitive.ObjectIDFromHex(m.UserID); err == nil {
			memberIDs = append(memberIDs, objectID)
		}
	}

	usersByID := map[string]models.User{}
	if len(memberIDs) > 0 {
		cursor, err := store.Collection("users").Find(ctx, bson.M{"_id": bson.M{"$in": memberIDs}})
		if err != nil {
			log.Printf("Failed to load member profiles for group %s: %v", groupID.Hex(), err)
		} else {
			defer cursor.Close(ctx)
			var users []models.User
			if err := cursor.All(ctx, &users); err != nil {
				log.Printf("Failed to decode member profiles for group %s: %v", groupID.Hex(), err)
			}
			for _, u := range users {
				usersByID[u.ID.Hex()] = u
			}
		}
	}

	members := make([]map[string]interface{}, 0, len(conv.Members))
	for _, m := range conv.Members {
		view := map[string]interface{}{
			"user_id":      m.UserID,
			"role":         m.Role,
			"permissions":  m.Permissions,
			"custom_title": m.CustomTitle,
			"joined_at":    m.JoinedAt,
			"is_muted":     m.EffectivelyMuted(time.Now()),
		}
		if u, found := usersByID[m.UserID]; found {
			view["username"] = u.Username
			view["avatar_url"] = avatarOrEmpty(u.AvatarURL)
		}
		members = append(members, view)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"members": members,
		"count":   len(members),
	})
}
