package controllers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/vumotions/chatapp-server-sub000/backend/database"
	"github.com/vumotions/chatapp-server-sub000/backend/middleware"
	"github.com/vumotions/chatapp-server-sub000/backend/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// getStore 從請求 context 取出資料庫存取介面
func getStore(r *http.Request) (database.Store, bool) {
	return database.StoreFromContext(r.Context())
}

// getEvents 從請求 context 取出事件推播介面，未配置時回傳 no-op 實作
func getEvents(r *http.Request) services.Events {
	return middleware.EventsFromContext(r.Context())
}

// currentUserID 取出 JWT 中介層放入的使用者 ID
func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		http.Error(w, `{"error": "無法獲取用戶 ID"}`, http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

// requireStore 取出 store，失敗時直接回應 500
func requireStore(w http.ResponseWriter, r *http.Request) (database.Store, bool) {
	store, ok := getStore(r)
	if !ok {
		http.Error(w, `{"error": "資料庫尚未初始化"}`, http.StatusInternalServerError)
		return nil, false
	}
	return store, true
}

// parseObjectID 解析路徑或請求體中的十六進位 ObjectID
func parseObjectID(w http.ResponseWriter, hex, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		http.Error(w, `{"error": "無效的`+label+` ID"}`, http.StatusBadRequest)
		return primitive.NilObjectID, false
	}
	return id, true
}

// writeJSON 輸出 JSON 回應
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeServiceError 把業務層錯誤翻成 HTTP 回應
// 已知的業務錯誤帶 Chinese message 與錯誤碼；其他錯誤一律 500 並記 log
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	if svcErr, ok := services.AsError(err); ok {
		writeJSON(w, status, map[string]string{
			"error": svcErr.Message,
			"code":  svcErr.Code,
		})
		return
	}
	if status == http.StatusNotFound {
		writeJSON(w, status, map[string]string{"error": "會話不存在"})
		return
	}
	if status == http.StatusConflict {
		writeJSON(w, status, map[string]string{"error": "操作衝突，請重試"})
		return
	}
	log.Printf("Unexpected error on %s %s: %v", r.Method, r.URL.Path, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "伺服器內部錯誤"})
}
