package controllers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/models"
	"github.com/vumotions/chatapp-server-sub000/backend/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// RegisterRequest 定義註冊請求的結構
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest 定義登入請求的結構
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterUser 處理用戶註冊
func RegisterUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "無效的請求格式"}`, http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if req.Username == "" || req.Email == "" || req.Password == "" {
		http.Error(w, `{"error": "用戶名、郵箱和密碼為必填項"}`, http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		http.Error(w, `{"error": "密碼長度至少為 8 個字符"}`, http.StatusBadRequest)
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	userCollection := store.Collection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 檢查郵箱是否已被註冊
	count, err := userCollection.CountDocuments(ctx, bson.M{"email": req.Email})
	if err != nil {
		log.Printf("Failed to check existing email: %v", err)
		http.Error(w, `{"error": "伺服器內部錯誤"}`, http.StatusInternalServerError)
		return
	}
	if count > 0 {
		http.Error(w, `{"error": "此郵箱已被註冊"}`, http.StatusConflict)
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		http.Error(w, `{"error": "伺服器內部錯誤"}`, http.StatusInternalServerError)
		return
	}

	now := time.Now()
	user := models.User{
		ID:        primitive.NewObjectID(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashedPassword,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := userCollection.InsertOne(ctx, user); err != nil {
		log.Printf("Failed to insert user: %v", err)
		http.Error(w, `{"error": "註冊失敗"}`, http.StatusInternalServerError)
		return
	}

	log.Printf("User registered: %s (%s)", user.Username, user.ID.Hex())

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "註冊成功",
		"user_id": user.ID.Hex(),
	})
}

// Login 處理用戶登入並簽發 JWT
func Login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "無效的請求格式"}`, http.StatusBadRequest)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		http.Error(w, `{"error": "郵箱和密碼為必填項"}`, http.StatusBadRequest)
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	userCollection := store.Collection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var user models.User
	err := userCollection.FindOne(ctx, bson.M{"email": req.Email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// 不透露帳號是否存在
			http.Error(w, `{"error": "郵箱或密碼錯誤"}`, http.StatusUnauthorized)
		} else {
			log.Printf("Failed to look up user for login: %v", err)
			http.Error(w, `{"error": "伺服器內部錯誤"}`, http.StatusInternalServerError)
		}
		return
	}

	if !utils.CheckPasswordHash(req.Password, user.Password) {
		http.Error(w, `{"error": "郵箱或密碼錯誤"}`, http.StatusUnauthorized)
		return
	}

	token, err := utils.GenerateJWT(user.ID.Hex(), user.Username)
	if err != nil {
		log.Printf("Failed to generate JWT for user %s: %v", user.ID.Hex(), err)
		http.Error(w, `{"error": "伺服器內部錯誤"}`, http.StatusInternalServerError)
		return
	}

	log.Printf("User logged in: %s (%s)", user.Username, user.ID.Hex())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "登入成功",
		"token":   token,
		"user": map[string]string{
			"id":         user.ID.Hex(),
			"username":   user.Username,
			"email":      user.Email,
			"avatar_url": avatarOrEmpty(user.AvatarURL),
		},
	})
}

// GetProfile 返回當前登入用戶的個人資料
func GetProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	store, ok := requireStore(w, r)
	if !ok {
		return
	}
	userCollection := store.Collection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userObjectID, ok := parseObjectID(w, userID, "用戶")
	if !ok {
		return
	}

	var user models.User
	err := userCollection.FindOne(ctx, bson.M{"_id": userObjectID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			http.Error(w, `{"error": "用戶不存在"}`, http.StatusNotFound)
		} else {
			log.Printf("Failed to look up profile for %s: %v", userID, err)
			http.Error(w, `{"error": "伺服器內部錯誤"}`, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":         user.ID.Hex(),
		"username":   user.Username,
		"email":      user.Email,
		"avatar_url": avatarOrEmpty(user.AvatarURL),
	})
}

func avatarOrEmpty(url *string) string {
	if url == nil {
		return ""
	}
	return *url
}
