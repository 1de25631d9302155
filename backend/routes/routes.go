package routes

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/vumotions/chatapp-server-sub000/backend/config"
	"github.com/vumotions/chatapp-server-sub000/backend/database"
	"github.com/vumotions/chatapp-server-sub000/backend/middleware"
	"github.com/vumotions/chatapp-server-sub000/backend/services"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// SetupRoutes 設定並返回一個新的 mux.Router
func SetupRoutes(store database.Store, events services.Events) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.WithStore(store))
	r.Use(middleware.WithEvents(events))

	// 為所有 API 加上 /api/v1 前綴
	api := r.PathPrefix("/api/v1").Subrouter()

	// 健康檢查端點
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"message": "Server is running",
		})
	}).Methods("GET")

	// 註冊來自不同模組的路由
	SetupUserRoutes(api)
	SetupGroupRoutes(api)
	SetupChatMessageRoutes(api)
	SetupNotificationRoutes(api)

	log.Println("Routes have been initialized")

	// 使用配置中的 CORS 設定
	cfg := config.LoadConfig()
	allowedOrigins := handlers.AllowedOrigins(cfg.AllowedOrigins)

	allowedMethods := handlers.AllowedMethods([]string{
		"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD",
	})

	allowedHeaders := handlers.AllowedHeaders([]string{
		"Content-Type",
		"Authorization",
		"X-Requested-With",
		"Accept",
		"Origin",
		"Access-Control-Request-Method",
		"Access-Control-Request-Headers",
	})

	// 允許憑證
	allowCredentials := handlers.AllowCredentials()

	// 將 CORS 中介軟體應用到路由器
	return handlers.CORS(
		allowedOrigins,
		allowedMethods,
		allowedHeaders,
		allowCredentials,
	)(r)
}
