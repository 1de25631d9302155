package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/config"
	"github.com/vumotions/chatapp-server-sub000/backend/database"
	"github.com/vumotions/chatapp-server-sub000/backend/routes"
	"github.com/vumotions/chatapp-server-sub000/backend/services"
	"github.com/vumotions/chatapp-server-sub000/backend/websockets"

	socketio "github.com/googollee/go-socket.io"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. 載入設定
	cfg := config.LoadConfig()

	// 在啟動時印出版本號和配置信息
	log.Printf("=== Starting Group Chat Server ===")
	log.Printf("Version: %s", cfg.AppVersion)
	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Server Port: %s", cfg.ServerPort)
	log.Printf("MongoDB Database: %s", cfg.MongoDbName)
	log.Printf("==================================")

	// 2. 連線到資料庫
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()
	store, err := database.NewMongoStore(dbCtx, cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Could not connect to MongoDB: %v", err)
	}

	// 應用程式結束時斷開資料庫連線
	defer func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer disconnectCancel()
		if err := store.Disconnect(disconnectCtx); err != nil {
			log.Fatalf("Error disconnecting from MongoDB: %v", err)
		}
		log.Println("Disconnected from MongoDB.")
	}()

	// 3. 初始化 Socket.IO 伺服器
	log.Println("Initializing Socket.IO server...")
	encryptionKey := []byte(cfg.EncryptionSecret)
	chatService := services.NewChatService(store, encryptionKey)

	// Redis 為可選配置：多實例部署時用於跨節點廣播與在線狀態
	var redisClient *redis.Client
	var redisOptions *socketio.RedisAdapterOptions
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		redisOptions = &socketio.RedisAdapterOptions{
			Addr: cfg.RedisAddr,
		}
		log.Printf("Redis enabled at %s", cfg.RedisAddr)
	}

	presence := websockets.NewPresenceDirectory(redisClient)
	moderationService := services.NewModerationService(store, nil)
	socketServer := websockets.NewSocketIOServer(chatService, moderationService, presence, redisOptions)

	// 業務層透過 Hub 推播群組事件與個人通知
	hub := websockets.NewHub(socketServer, presence)

	// 啟動 Socket.IO 伺服器
	go func() {
		log.Println("Starting Socket.IO server...")
		if err := socketServer.Serve(); err != nil {
			log.Fatalf("Socket.IO listen error: %s\n", err)
		}
	}()
	defer socketServer.Close()
	log.Println("✓ Socket.IO server initialized")

	// 4. 初始化 HTTP API 路由
	log.Println("Setting up HTTP routes...")
	apiHandler := routes.SetupRoutes(store, hub)
	log.Println("✓ HTTP routes configured")

	// 5. 設定 HTTP 伺服器
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", socketServer) // 將 /socket.io/ 路徑交給 Socket.IO 處理
	mux.Handle("/", apiHandler)             // 將所有其他請求交給我們帶有 CORS 的路由器處理

	// 6. 優雅地啟動與關閉伺服器
	server := &http.Server{
		Addr:         cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server is ready and listening on port %s", cfg.ServerPort)
		log.Printf("📡 Socket.IO endpoint: http://localhost%s/socket.io/", cfg.ServerPort)
		log.Printf("🌐 API endpoint: http://localhost%s/api/v1/", cfg.ServerPort)
		log.Println("Press Ctrl+C to shutdown")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", cfg.ServerPort, err)
		}
	}()

	// 等待中斷訊號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	// 給予 5 秒的時間來處理現有請求
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server exited gracefully")
}
