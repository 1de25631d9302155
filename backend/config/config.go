package config

import (
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// 全局變數用於跟蹤日誌狀態
var (
	isDockerEnvLogged bool
	logMutex          sync.Mutex
)

// AppConfig 存放應用程式的所有設定
type AppConfig struct {
	AppVersion       string
	Environment      string // 環境類型: production, development, testing
	ServerPort       string
	MongoURI         string
	MongoDbName      string
	JwtSecret        string
	EncryptionSecret string   // 用於訊息加密的密鑰
	RedisAddr        string   // 選填，多實例部署時供 socket 與在線狀態同步
	AllowedOrigins   []string // 允許的來源
}

// LoadConfig 載入設定
func LoadConfig() AppConfig {
	// 檢查是否在 Docker 環境中
	if os.Getenv("DOCKER_ENV") == "true" || os.Getenv("CONTAINER") == "true" {
		// 在 Docker 環境中，直接使用環境變數，不嘗試加載 .env 文件
		// 只在第一次加載時輸出日誌（線程安全）
		logMutex.Lock()
		if !isDockerEnvLogged {
			log.Println("Docker environment detected, using environment variables")
			isDockerEnvLogged = true
		}
		logMutex.Unlock()
	} else {
		// 在本地開發環境中，嘗試從 .env 檔案載入環境變數
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Could not find .env file, using environment variables")
		}
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		// 本地執行時預設為開發環境
		environment = "development"
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = ":8080"
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}

	mongoDbName := os.Getenv("MONGO_DB_NAME")
	if mongoDbName == "" {
		// 根據環境自動選擇資料庫名稱
		if environment == "production" {
			mongoDbName = "chatapp_db"
		} else {
			mongoDbName = "chatapp_db_test"
		}
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}

	encryptionSecret := os.Getenv("ENCRYPTION_SECRET")
	if encryptionSecret == "" {
		log.Fatal("ENCRYPTION_SECRET environment variable not set")
	}
	if len(encryptionSecret) != 32 {
		log.Fatal("ENCRYPTION_SECRET must be 32 bytes long for AES-256")
	}

	redisAddr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))

	// CORS 配置
	var allowedOrigins []string
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = strings.Split(origins, ",")
	} else if environment == "production" {
		log.Fatal("ALLOWED_ORIGINS must be set in production")
	} else {
		// 開發環境允許更多來源
		allowedOrigins = []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:8080",
			"http://127.0.0.1:8080",
			"*",
		}
	}

	return AppConfig{
		AppVersion:       "1.0.0",
		Environment:      environment,
		ServerPort:       port,
		MongoURI:         mongoURI,
		MongoDbName:      mongoDbName,
		JwtSecret:        jwtSecret,
		EncryptionSecret: encryptionSecret,
		RedisAddr:        redisAddr,
		AllowedOrigins:   allowedOrigins,
	}
}
