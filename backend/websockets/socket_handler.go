package websockets

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/models"
	"github.com/vumotions/chatapp-server-sub000/backend/services"
	"github.com/vumotions/chatapp-server-sub000/backend/utils"

	socketio "github.com/googollee/go-socket.io"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthenticatedUser 用于储存从 token 解析出的使用者资讯
type AuthenticatedUser struct {
	ID       string
	Username string
}

// ChatMessagePayload 定义了从客户端接收到的聊天讯息结构
type ChatMessagePayload struct {
	Room    string `json:"room"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// NewSocketIOServer 建立并配置一个新的 Socket.IO 伺服器
func NewSocketIOServer(chatService *services.ChatService, moderation *services.ModerationService, presence *PresenceDirectory, redisOptions *socketio.RedisAdapterOptions) *socketio.Server {
	server := socketio.NewServer(nil)

	if redisOptions != nil {
		if ok, err := server.Adapter(redisOptions); err != nil || !ok {
			log.Printf("Failed to attach Redis adapter, falling back to in-memory broadcast: %v", err)
		} else {
			log.Println("Socket.IO Redis adapter attached")
		}
	}

	// 当有新的客户端连线时触发 - 进行 Token 验证
	server.OnConnect("/", func(s socketio.Conn) error {
		queryValues, err := url.ParseQuery(s.URL().RawQuery)
		if err != nil {
			log.Printf("Connection rejected: Could not parse query for socket %s. Error: %v", s.ID(), err)
			return fmt.Errorf("authentication error: invalid query parameters")
		}
		token := queryValues.Get("token")

		if token == "" {
			log.Printf("Connection rejected: No token provided for socket %s", s.ID())
			return fmt.Errorf("authentication error: no token")
		}

		claims, err := utils.VerifyJWT(token)
		if err != nil {
			log.Printf("Connection rejected: Invalid token for socket %s. Error: %v", s.ID(), err)
			return fmt.Errorf("authentication error: invalid token")
		}

		user := &AuthenticatedUser{
			ID:       claims.UserID,
			Username: claims.Username,
		}
		s.SetContext(user)

		// 加入個人房間並登記在線狀態，供業務層點對點推播
		s.Join(userRoomPrefix + user.ID)
		presence.Connected(user.ID, s.ID())

		log.Printf("Socket connected and authenticated: UserID=%s, Username=%s, SocketID=%s", user.ID, user.Username, s.ID())
		return nil
	})

	// 处理自定义的 "join_room" 事件
	server.OnEvent("/", "join_room", func(s socketio.Conn, room string) {
		user, ok := s.Context().(*AuthenticatedUser)
		if !ok || user == nil {
			log.Printf("Error: Could not get user from context for socket %s", s.ID())
			return
		}

		// 只有會話成員可以加入房間
		roomObjectID, err := primitive.ObjectIDFromHex(room)
		if err != nil {
			log.Printf("Invalid room id in join_room from %s: %s", user.Username, room)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		isMember, err := chatService.IsUserInRoom(ctx, roomObjectID, user.ID)
		if err != nil || !isMember {
			log.Printf("User %s is not a member of room %s, join refused", user.Username, room)
			s.Emit("error", map[string]interface{}{"message": "您不是此會話的成員"})
			return
		}

		s.Join(room)
		log.Printf("User %s (Socket %s) joined room: %s", user.Username, s.ID(), room)
	})

	// 处理自定义的 "leave_room" 事件
	server.OnEvent("/", "leave_room", func(s socketio.Conn, room string) {
		user, ok := s.Context().(*AuthenticatedUser)
		if !ok || user == nil {
			log.Printf("Error: Could not get user from context for socket %s", s.ID())
			return
		}

		s.Leave(room)
		log.Printf("User %s (Socket %s) left room: %s", user.Username, s.ID(), room)
	})

	// 處理心跳檢測
	server.OnEvent("/", "ping", func(s socketio.Conn) {
		s.Emit("pong")
	})

	// 处理自定义的 "chat_message" 事件
	server.OnEvent("/", "chat_message", func(s socketio.Conn, payload ChatMessagePayload) {
		user, ok := s.Context().(*AuthenticatedUser)
		if !ok || user == nil {
			log.Printf("Error: Could not get user from context for socket %s", s.ID())
			return
		}

		roomObjectID, err := primitive.ObjectIDFromHex(payload.Room)
		if err != nil {
			log.Printf("Invalid room id in chat_message from %s: %s", user.Username, payload.Room)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// 發言前先過禁言與發言限制檢查
		allowed, reason, err := moderation.CanSend(ctx, roomObjectID, user.ID, time.Now())
		if err != nil {
			log.Printf("Failed to check send permission for user %s in room %s: %v", user.ID, payload.Room, err)
			return
		}
		if !allowed {
			log.Printf("Message from %s in room %s refused: %s", user.Username, payload.Room, reason)
			s.Emit("message_rejected", map[string]interface{}{
				"room":    payload.Room,
				"message": reason,
			})
			return
		}

		// 設置消息類型預設值
		messageType := payload.Type
		if messageType == "" {
			messageType = models.MessageTypeText
		}

		message, err := chatService.SaveMessage(ctx, user.ID, user.Username, payload.Room, payload.Content, messageType)
		if err != nil {
			log.Printf("Failed to save message from UserID %s: %v", user.ID, err)
			return
		}

		// 廣播給房間內所有用戶（包括發送者自己），內容用原文
		messageToBroadcast := map[string]interface{}{
			"id":          message.ID.Hex(),
			"sender_id":   user.ID,
			"sender_name": user.Username,
			"room":        payload.Room,
			"content":     payload.Content,
			"timestamp":   message.Timestamp.Format(time.RFC3339),
			"type":        messageType,
		}

		log.Printf("Broadcasting message to room %s from %s", payload.Room, user.Username)
		server.BroadcastToRoom("/", payload.Room, "chat_message", messageToBroadcast)
	})

	// 处理打字状態
	server.OnEvent("/", "typing", func(s socketio.Conn, data map[string]interface{}) {
		user, ok := s.Context().(*AuthenticatedUser)
		if !ok || user == nil {
			log.Printf("Error: Could not get user from context for socket %s", s.ID())
			return
		}

		room, ok := data["room"].(string)
		if !ok {
			log.Printf("Invalid room in typing event from %s", user.Username)
			return
		}

		isTyping, ok := data["is_typing"].(bool)
		if !ok {
			log.Printf("Invalid is_typing in typing event from %s", user.Username)
			return
		}

		typingData := map[string]interface{}{
			"user_id":   user.ID,
			"username":  user.Username,
			"room":      room,
			"is_typing": isTyping,
		}
		server.BroadcastToRoom("/", room, "typing", typingData)
	})

	// 當客戶端發生錯誤時觸發
	server.OnError("/", func(s socketio.Conn, e error) {
		// 先檢查連線物件 s 是否為 nil
		if s == nil {
			log.Printf("Socket error with a nil connection: %v", e)
			return
		}

		user, ok := s.Context().(*AuthenticatedUser)
		userInfo := "unknown"
		if ok && user != nil {
			userInfo = user.Username
		}
		log.Printf("Socket error for %s (Socket %s): %v", userInfo, s.ID(), e)
	})

	// 當客戶端斷線時觸發
	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		// 這裡使用了安全的 "comma-ok" 型別斷言
		user, ok := s.Context().(*AuthenticatedUser)

		if ok && user != nil {
			presence.Disconnected(user.ID, s.ID())
			log.Printf("User %s disconnected (SocketID: %s): %s", user.Username, s.ID(), reason)
		} else {
			// 如果使用者未經驗證 (例如 Token 過期被拒絕)，則會安全地執行這個區塊
			log.Printf("Unauthenticated socket disconnected (SocketID: %s): %s", s.ID(), reason)
		}
	})

	return server
}
