package routes

import (
	"github.com/vumotions/chatapp-server-sub000/backend/controllers"
	"github.com/vumotions/chatapp-server-sub000/backend/middleware"

	"github.com/gorilla/mux"
)

// SetupChatMessageRoutes 設置聊天訊息相關路由，全部需要認證
func SetupChatMessageRoutes(r *mux.Router) {
	messageRouter := r.PathPrefix("/rooms").Subrouter()
	messageRouter.Use(middleware.JwtAuthentication)

	messageRouter.HandleFunc("/{roomId}/messages", controllers.GetMessagesByRoom).Methods("GET")
	messageRouter.HandleFunc("/{roomId}/messages/read", controllers.MarkMessagesRead).Methods("POST")
}
