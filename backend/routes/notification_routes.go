package routes

import (
	"github.com/vumotions/chatapp-server-sub000/backend/controllers"
	"github.com/vumotions/chatapp-server-sub000/backend/middleware"

	"github.com/gorilla/mux"
)

// SetupNotificationRoutes 設置通知相關路由，全部需要認證
func SetupNotificationRoutes(r *mux.Router) {
	notificationRouter := r.PathPrefix("/notifications").Subrouter()
	notificationRouter.Use(middleware.JwtAuthentication)

	notificationRouter.HandleFunc("", controllers.GetNotifications).Methods("GET")
	notificationRouter.HandleFunc("/read", controllers.MarkNotificationRead).Methods("POST")
}
