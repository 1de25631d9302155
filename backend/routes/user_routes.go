package routes

import (
	"github.com/vumotions/chatapp-server-sub000/backend/controllers"
	"github.com/vumotions/chatapp-server-sub000/backend/middleware"

	"github.com/gorilla/mux"
)

// SetupUserRoutes 設定所有與使用者相關的路由
func SetupUserRoutes(router *mux.Router) {
	// 不需要認證的路由
	router.HandleFunc("/register", controllers.RegisterUser).Methods("POST")
	router.HandleFunc("/login", controllers.Login).Methods("POST")

	// 需要認證的個人資料路由
	profileRouter := router.PathPrefix("/profile").Subrouter()
	profileRouter.Use(middleware.JwtAuthentication)

	profileRouter.HandleFunc("", controllers.GetProfile).Methods("GET")
}
