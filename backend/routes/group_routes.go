package routes

import (
	"github.com/vumotions/chatapp-server-sub000/backend/controllers"
	"github.com/vumotions/chatapp-server-sub000/backend/middleware"

	"github.com/gorilla/mux"
)

// SetupGroupRoutes 設置群組相關路由，全部需要認證
func SetupGroupRoutes(r *mux.Router) {
	groupRouter := r.PathPrefix("/groups").Subrouter()
	groupRouter.Use(middleware.JwtAuthentication)

	// 群組生命週期
	groupRouter.HandleFunc("", controllers.CreateGroup).Methods("POST")
	groupRouter.HandleFunc("", controllers.GetUserGroups).Methods("GET")
	groupRouter.HandleFunc("/{groupId}", controllers.GetGroup).Methods("GET")
	groupRouter.HandleFunc("/{groupId}", controllers.UpdateGroupSettings).Methods("PUT")
	groupRouter.HandleFunc("/{groupId}", controllers.DisbandGroup).Methods("DELETE")

	// 邀請連結
	groupRouter.HandleFunc("/{groupId}/invite-link", controllers.RefreshInviteLink).Methods("POST")
	groupRouter.HandleFunc("/join/{token}", controllers.JoinGroupByInviteLink).Methods("POST")

	// 成員管理
	groupRouter.HandleFunc("/{groupId}/members", controllers.GetGroupMembers).Methods("GET")
	groupRouter.HandleFunc("/{groupId}/members", controllers.AddGroupMembers).Methods("POST")
	groupRouter.HandleFunc("/{groupId}/members/{userId}", controllers.RemoveGroupMember).Methods("DELETE")
	groupRouter.HandleFunc("/{groupId}/members/{userId}/role", controllers.UpdateMemberRole).Methods("PUT")
	groupRouter.HandleFunc("/{groupId}/leave", controllers.LeaveGroup).Methods("POST")
	groupRouter.HandleFunc("/{groupId}/transfer-ownership", controllers.TransferOwnership).Methods("POST")

	// 入群申請
	groupRouter.HandleFunc("/{groupId}/join-requests", controllers.RequestJoinGroup).Methods("POST")
	groupRouter.HandleFunc("/{groupId}/join-requests", controllers.GetPendingJoinRequests).Methods("GET")
	groupRouter.HandleFunc("/{groupId}/join-requests/me", controllers.GetMyJoinRequestStatus).Methods("GET")
	groupRouter.HandleFunc("/{groupId}/join-requests/{userId}/approve", controllers.ApproveJoinRequest).Methods("POST")
	groupRouter.HandleFunc("/{groupId}/join-requests/{userId}/reject", controllers.RejectJoinRequest).Methods("POST")
	groupRouter.HandleFunc("/{groupId}/join-requests/clear", controllers.ClearJoinRequests).Methods("POST")

	// 禁言與發言限制
	groupRouter.HandleFunc("/{groupId}/members/{userId}/mute", controllers.MuteGroupMember).Methods("POST")
	groupRouter.HandleFunc("/{groupId}/members/{userId}/unmute", controllers.UnmuteGroupMember).Methods("POST")
	groupRouter.HandleFunc("/{groupId}/send-restriction", controllers.SetSendRestriction).Methods("PUT")
}
