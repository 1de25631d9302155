package models

// Role 群組內角色
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Permissions 管理權限集合，每一項可獨立授予 admin
// member 角色最多只能持有 invite_users
type Permissions struct {
	ChangeGroupInfo     bool `bson:"change_group_info" json:"change_group_info"`
	DeleteMessages      bool `bson:"delete_messages" json:"delete_messages"`
	BanUsers            bool `bson:"ban_users" json:"ban_users"`
	InviteUsers         bool `bson:"invite_users" json:"invite_users"`
	PinMessages         bool `bson:"pin_messages" json:"pin_messages"`
	AddNewAdmins        bool `bson:"add_new_admins" json:"add_new_admins"`
	ApproveJoinRequests bool `bson:"approve_join_requests" json:"approve_join_requests"`
}

// FullPermissions 群主的完整權限集合
func FullPermissions() Permissions {
	return Permissions{
		ChangeGroupInfo:     true,
		DeleteMessages:      true,
		BanUsers:            true,
		InviteUsers:         true,
		PinMessages:         true,
		AddNewAdmins:        true,
		ApproveJoinRequests: true,
	}
}

// DefaultMemberPermissions 一般成員的預設權限
func DefaultMemberPermissions() Permissions {
	return Permissions{InviteUsers: true}
}

// OwnerDowngradePermissions 轉讓群組後原群主降級為 admin 時的權限
func OwnerDowngradePermissions() Permissions {
	p := FullPermissions()
	p.AddNewAdmins = false
	return p
}

// CappedForDelegation 被授權的 admin 提拔新 admin 時，強制移除高階權限
// 避免代理管理員建立出權限比自己更大的同級
func (p Permissions) CappedForDelegation() Permissions {
	p.AddNewAdmins = false
	p.BanUsers = false
	p.ApproveJoinRequests = false
	return p
}

// RestrictedToMember 將權限收斂到 member 角色允許持有的範圍
func (p Permissions) RestrictedToMember() Permissions {
	return Permissions{InviteUsers: p.InviteUsers}
}

// GroupAction 可被授權檢查的群組操作
type GroupAction string

const (
	ActionChangeGroupInfo     GroupAction = "change_group_info"
	ActionDeleteMessages      GroupAction = "delete_messages"
	ActionRemoveMember        GroupAction = "remove_member"
	ActionMuteMember          GroupAction = "mute_member"
	ActionInviteUsers         GroupAction = "invite_users"
	ActionPinMessages         GroupAction = "pin_messages"
	ActionAddNewAdmins        GroupAction = "add_new_admins"
	ActionChangeMemberRole    GroupAction = "change_member_role"
	ActionApproveJoinRequests GroupAction = "approve_join_requests"
)

// Allows 檢查權限集合是否涵蓋指定操作
func (p Permissions) Allows(action GroupAction) bool {
	switch action {
	case ActionChangeGroupInfo:
		return p.ChangeGroupInfo
	case ActionDeleteMessages:
		return p.DeleteMessages
	case ActionRemoveMember, ActionMuteMember:
		return p.BanUsers
	case ActionInviteUsers:
		return p.InviteUsers
	case ActionPinMessages:
		return p.PinMessages
	case ActionAddNewAdmins, ActionChangeMemberRole:
		return p.AddNewAdmins
	case ActionApproveJoinRequests:
		return p.ApproveJoinRequests
	}
	return false
}

// PermissionDenial 授權失敗的具體原因
// Rule 是穩定的規則代碼，Message 是可直接回給客戶端的訊息
type PermissionDenial struct {
	Rule    string
	Message string
}

func (d *PermissionDenial) Error() string {
	return d.Message
}

func deny(rule, message string) *PermissionDenial {
	return &PermissionDenial{Rule: rule, Message: message}
}

// Authorize 判斷 actor 是否可以對 target 執行 action，這是權限判斷的唯一入口
// target 為 nil 代表無特定目標的操作（例如修改群組資訊、審核申請）
// 授權通過返回 nil，否則返回帶規則代碼的拒絕原因
func Authorize(actor Member, target *Member, action GroupAction) *PermissionDenial {
	// 群主不能被任何人作為目標（包含自己），要動群主只能走轉讓流程
	if target != nil && target.Role == RoleOwner {
		return deny("target_is_owner", "不能對群主執行此操作")
	}

	// 移除與禁言不允許以自己為目標
	if target != nil && actor.UserID == target.UserID {
		switch action {
		case ActionRemoveMember:
			return deny("self_removal", "不能移除自己，請使用離開群組")
		case ActionMuteMember:
			return deny("self_mute", "不能禁言自己")
		}
	}

	switch actor.Role {
	case RoleOwner:
		return nil
	case RoleAdmin:
		// admin 之間互不隸屬，變更現任 admin 的角色只有群主可以做
		if target != nil && target.Role == RoleAdmin {
			return deny("target_is_admin", "管理員之間不能互相執行此操作")
		}
		if !actor.Permissions.Allows(action) {
			return deny("missing_permission", "您沒有執行此操作的權限")
		}
		return nil
	default:
		if action == ActionInviteUsers && actor.Permissions.InviteUsers {
			return nil
		}
		return deny("member_forbidden", "一般成員沒有執行此操作的權限")
	}
}
