package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 會話類型
const (
	ConversationTypePrivate = "private" // 一對一私聊
	ConversationTypeGroup   = "group"   // 群組會話
)

// 群組類型（僅在 type=group 時有意義）
const (
	GroupTypePublic  = "public"
	GroupTypePrivate = "private"
)

// MaxGroupMembers 群組成員數量上限（包含群主）
const MaxGroupMembers = 100

// Conversation 代表一個會話（私聊或群組）
// participants 永遠是 members 中所有 user_id 的鏡像索引，方便用單一欄位查詢
type Conversation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type      string             `bson:"type" json:"type"`
	Name      string             `bson:"name,omitempty" json:"name,omitempty"`
	AvatarURL string             `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`

	// 群組設定
	GroupType       string `bson:"group_type,omitempty" json:"group_type,omitempty"` // public, private
	RequireApproval bool   `bson:"require_approval" json:"require_approval"`         // group_type=private 時強制為 true
	OwnerID         string `bson:"owner_id,omitempty" json:"owner_id,omitempty"`
	InviteLink      string `bson:"invite_link,omitempty" json:"invite_link,omitempty"`

	// 發言限制（僅管理員可發言），到期採惰性清除
	OnlyAdminsCanSend bool       `bson:"only_admins_can_send" json:"only_admins_can_send"`
	RestrictUntil     *time.Time `bson:"restrict_until,omitempty" json:"restrict_until,omitempty"`

	Participants    []string       `bson:"participants" json:"participants"`
	Members         []Member       `bson:"members,omitempty" json:"members,omitempty"`
	FormerMembers   []FormerMember `bson:"former_members,omitempty" json:"former_members,omitempty"`
	PendingRequests []JoinRequest  `bson:"pending_requests,omitempty" json:"pending_requests,omitempty"`

	// 每用戶覆蓋清單
	ArchivedFor        []string `bson:"archived_for,omitempty" json:"archived_for,omitempty"`
	HiddenFor          []string `bson:"hidden_for,omitempty" json:"hidden_for,omitempty"`
	DeletedMessagesFor []string `bson:"deleted_messages_for,omitempty" json:"deleted_messages_for,omitempty"`

	LastMessage     string    `bson:"last_message,omitempty" json:"last_message,omitempty"`
	LastMessageTime time.Time `bson:"last_message_time,omitempty" json:"last_message_time,omitempty"`

	// 樂觀鎖版本號，所有寫入必須帶版本條件更新
	Version int64 `bson:"version" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// FormerMember 記錄已離開（退出或被移除）的成員
type FormerMember struct {
	UserID string    `bson:"user_id" json:"user_id"`
	LeftAt time.Time `bson:"left_at" json:"left_at"`
}

// Member 群組內的單個成員記錄
type Member struct {
	UserID      string      `bson:"user_id" json:"user_id"`
	Role        Role        `bson:"role" json:"role"`
	Permissions Permissions `bson:"permissions" json:"permissions"`
	CustomTitle string      `bson:"custom_title,omitempty" json:"custom_title,omitempty"`
	JoinedAt    time.Time   `bson:"joined_at" json:"joined_at"`
	InvitedBy   string      `bson:"invited_by,omitempty" json:"invited_by,omitempty"`

	// 禁言狀態，muted_until 為空代表無限期
	IsMuted    bool       `bson:"is_muted" json:"is_muted"`
	MutedUntil *time.Time `bson:"muted_until,omitempty" json:"muted_until,omitempty"`
}

// 入群申請狀態
const (
	JoinRequestPending  = "pending"
	JoinRequestApproved = "approved"
	JoinRequestRejected = "rejected"
	JoinRequestNone     = "none" // 查詢用，不會寫入資料庫
)

// JoinRequest 入群申請記錄，同一用戶同時最多只有一筆 pending
type JoinRequest struct {
	UserID      string     `bson:"user_id" json:"user_id"`
	Status      string     `bson:"status" json:"status"`
	RequestedAt time.Time  `bson:"requested_at" json:"requested_at"`
	InvitedBy   string     `bson:"invited_by,omitempty" json:"invited_by,omitempty"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	ProcessedBy string     `bson:"processed_by,omitempty" json:"processed_by,omitempty"`
}

// IsGroup 是否為群組會話
func (c *Conversation) IsGroup() bool {
	return c.Type == ConversationTypeGroup
}

// MemberOf 返回指定用戶的成員記錄，不存在時返回 nil
// 返回的是 Members 切片內的指標，可直接原地修改
func (c *Conversation) MemberOf(userID string) *Member {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i]
		}
	}
	return nil
}

// IsParticipant 檢查用戶是否在會話中
func (c *Conversation) IsParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Owner 返回群主的成員記錄，私聊或資料異常時返回 nil
func (c *Conversation) Owner() *Member {
	for i := range c.Members {
		if c.Members[i].Role == RoleOwner {
			return &c.Members[i]
		}
	}
	return nil
}

// Admins 返回所有 role 為 owner 或 admin 的成員用戶 ID
func (c *Conversation) Admins() []string {
	var ids []string
	for i := range c.Members {
		if c.Members[i].Role == RoleOwner || c.Members[i].Role == RoleAdmin {
			ids = append(ids, c.Members[i].UserID)
		}
	}
	return ids
}

// PendingRequestFor 返回指定用戶的 pending 申請，沒有時返回 nil
func (c *Conversation) PendingRequestFor(userID string) *JoinRequest {
	for i := range c.PendingRequests {
		if c.PendingRequests[i].UserID == userID && c.PendingRequests[i].Status == JoinRequestPending {
			return &c.PendingRequests[i]
		}
	}
	return nil
}

// AddMember 新增成員並同步 participants 鏡像，已存在時不動作並返回 false
func (c *Conversation) AddMember(m Member) bool {
	if c.MemberOf(m.UserID) != nil {
		return false
	}
	c.Members = append(c.Members, m)
	if !c.IsParticipant(m.UserID) {
		c.Participants = append(c.Participants, m.UserID)
	}
	return true
}

// RemoveMemberRecord 移除成員並同步 participants 鏡像，同時寫入 former_members
func (c *Conversation) RemoveMemberRecord(userID string, leftAt time.Time) bool {
	idx := -1
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	c.Members = append(c.Members[:idx], c.Members[idx+1:]...)
	for i, p := range c.Participants {
		if p == userID {
			c.Participants = append(c.Participants[:i], c.Participants[i+1:]...)
			break
		}
	}
	c.FormerMembers = append(c.FormerMembers, FormerMember{UserID: userID, LeftAt: leftAt})
	return true
}

// ParticipantsInSync 驗證 participants 與 members 的鏡像不變式
func (c *Conversation) ParticipantsInSync() bool {
	if len(c.Participants) != len(c.Members) && c.IsGroup() {
		return false
	}
	if !c.IsGroup() {
		return true
	}
	set := make(map[string]bool, len(c.Participants))
	for _, p := range c.Participants {
		set[p] = true
	}
	for i := range c.Members {
		if !set[c.Members[i].UserID] {
			return false
		}
	}
	return true
}

// MuteExpired 禁言時限是否已過（無限期禁言永不過期）
func (m *Member) MuteExpired(now time.Time) bool {
	return m.IsMuted && m.MutedUntil != nil && !now.Before(*m.MutedUntil)
}

// EffectivelyMuted 當下是否處於禁言狀態（純判斷，不清除欄位）
func (m *Member) EffectivelyMuted(now time.Time) bool {
	if !m.IsMuted {
		return false
	}
	return m.MutedUntil == nil || now.Before(*m.MutedUntil)
}

// RestrictionExpired 群組發言限制時限是否已過
func (c *Conversation) RestrictionExpired(now time.Time) bool {
	return c.OnlyAdminsCanSend && c.RestrictUntil != nil && !now.Before(*c.RestrictUntil)
}

// SendRestrictionActive 當下發言限制是否生效（純判斷，不清除欄位）
func (c *Conversation) SendRestrictionActive(now time.Time) bool {
	if !c.OnlyAdminsCanSend {
		return false
	}
	return c.RestrictUntil == nil || now.Before(*c.RestrictUntil)
}
