package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewInviteToken 產生邀請連結用的不透明短 token
// 每次重新產生都會讓舊連結失效，所以不需要可逆或帶資訊
func NewInviteToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
