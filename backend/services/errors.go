package services

import (
	"errors"
	"net/http"

	"github.com/vumotions/chatapp-server-sub000/backend/database"
	"github.com/vumotions/chatapp-server-sub000/backend/models"
)

// ErrorKind 錯誤分類，controller 據此決定 HTTP 狀態碼
type ErrorKind string

const (
	KindNotFound  ErrorKind = "not_found"
	KindForbidden ErrorKind = "forbidden"
	KindConflict  ErrorKind = "conflict"
	KindInvalid   ErrorKind = "invalid"
)

// Error 帶分類與規則代碼的業務錯誤
// Code 是穩定的規則代碼，Message 可直接回給客戶端
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func notFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func invalid(code, message string) *Error {
	return &Error{Kind: KindInvalid, Code: code, Message: message}
}

// errSkipUpdate 由 Update 的 mutate 回呼返回，代表這次呼叫不需要寫入（冪等情況）
// 呼叫端攔下它並當成成功處理，不會觸碰資料庫
var errSkipUpdate = errors.New("skip update")

// denialError 將純權限模型的拒絕原因轉成 Forbidden 錯誤
func denialError(d *models.PermissionDenial) *Error {
	return forbidden(d.Rule, d.Message)
}

// AsError 取出帶分類的業務錯誤
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind 檢查錯誤是否屬於指定分類
func IsKind(err error, kind ErrorKind) bool {
	if e, ok := AsError(err); ok {
		return e.Kind == kind
	}
	return false
}

// HTTPStatus 將業務錯誤映射為 HTTP 狀態碼，未知錯誤一律 500
func HTTPStatus(err error) int {
	if errors.Is(err, database.ErrConversationNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, database.ErrVersionConflict) {
		return http.StatusConflict
	}
	e, ok := AsError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindInvalid:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
