package httpapi

import (
	"net/http"

	"heartguard-alerts/internal/domain"
)

// Result 统一响应格式
// - code: 2000 成功；40001/40301/40401/40901 拒绝；60401 token 无效；-1 内部错误
// - type: 'success' | 'error'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = domain.CodeSuccess
	ResultError   = domain.CodeInternal
	// TokenExpired 使用 code=60401 + HTTP 401
	ResultTokenExpired = domain.CodeTokenExpired
	ResultForbidden    = domain.CodeForbidden
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return FailCode(ResultError, message)
}

func FailCode(code int, message string) Result[any] {
	return Result[any]{Code: code, Type: "error", Message: message, Result: nil}
}

// forbidden token 有效但不属于该组织：403 + 40301（不是认证失败）
func forbidden(w http.ResponseWriter, orgID string) {
	writeJSON(w, http.StatusForbidden, FailCode(ResultForbidden, "token is not valid for organization "+orgID))
}
