// Package apperr 定义 service 层与 HTTP 层共用的错误分类。
package apperr

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

// Kind 错误类别，同时是响应体里的 error 字段。
type Kind string

const (
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindNotFound          Kind = "NOT_FOUND"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindInvalidStatus     Kind = "INVALID_STATUS"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindConflict          Kind = "CONFLICT"
	KindRateLimited       Kind = "RATE_LIMITED"
	KindInternal          Kind = "INTERNAL"
)

// Error 终止当前请求的业务错误：Kind 供程序判断，Msg 直接返回给用户。
// 校验失败时 Fields 记录逐字段原因。
type Error struct {
	Kind   Kind
	Msg    string
	Fields map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return string(e.Kind) + ": " + e.Msg
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return string(e.Kind) + ": " + e.Msg + " (" + strings.Join(parts, "; ") + ")"
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Unauthorized(msg string) *Error      { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error         { return New(KindForbidden, msg) }
func NotFound(msg string) *Error          { return New(KindNotFound, msg) }
func InvalidStatus(msg string) *Error     { return New(KindInvalidStatus, msg) }
func InvalidTransition(msg string) *Error { return New(KindInvalidTransition, msg) }
func Conflict(msg string) *Error          { return New(KindConflict, msg) }
func RateLimited(msg string) *Error       { return New(KindRateLimited, msg) }

// Validation 由 字段 → 原因 构造校验错误。
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Msg: "invalid input", Fields: fields}
}

// Field 单字段校验错误的简写。
func Field(field, reason string) *Error {
	return Validation(map[string]string{field: reason})
}

// KindOf 返回 err 的类别，非 *Error 一律视为内部错误。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus 类别到响应状态码的映射。
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindInvalidStatus:
		return http.StatusBadRequest
	case KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
