// Package httpx 统一 HTTP 响应信封：成功 {"code":0,"data":...}，失败 {"code":<http>,"error":<KIND>,"msg":...}。
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"campus_market/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

// Error 按错误类型输出；非业务错误只记日志，对外返回通用文案。
func Error(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.JSON(status, body)
}

// Abort 同 Error，并终止后续 handler。
func Abort(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.AbortWithStatusJSON(status, body)
}

func errorBody(c *gin.Context, err error) (int, gin.H) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if kind == apperr.KindInternal {
		slog.ErrorContext(c.Request.Context(), "request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Any("err", err),
		)
		return status, gin.H{"code": status, "error": kind, "msg": "internal server error"}
	}

	var ae *apperr.Error
	errors.As(err, &ae)
	body := gin.H{"code": status, "error": kind, "msg": ae.Msg}
	if len(ae.Fields) > 0 {
		body["fields"] = ae.Fields
	}
	return status, body
}

// BindError 把 gin 绑定错误转成带字段明细的 ValidationError。
func BindError(err error) error {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		fields := make(map[string]string, len(ves))
		for _, fe := range ves {
			fields[fieldPath(fe)] = reason(fe)
		}
		return apperr.Validation(fields)
	}
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typ):
		return apperr.Field(typ.Field, "has the wrong type")
	case errors.As(err, &syn), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return apperr.Field("body", "malformed JSON")
	}
	return apperr.Field("body", err.Error())
}

// fieldPath 去掉结构体名前缀：CreateRequest.items[0].quantity -> items[0].quantity
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

var registerOnce sync.Once

// UseJSONFieldNames 让校验错误使用 json 标签名（camelCase）而不是 Go 字段名。
func UseJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}
