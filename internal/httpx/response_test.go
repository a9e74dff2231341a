package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"campus_market/internal/apperr"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
	UseJSONFieldNames()
}

type envelope struct {
	Code   int               `json:"code"`
	Error  string            `json:"error"`
	Msg    string            `json:"msg"`
	Fields map[string]string `json:"fields"`
}

func serve(t *testing.T, h gin.HandlerFunc, body string) (int, envelope) {
	t.Helper()
	r := gin.New()
	r.POST("/x", h)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return w.Code, env
}

func TestErrorEnvelope(t *testing.T) {
	t.Run("typed error", func(t *testing.T) {
		code, env := serve(t, func(c *gin.Context) { Error(c, apperr.InvalidTransition("cannot move")) }, "")
		if code != http.StatusUnprocessableEntity || env.Code != code || env.Error != "INVALID_TRANSITION" || env.Msg != "cannot move" {
			t.Fatalf("got %d %+v", code, env)
		}
	})

	t.Run("internal error hides detail", func(t *testing.T) {
		code, env := serve(t, func(c *gin.Context) { Error(c, errors.New("dial tcp 10.0.0.3:3306: refused")) }, "")
		if code != http.StatusInternalServerError || strings.Contains(env.Msg, "10.0.0.3") {
			t.Fatalf("got %d %+v", code, env)
		}
	})
}

func TestBindError(t *testing.T) {
	type item struct {
		ProductID string `json:"productId" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required,gt=0"`
	}
	type req struct {
		ShopID string `json:"shopId" binding:"required"`
		Items  []item `json:"items" binding:"required,min=1,dive"`
	}
	h := func(c *gin.Context) {
		var r req
		if err := c.ShouldBindJSON(&r); err != nil {
			Error(c, BindError(err))
			return
		}
		OK(c, r)
	}

	code, env := serve(t, h, `{"items":[{"productId":"p1","quantity":-1}]}`)
	if code != http.StatusBadRequest || env.Error != "VALIDATION_ERROR" {
		t.Fatalf("got %d %+v", code, env)
	}
	if env.Fields["shopId"] != "required" || env.Fields["items[0].quantity"] == "" {
		t.Fatalf("fields %+v", env.Fields)
	}

	code, env = serve(t, h, `{"shopId":`)
	if code != http.StatusBadRequest || env.Fields["body"] == "" {
		t.Fatalf("malformed body: %d %+v", code, env)
	}
}
