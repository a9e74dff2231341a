package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campus_market/internal/auth"
	"campus_market/internal/testutil"
	rediskey "campus_market/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRedis(t *testing.T) *rd.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisRateLimit(t *testing.T) {
	rdb := newRedis(t)
	r := gin.New()
	r.POST("/orders", RedisRateLimit(rdb, "orders", 2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := hit("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: %d", i, code)
		}
	}
	if code := hit("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("third request: %d", code)
	}
	if code := hit("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("other client limited: %d", code)
	}
}

func TestRedisRateLimitFailsOpen(t *testing.T) {
	rdb := rd.NewClient(&rd.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.GET("/x", RedisRateLimit(rdb, "x", 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.Seed(t, db)
	rdb := newRedis(t)
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)

	r := gin.New()
	r.GET("/me", Authenticate(issuer, auth.NewResolver(db), rdb), func(c *gin.Context) {
		c.String(http.StatusOK, SessionFrom(c).UserID)
	})
	r.GET("/admin", Authenticate(issuer, auth.NewResolver(db), rdb), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token, claims, err := issuer.Issue(f.StudentUser.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	do := func(path string, mod func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if mod != nil {
			mod(req)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("no token", func(t *testing.T) {
		if w := do("/me", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("got %d", w.Code)
		}
	})

	t.Run("cookie", func(t *testing.T) {
		w := do("/me", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token}) })
		if w.Code != http.StatusOK || w.Body.String() != f.StudentUser.ID {
			t.Fatalf("got %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("bearer", func(t *testing.T) {
		w := do("/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })
		if w.Code != http.StatusOK {
			t.Fatalf("got %d", w.Code)
		}
	})

	t.Run("tampered", func(t *testing.T) {
		w := do("/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token+"x") })
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got %d", w.Code)
		}
	})

	t.Run("non admin", func(t *testing.T) {
		w := do("/admin", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })
		if w.Code != http.StatusForbidden {
			t.Fatalf("got %d", w.Code)
		}
	})

	t.Run("revoked", func(t *testing.T) {
		if err := rediskey.RevokeSession(context.Background(), rdb, claims.ID, time.Hour); err != nil {
			t.Fatalf("RevokeSession: %v", err)
		}
		w := do("/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got %d", w.Code)
		}
	})
}
