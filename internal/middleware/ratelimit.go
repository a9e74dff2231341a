package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"campus_market/internal/apperr"
	"campus_market/internal/httpx"
	rediskey "campus_market/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit：Redis 滑动窗口限流 Lua 脚本（原子操作）
// KEYS[1]=限流key，ARGV[1]=当前时间戳(ms)，ARGV[2]=窗口开始时间戳(ms)，ARGV[3]=窗口秒数，ARGV[4]=成员，ARGV[5]=上限
// 返回：当前窗口内的请求数（超限返回 -1）
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

-- 删除窗口外的旧记录
redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

-- 统计当前窗口内的请求数
local count = redis.call('ZCARD', key)

-- 添加当前请求（如果还没超限）
if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit Redis 分布式限流（Lua 原子操作），按登录用户计数，未登录时按 IP。
// 需挂在 Authenticate 之后才能拿到用户。
func RedisRateLimit(rdb *rd.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if s := SessionFrom(c); s.UserID != "" {
			subject = "user:" + s.UserID
		}
		key := rediskey.RateLimitKey(scope, subject)

		now := time.Now()
		nowMs := now.UnixMilli()
		windowSec := int64(window / time.Second)
		if windowSec < 1 {
			windowSec = 1
		}
		windowStart := nowMs - window.Milliseconds()
		member := fmt.Sprintf("%d-%d", nowMs, now.UnixNano())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			nowMs, windowStart, windowSec, member, limit).Int()
		if err != nil {
			// Redis 出错时放行（降级策略）
			slog.WarnContext(c.Request.Context(), "rate limit check failed", slog.String("key", key), slog.Any("err", err))
			c.Next()
			return
		}

		if res < 0 {
			httpx.Abort(c, apperr.RateLimited("too many requests, please slow down"))
			return
		}
		c.Next()
	}
}
