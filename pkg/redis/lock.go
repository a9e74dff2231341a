package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaReleaseLockIfMatch 仅当锁值匹配持有者 token 时才删除，避免误删其他实例的锁。
const luaReleaseLockIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// TryLock SET NX PX 抢占锁；ok=false 表示已被其他持有者占用。
func TryLock(ctx context.Context, rdb *rd.Client, key, token string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, token, ttl).Result()
}

// ReleaseLockIfMatch 安全释放锁。
func ReleaseLockIfMatch(ctx context.Context, rdb *rd.Client, key, token string) error {
	_, err := rdb.Eval(ctx, luaReleaseLockIfMatch, []string{key}, token).Int()
	return err
}
