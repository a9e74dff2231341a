package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// RevokeSession 吊销令牌，TTL 取令牌剩余有效期，过期后键自动清理。
func RevokeSession(ctx context.Context, rdb *rd.Client, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return nil
	}
	if ttl <= 0 {
		// 令牌已过期，无需记录
		return nil
	}
	return rdb.Set(ctx, RevokedSessionKey(tokenID), "1", ttl).Err()
}

// IsSessionRevoked 查询令牌是否已登出。
func IsSessionRevoked(ctx context.Context, rdb *rd.Client, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	err := rdb.Get(ctx, RevokedSessionKey(tokenID)).Err()
	if errors.Is(err, rd.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
