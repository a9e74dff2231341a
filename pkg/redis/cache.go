package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// GetJSON 读取 JSON 缓存；found=false 表示未命中。
func GetJSON(ctx context.Context, rdb *rd.Client, key string, dst any) (bool, error) {
	b, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, rd.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode cache %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, rdb *rd.Client, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err()
}

// DeletePattern 按模式删除缓存键（SCAN，避免 KEYS 阻塞）。
func DeletePattern(ctx context.Context, rdb *rd.Client, pattern string) error {
	iter := rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}
