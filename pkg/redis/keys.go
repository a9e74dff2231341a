package redis

import "fmt"

// RateLimitKey 限流窗口键；subject 为 user:<id> 或 ip:<addr>。
func RateLimitKey(scope, subject string) string {
	return fmt.Sprintf("campus:rate_limit:%s:%s", scope, subject)
}

// NearbyShopsKey 缓存某校区可下单店铺列表。
func NearbyShopsKey(collegeID string) string {
	return fmt.Sprintf("campus:shops:nearby:%s", collegeID)
}

// NearbyShopsPattern 匹配全部校区的店铺缓存，店铺变更时整体失效。
func NearbyShopsPattern() string {
	return "campus:shops:nearby:*"
}

// RevokedSessionKey 标记已登出的会话令牌（jti）。
func RevokedSessionKey(tokenID string) string {
	return fmt.Sprintf("campus:session:revoked:%s", tokenID)
}

// SweepLockKey 多实例部署时只允许一个实例执行过期订单清理。
func SweepLockKey() string {
	return "campus:cleanup:lock"
}
