package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	AppEnv   string
	LogLevel string

	// 数据库：sqlite / mysql / postgres
	DBDriver string
	DBDSN    string

	RedisAddr string
	RedisDB   int

	// 订单事件：API 写 Redis Stream，Relay 转发 Kafka，Consumer 落时间线
	EventsEnabled      bool
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroupID       string
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	// 会话
	JWTSecret  string
	SessionTTL time.Duration

	// 下单接口限流与店铺列表缓存
	OrderRateLimit  int
	OrderRateWindow time.Duration
	ShopCacheTTL    time.Duration

	// 支付凭证上传
	UploadDir      string
	UploadMaxBytes int64

	// 过期订单清理
	OrderRetention  time.Duration
	CleanupInterval time.Duration
	CronSecret      string
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		AppEnv:             getEnv("APP_ENV", "dev"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:              getEnv("DB_DSN", "campus_market.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		EventsEnabled:      true,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "campus-order-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "campus-order-timeline"),
		OrderEventStream:   getEnv("ORDER_EVENT_STREAM", "campus:order_events"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "campus-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "campus-relay-1"),
		SessionTTL:         7 * 24 * time.Hour,
		OrderRateLimit:     30,
		OrderRateWindow:    time.Minute,
		ShopCacheTTL:       5 * time.Minute,
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		UploadMaxBytes:     5 << 20,
		OrderRetention:     7 * 24 * time.Hour,
		CleanupInterval:    time.Hour,
		CronSecret:         getEnv("CRON_SECRET", ""),
	}

	switch cfg.DBDriver {
	case "sqlite", "mysql", "postgres":
	default:
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be one of sqlite, mysql, postgres, got %q", cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		return AppConfig{}, fmt.Errorf("DB_DSN must not be empty")
	}

	secret, err := getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", "")
	if err != nil {
		return AppConfig{}, err
	}
	cfg.JWTSecret = secret

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	events, err := getEnvBool("EVENTS_ENABLED", cfg.EventsEnabled)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid EVENTS_ENABLED: %w", err)
	}
	cfg.EventsEnabled = events

	if cfg.JWTSecret == "" {
		if cfg.AppEnv != "dev" {
			return AppConfig{}, fmt.Errorf("JWT_SECRET must be set outside dev")
		}
		cfg.JWTSecret = "dev-insecure-session-secret"
	}

	ttlHour, err := getEnvInt("SESSION_TTL_HOUR", int(cfg.SessionTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SESSION_TTL_HOUR: %w", err)
	}
	if ttlHour <= 0 {
		return AppConfig{}, fmt.Errorf("SESSION_TTL_HOUR must be > 0")
	}
	cfg.SessionTTL = time.Duration(ttlHour) * time.Hour

	rateLimit, err := getEnvInt("ORDER_RATE_LIMIT", cfg.OrderRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_LIMIT must be > 0")
	}
	cfg.OrderRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("ORDER_RATE_WINDOW_SEC", int(cfg.OrderRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_WINDOW_SEC must be > 0")
	}
	cfg.OrderRateWindow = time.Duration(rateWindowSec) * time.Second

	cacheSec, err := getEnvInt("SHOP_CACHE_TTL_SEC", int(cfg.ShopCacheTTL.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SHOP_CACHE_TTL_SEC: %w", err)
	}
	if cacheSec <= 0 {
		return AppConfig{}, fmt.Errorf("SHOP_CACHE_TTL_SEC must be > 0")
	}
	cfg.ShopCacheTTL = time.Duration(cacheSec) * time.Second

	maxMB, err := getEnvInt("UPLOAD_MAX_MB", int(cfg.UploadMaxBytes>>20))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid UPLOAD_MAX_MB: %w", err)
	}
	if maxMB <= 0 {
		return AppConfig{}, fmt.Errorf("UPLOAD_MAX_MB must be > 0")
	}
	cfg.UploadMaxBytes = int64(maxMB) << 20

	retentionDays, err := getEnvInt("ORDER_RETENTION_DAYS", int(cfg.OrderRetention.Hours()/24))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RETENTION_DAYS: %w", err)
	}
	if retentionDays <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RETENTION_DAYS must be > 0")
	}
	cfg.OrderRetention = time.Duration(retentionDays) * 24 * time.Hour

	intervalMin, err := getEnvInt("CLEANUP_INTERVAL_MIN", int(cfg.CleanupInterval.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CLEANUP_INTERVAL_MIN: %w", err)
	}
	if intervalMin < 0 {
		return AppConfig{}, fmt.Errorf("CLEANUP_INTERVAL_MIN must be >= 0")
	}
	// 0 表示关闭后台清理，只保留 cron 接口
	cfg.CleanupInterval = time.Duration(intervalMin) * time.Minute

	if cfg.EventsEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
		}
		if cfg.KafkaTopic == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
		}
		if cfg.KafkaGroupID == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
		}
		if cfg.OrderEventStream == "" {
			return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM must not be empty")
		}
		if cfg.OrderEventGroup == "" {
			return AppConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
		}
		if cfg.OrderEventConsumer == "" {
			return AppConfig{}, fmt.Errorf("ORDER_EVENT_CONSUMER must not be empty")
		}
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvFromFile 优先读取 *_FILE 指向的文件（docker secret），其次读环境变量。
// 设置了 *_FILE 但文件读不到时报错，不回落到环境变量。
func getEnvFromFile(fileKey, envKey, fallback string) (string, error) {
	if path := strings.TrimSpace(os.Getenv(fileKey)); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", fileKey, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return getEnv(envKey, fallback), nil
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
