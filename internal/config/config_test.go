package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_SECRET_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.SessionTTL != 7*24*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.OrderRetention != 7*24*time.Hour {
		t.Errorf("OrderRetention = %v", cfg.OrderRetention)
	}
	if cfg.JWTSecret == "" {
		t.Error("dev env should fall back to a development secret")
	}
	if cfg.UploadMaxBytes != 5<<20 {
		t.Errorf("UploadMaxBytes = %d", cfg.UploadMaxBytes)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":       {"DB_DRIVER": "oracle"},
		"non-numeric redis db": {"REDIS_DB": "x"},
		"zero rate limit":      {"ORDER_RATE_LIMIT": "0"},
		"negative interval":    {"CLEANUP_INTERVAL_MIN": "-1"},
		"missing prod secret":  {"APP_ENV": "prod", "JWT_SECRET": ""},
		"empty kafka brokers":  {"KAFKA_BROKERS": " , "},
		"bad events flag":      {"EVENTS_ENABLED": "maybe"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %v", env)
			}
		})
	}
}

func TestLoadEventsDisabledSkipsKafkaChecks(t *testing.T) {
	t.Setenv("EVENTS_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", ",")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EventsEnabled {
		t.Fatal("EventsEnabled should be false")
	}
}

func TestLoadSecretFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("  from-file \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET_FILE", path)
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWTSecret != "from-file" {
		t.Fatalf("JWTSecret = %q, want from-file", cfg.JWTSecret)
	}
}

func TestLoadSecretFileMissing(t *testing.T) {
	t.Setenv("JWT_SECRET_FILE", filepath.Join(t.TempDir(), "absent"))
	t.Setenv("JWT_SECRET", "from-env")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET_FILE") {
		t.Fatalf("Load err = %v, want JWT_SECRET_FILE read error", err)
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a:1 ,, b:2 ,")
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Fatalf("splitCSV = %v", got)
	}
}
