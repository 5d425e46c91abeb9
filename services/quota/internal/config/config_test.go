package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	base "github.com/Usama125/ResumeAgentAI-sub000/libs/config"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/limiter"
)

func load(t *testing.T, body string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if body != "" {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	v, err := base.New(path)
	if err != nil {
		t.Fatalf("viper: %v", err)
	}
	return FromViper(v)
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Quota.Store != StoreRedis || cfg.Redis.Addr == "" {
		t.Fatalf("expected redis store by default, got %+v %+v", cfg.Quota, cfg.Redis)
	}
	if cfg.Quota.AuthFailurePolicy != AuthFailureAnonymous {
		t.Fatalf("expected anonymous fallback by default, got %q", cfg.Quota.AuthFailurePolicy)
	}
	if cfg.Quota.TrustProxy {
		t.Fatalf("X-Forwarded-For must not be trusted unless configured")
	}
	if cfg.Quota.StoreTimeout != 250*time.Millisecond {
		t.Fatalf("expected 250ms store timeout, got %s", cfg.Quota.StoreTimeout)
	}

	policy, err := cfg.Policy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if policy.Lookback != 24*time.Hour {
		t.Fatalf("expected 24h lookback, got %s", policy.Lookback)
	}
	if got := policy.Limits[limiter.JobMatching]; got.Anonymous != 3 || got.Authenticated != 20 {
		t.Fatalf("unexpected job_matching limits %+v", got)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Fatalf("expected kafka disabled by default, got %v", cfg.Kafka.Brokers)
	}
}

func TestFileAndEnvOverrides(t *testing.T) {
	t.Setenv("QUOTA_QUOTA_CLASSES_CHAT_ANONYMOUS", "7")
	t.Setenv("QUOTA_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("QUOTA_QUOTA_AUTH_FAILURE_POLICY", "reject")

	cfg, err := load(t, `
quota:
  lookback_hours: 12
  store: memory
  classes:
    job_matching:
      anonymous: 5
      authenticated: 50
`)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	policy, err := cfg.Policy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if policy.Lookback != 12*time.Hour {
		t.Fatalf("expected 12h lookback, got %s", policy.Lookback)
	}
	if got := policy.Limits[limiter.JobMatching]; got.Anonymous != 5 || got.Authenticated != 50 {
		t.Fatalf("expected file limits, got %+v", got)
	}
	if got := policy.Limits[limiter.Chat]; got.Anonymous != 7 || got.Authenticated != 100 {
		t.Fatalf("expected env override for chat, got %+v", got)
	}
	if cfg.Quota.Store != StoreMemory {
		t.Fatalf("expected memory store, got %q", cfg.Quota.Store)
	}
	if cfg.Quota.AuthFailurePolicy != AuthFailureReject {
		t.Fatalf("expected reject policy, got %q", cfg.Quota.AuthFailurePolicy)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"zero limit":        "quota:\n  classes:\n    chat:\n      anonymous: 0\n",
		"negative limit":    "quota:\n  classes:\n    chat:\n      authenticated: -1\n",
		"zero lookback":     "quota:\n  lookback_hours: 0\n",
		"unknown class":     "quota:\n  classes:\n    image_upload:\n      anonymous: 1\n      authenticated: 1\n",
		"unknown store":     "quota:\n  store: dynamo\n",
		"unknown policy":    "quota:\n  auth_failure_policy: maybe\n",
		"memory in prod":    "env: prod\nauth:\n  jwt_secret: s\nquota:\n  store: memory\n",
		"prod without jwt":  "env: prod\n",
		"brokers, no topic": "kafka:\n  brokers: [k1:9092]\n  topic: \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(t, body)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: 5433, Name: "quota", User: "u", Password: "p", SSLMode: "disable"}
	want := "postgres://u:p@db:5433/quota?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
