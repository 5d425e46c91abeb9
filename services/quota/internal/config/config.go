package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	base "github.com/Usama125/ResumeAgentAI-sub000/libs/config"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/limiter"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	// AuthFailureAnonymous treats a request with unresolvable credentials as anonymous.
	AuthFailureAnonymous = "anonymous"
	// AuthFailureReject answers 401 instead.
	AuthFailureReject = "reject"
)

type ClassLimits struct {
	Anonymous     int
	Authenticated int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type QuotaConfig struct {
	LookbackHours     int
	Classes           map[string]ClassLimits
	Store             string
	StoreTimeout      time.Duration
	TrustProxy        bool
	AuthFailurePolicy string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Buffer  int
}

type Config struct {
	App          base.AppConfig
	Quota        QuotaConfig
	Redis        RedisConfig
	DB           DBConfig
	Kafka        KafkaConfig
	JWTSecret    string
	OTLPEndpoint string
}

func Load() (*Config, error) {
	v, err := base.New(os.Getenv("QUOTA_CONFIG"))
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	app, err := base.FromViper(v)
	if err != nil {
		return nil, err
	}

	// Read key by key: UnmarshalKey on a parent block ignores env overrides of its leaves.
	cfg := &Config{
		App: *app,
		Quota: QuotaConfig{
			LookbackHours:     v.GetInt("quota.lookback_hours"),
			Classes:           make(map[string]ClassLimits, len(limiter.Classes)),
			Store:             strings.ToLower(v.GetString("quota.store")),
			StoreTimeout:      v.GetDuration("quota.store_timeout"),
			TrustProxy:        v.GetBool("quota.trust_proxy"),
			AuthFailurePolicy: strings.ToLower(v.GetString("quota.auth_failure_policy")),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		DB: DBConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetInt("postgres.port"),
			Name:     v.GetString("postgres.name"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			SSLMode:  v.GetString("postgres.sslmode"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetStringSlice("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
			Buffer:  v.GetInt("kafka.buffer"),
		},
		JWTSecret:    v.GetString("auth.jwt_secret"),
		OTLPEndpoint: v.GetString("otel.endpoint"),
	}

	// A file that names one class hides the defaults of the others from GetStringMap.
	names := make(map[string]struct{})
	for _, c := range limiter.Classes {
		names[string(c)] = struct{}{}
	}
	for name := range v.GetStringMap("quota.classes") {
		names[name] = struct{}{}
	}
	for name := range names {
		cfg.Quota.Classes[name] = ClassLimits{
			Anonymous:     v.GetInt("quota.classes." + name + ".anonymous"),
			Authenticated: v.GetInt("quota.classes." + name + ".authenticated"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would otherwise only surface mid-request.
func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	switch c.Quota.Store {
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr is required for the redis store", ErrInvalidConfig)
		}
	case StorePostgres:
		if c.DB.Host == "" {
			return fmt.Errorf("%w: postgres.host is required for the postgres store", ErrInvalidConfig)
		}
	case StoreMemory:
		if !c.App.IsDev() {
			return fmt.Errorf("%w: the memory store is only allowed in dev and test", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Quota.Store)
	}

	switch c.Quota.AuthFailurePolicy {
	case AuthFailureAnonymous, AuthFailureReject:
	default:
		return fmt.Errorf("%w: unknown auth_failure_policy %q", ErrInvalidConfig, c.Quota.AuthFailurePolicy)
	}

	if c.Quota.StoreTimeout < 0 {
		return fmt.Errorf("%w: store_timeout must not be negative", ErrInvalidConfig)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("%w: kafka.topic is required when brokers are set", ErrInvalidConfig)
	}
	if c.JWTSecret == "" && !c.App.IsDev() {
		return fmt.Errorf("%w: auth.jwt_secret must be set", ErrInvalidConfig)
	}
	return nil
}

// Policy converts the quota block into the engine policy.
func (c *Config) Policy() (limiter.Policy, error) {
	limits := make(map[limiter.Class]limiter.Limits, len(c.Quota.Classes))
	for name, l := range c.Quota.Classes {
		class, err := limiter.ParseClass(name)
		if err != nil {
			return limiter.Policy{}, err
		}
		limits[class] = limiter.Limits{Anonymous: l.Anonymous, Authenticated: l.Authenticated}
	}
	p := limiter.Policy{
		Limits:   limits,
		Lookback: time.Duration(c.Quota.LookbackHours) * time.Hour,
	}
	if err := p.Validate(); err != nil {
		return limiter.Policy{}, err
	}
	return p, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "quota-service")
	v.SetDefault("quota.lookback_hours", 24)
	v.SetDefault("quota.classes.job_matching.anonymous", 3)
	v.SetDefault("quota.classes.job_matching.authenticated", 20)
	v.SetDefault("quota.classes.chat.anonymous", 10)
	v.SetDefault("quota.classes.chat.authenticated", 100)
	v.SetDefault("quota.classes.content_generation.anonymous", 3)
	v.SetDefault("quota.classes.content_generation.authenticated", 30)
	v.SetDefault("quota.store", StoreRedis)
	v.SetDefault("quota.store_timeout", "250ms")
	v.SetDefault("quota.trust_proxy", false)
	v.SetDefault("quota.auth_failure_policy", AuthFailureAnonymous)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "quota:rl:")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.name", "quota")
	v.SetDefault("postgres.user", "quota")
	v.SetDefault("postgres.password", "quota")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "quota.denied")
	v.SetDefault("kafka.buffer", 256)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("otel.endpoint", "")
}
