package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Usama125/ResumeAgentAI-sub000/libs/auth"
	"github.com/Usama125/ResumeAgentAI-sub000/libs/health"
	"github.com/Usama125/ResumeAgentAI-sub000/libs/httpmiddleware"
	"github.com/Usama125/ResumeAgentAI-sub000/libs/kafka"
	"github.com/Usama125/ResumeAgentAI-sub000/libs/logging"
	"github.com/Usama125/ResumeAgentAI-sub000/libs/metrics"
	"github.com/Usama125/ResumeAgentAI-sub000/libs/trace"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/config"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/events"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/handlers"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/limiter"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/service"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// store is a WindowStore that can also be probed for readiness.
type store interface {
	limiter.WindowStore
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)
	shutdownTracer, err := trace.InitTracer(cfg.App.ServiceName, cfg.App.Env, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("tracer init failed", "error", err)
	} else {
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTP(registry)
	quotaMetrics := service.NewMetrics(registry)

	policy, err := cfg.Policy()
	if err != nil {
		logger.Error("quota policy invalid", "error", err)
		os.Exit(1)
	}

	windows, closeStore, err := buildStore(cfg, policy.Lookback, logger)
	if err != nil {
		logger.Error("quota store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	engine, err := limiter.NewEngine(windows, policy, logger)
	if err != nil {
		logger.Error("quota engine init failed", "error", err)
		os.Exit(1)
	}
	engine.Observer = quotaMetrics
	engine.StoreTimeout = cfg.Quota.StoreTimeout

	quotaHandler := handlers.NewQuotaHandler(engine, auth.NewResolver(cfg.JWTSecret), logger, cfg.Quota.TrustProxy, cfg.Quota.AuthFailurePolicy)
	quotaHandler.OnAuthFallback = func(policy string) {
		quotaMetrics.AuthFallbacks.WithLabelValues(policy).Inc()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, logger, kafka.NewProducerMetrics(registry))
		if err != nil {
			logger.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		emitter := events.NewEmitter(producer, cfg.Kafka.Topic, cfg.Kafka.Buffer, logger, quotaMetrics.EventsDropped.Inc)
		defer func() {
			if err := emitter.Close(); err != nil {
				logger.Error("denial emitter close failed", "error", err)
			}
		}()
		quotaHandler.Denials = emitter
	} else {
		logger.Info("kafka brokers not configured, denial events disabled")
	}

	ready := health.NewManager(true)
	ready.AddProbe(cfg.Quota.Store, windows.Ping)

	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger, httpMetrics))
	router.Use(httpmiddleware.Recovery(logger))
	router.Use(trace.Middleware(cfg.App.ServiceName))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	quotaHandler.RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("quota service starting", "addr", addr, "store", cfg.Quota.Store)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(server, ready, logger)
}

func buildStore(cfg *config.Config, lookback time.Duration, logger *slog.Logger) (store, func(), error) {
	switch cfg.Quota.Store {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			if cfg.App.IsDev() {
				logger.Warn("redis quota store unavailable, falling back to memory", "error", err)
				return storage.NewMemory(), func() {}, nil
			}
			return nil, nil, err
		}
		return storage.NewRedisStore(client, cfg.Redis.Prefix, lookback), func() { _ = client.Close() }, nil

	case config.StorePostgres:
		pool, err := connectDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		pg := storage.NewPostgresStore(pool)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return pg, pool.Close, nil

	case config.StoreMemory:
		return storage.NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown quota store %q", cfg.Quota.Store)
}

func connectDB(cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func waitForShutdown(server *http.Server, ready *health.Manager, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ready.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutdown started")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		return
	}
	logger.Info("shutdown complete")
}
