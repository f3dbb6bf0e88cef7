package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/config"
	"github.com/dionfirmansyah/yonsense/internal/handlers"
	"github.com/dionfirmansyah/yonsense/internal/repository"
	"github.com/dionfirmansyah/yonsense/internal/routes"
	"github.com/dionfirmansyah/yonsense/internal/services"
	"github.com/dionfirmansyah/yonsense/pkg/logger"
	"github.com/dionfirmansyah/yonsense/pkg/metrics"
	"github.com/dionfirmansyah/yonsense/pkg/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logr)

	ctx := context.Background()

	// Initialize subscription registry
	registry, err := repository.Open(ctx, cfg)
	if err != nil {
		logr.Error("failed to open subscription registry", slog.String("driver", cfg.RegistryDriver), slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize Redis
	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		logr.Error("failed to configure redis", slog.Any("error", err))
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	redisRepo := repository.NewRedisRepository(redisClient)

	metricsCollector := metrics.New()

	healthChecks := map[string]handlers.Pinger{"registry": registry.Subscriptions}
	if redisClient != nil {
		healthChecks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// Dispatch events are optional.
	var publisher handlers.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqManager, err := rabbitmq.NewManager(cfg.RabbitMQURL, logr)
		if err != nil {
			logr.Error("failed to connect to RabbitMQ", slog.Any("error", err))
			os.Exit(1)
		}
		defer mqManager.Close()

		if err := mqManager.DeclareEventTopology(
			services.EventsExchange,
			map[string]string{"push.dispatched.queue": services.DispatchRoutingKey},
		); err != nil {
			logr.Error("failed to declare rabbitmq topology", slog.Any("error", err))
			os.Exit(1)
		}
		publisher = services.NewPublisher(mqManager.Connection())
		healthChecks["rabbitmq"] = mqManager
	}

	// Initialize services
	dispatches := repository.DispatchLog(registry.Dispatches)
	var idempotency handlers.IdempotencyChecker
	if redisRepo.Enabled() {
		dispatches = repository.NewCachedDispatchLog(registry.Dispatches, redisRepo, cfg.IdempotencyTTL)
		idempotency = services.NewIdempotencyService(redisRepo, cfg.IdempotencyTTL)
	}

	pushClient := services.NewWebPushClient(services.WebPushConfig{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubject,
		TTL:             cfg.PushTTL,
		RatePerSec:      cfg.DeliveryRatePerSec,
	}, logr)

	engine := services.NewEngine(registry.Subscriptions, pushClient, services.EngineConfig{
		DeliveryTimeout: cfg.DeliveryTimeout,
		MaxConcurrent:   cfg.MaxConcurrentDeliveries,
		Payload: services.PayloadOptions{
			MaxBytes:     cfg.MaxPayloadBytes,
			DefaultIcon:  cfg.DefaultIcon,
			DefaultBadge: cfg.DefaultBadge,
		},
	}, logr)
	engine.SetRecorder(metricsCollector)

	sweeper, err := services.NewSweeper(registry.Subscriptions, cfg.SweepSchedule, cfg.SweepInactiveAfter, logr)
	if err != nil {
		logr.Error("failed to schedule subscription sweeper", slog.Any("error", err))
		os.Exit(1)
	}
	sweeper.Start()

	// Initialize handlers
	notificationHandler := handlers.NewNotificationHandler(engine, idempotency, dispatches, publisher, logr)
	subscriptionHandler := handlers.NewSubscriptionHandler(registry.Subscriptions, pushClient.PublicKey(), logr)
	statusHandler := handlers.NewStatusHandler(dispatches)
	healthHandler := handlers.NewHealthHandler(healthChecks)

	// Initialize router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metricsCollector.GinMiddleware())
	router.GET("/metrics", gin.WrapH(metricsCollector.Handler()))

	routes.SetupRoutes(router, notificationHandler, subscriptionHandler, statusHandler, healthHandler, routes.Options{
		JWTSecret:          cfg.JWTSecret,
		RedisClient:        redisClient,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSOrigins:        cfg.CORSAllowedOrigins,
	})
	if cfg.JWTSecret == "" {
		logr.Warn("JWT_SECRET not set, v1 routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logr.Info("push gateway listening", slog.String("addr", srv.Addr), slog.String("registry", cfg.RegistryDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("server listen failed", slog.Any("error", err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down server")

	// In-flight fan-outs finish within the delivery timeout plus cleanup.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DeliveryTimeout+10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", slog.Any("error", err))
	}
	sweeper.Stop(shutdownCtx)
	if err := registry.Subscriptions.Close(shutdownCtx); err != nil {
		logr.Warn("failed to close subscription registry", slog.Any("error", err))
	}

	logr.Info("server exiting")
}

// newRedisClient accepts a redis:// URL or a bare host:port. Empty disables Redis.
func newRedisClient(raw string) (*redis.Client, error) {
	if raw == "" {
		return nil, nil
	}
	if strings.Contains(raw, "://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: raw}), nil
}
