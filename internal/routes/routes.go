package routes

import (
	"time"

	"github.com/dionfirmansyah/yonsense/internal/handlers"
	"github.com/dionfirmansyah/yonsense/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
)

// Options carries the middleware settings for the v1 group.
type Options struct {
	// JWTSecret enables bearer authentication when set.
	JWTSecret          string
	RedisClient        *redis.Client
	RateLimitPerMinute int
	// CORSOrigins lists browser origins allowed to call the API. Empty allows all.
	CORSOrigins []string
}

// SetupRoutes configures the routes for the application.
func SetupRoutes(
	router *gin.Engine,
	notificationHandler *handlers.NotificationHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	statusHandler *handlers.StatusHandler,
	healthHandler *handlers.HealthHandler,
	opts Options,
) {
	router.Use(corsMiddleware(opts.CORSOrigins))
	router.Use(middleware.CorrelationIDMiddleware())

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "push-gateway",
		Timeout: 30 * time.Second,
	})

	v1 := router.Group("/v1")
	if opts.JWTSecret != "" {
		v1.Use(middleware.AuthMiddleware(opts.JWTSecret))
	}
	if opts.RateLimitPerMinute > 0 {
		v1.Use(middleware.RateLimitMiddleware(opts.RedisClient, opts.RateLimitPerMinute, time.Minute))
	}
	v1.Use(middleware.CircuitBreakerMiddleware(cb))
	{
		notifications := v1.Group("/notifications")
		{
			notifications.POST("/user", notificationHandler.SendToUser)
			notifications.POST("/users", notificationHandler.SendToUsers)
			notifications.POST("/broadcast", notificationHandler.Broadcast)
			notifications.GET("/:request_id/status", statusHandler.GetStatus)
		}

		subscriptions := v1.Group("/subscriptions")
		{
			subscriptions.POST("", subscriptionHandler.Register)
			subscriptions.DELETE("", subscriptionHandler.Unregister)
		}
	}

	// Browsers fetch the key before any user is known.
	router.GET("/v1/push/vapid-public-key", subscriptionHandler.VAPIDPublicKey)

	router.GET("/health", healthHandler.Check)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", middleware.CorrelationIDHeader)
	cfg.ExposeHeaders = []string{middleware.CorrelationIDHeader}
	return cors.New(cfg)
}
