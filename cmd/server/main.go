package main

// @title           CRA Saint-Louis Realtime API
// @version         1.0
// @description     Realtime notification and chat gateway of the CRA Saint-Louis research platform
// @host            localhost:8080
// @BasePath        /api/v1
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "cra-notify/docs"
	"cra-notify/internal/adapters/kafka"
	"cra-notify/internal/api/handlers"
	"cra-notify/internal/api/middleware"
	"cra-notify/internal/api/routes"
	"cra-notify/internal/auth"
	"cra-notify/internal/config"
	"cra-notify/internal/database"
	"cra-notify/internal/repositories/postgres"
	"cra-notify/internal/services"
	"cra-notify/internal/websocket"

	"github.com/gin-gonic/gin"
)

type closablePublisher interface {
	services.EventPublisher
	Close() error
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger := config.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	slog.Info("Starting realtime gateway")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Redis is optional: without it there is no presence mirror and no rate limiting.
	var (
		mirror  websocket.PresenceMirror
		limiter middleware.RateLimiter
		status  handlers.StatusLookup
	)
	checks := map[string]handlers.Pinger{"postgres": database.PostgresPinger{DB: db}}
	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, running without presence mirror and rate limiting", "error", err)
	} else {
		defer redisClient.Close()
		redisService := services.NewRedisService(redisClient)
		// A previous process may have died without marking its users offline.
		if err := redisService.ClearOnlineUsers(ctx); err != nil {
			slog.Warn("Failed to reset mirrored presence", "error", err)
		}
		if state, err := redisService.GetMigrationState(ctx); err != nil {
			slog.Warn("Failed to read migration state", "error", err)
		} else if state["status"] != "ready" {
			slog.Warn("Schema migration not marked ready, run cmd/migrate", "state", state)
		} else {
			slog.Info("Schema migration state", "version", state["version"])
		}
		mirror, limiter, status = redisService, redisService, redisService
		checks["redis"] = redisClient
	}

	var publisher closablePublisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled() {
		producer, err := kafka.InitKafkaProducer(cfg.Kafka)
		if err != nil {
			slog.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		publisher = kafka.NewNotificationPublisher(producer, cfg.Kafka.Topic, logger)
	}
	defer publisher.Close()

	userRepo := postgres.NewUserRepository(db)
	projectRepo := postgres.NewProjectRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	chatRepo := postgres.NewChatRepository(db)

	hubOpts := []websocket.Option{
		websocket.WithLogger(logger),
		websocket.WithChannelMembership(chatRepo),
		websocket.WithSendBuffer(cfg.WebSocket.SendBufferSize),
		websocket.WithMaxMessageSize(cfg.WebSocket.MaxMessageSize),
	}
	if mirror != nil {
		hubOpts = append(hubOpts, websocket.WithPresenceMirror(mirror))
	}
	hub := websocket.NewHub(notificationRepo, projectRepo, hubOpts...)
	go hub.Run(ctx)

	notificationService := services.NewNotificationService(notificationRepo, projectRepo, hub, publisher, logger)
	chatService := services.NewChatService(chatRepo, hub, notificationService, logger)

	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpirationTime, cfg.JWT.Issuer)
	authenticator := auth.NewAuthenticator(tokens, userRepo, cfg.JWT.CookieName)

	gin.SetMode(gin.ReleaseMode)
	router := routes.NewRouter(
		routes.Handlers{
			WS:           handlers.NewWSHandler(hub, authenticator, websocket.NewUpgrader(cfg.Server.AllowedOrigins), logger),
			Notification: handlers.NewNotificationHandler(notificationService, logger),
			Announcement: handlers.NewAnnouncementHandler(hub),
			Presence:     handlers.NewPresenceHandler(hub, status, logger),
			Chat:         handlers.NewChatHandler(chatService, logger),
			Health:       handlers.NewHealthHandler(checks),
		},
		middleware.NewAuthMiddleware(tokens, cfg.JWT.CookieName),
		middleware.NewRateLimitMiddleware(limiter, logger),
		cfg.Server.AllowedOrigins,
	)
	router.SetupRoutes()

	go runCleanup(ctx, notificationService, cfg.Notification)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Hijacked sockets are not tracked by Shutdown, so the hub closes them.
	hub.Stop()
	stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}

// runCleanup deletes read notifications past the retention period.
func runCleanup(ctx context.Context, notifications *services.NotificationService, cfg config.NotificationConfig) {
	if cfg.RetentionDays <= 0 || cfg.CleanupInterval <= 0 {
		return
	}
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := notifications.CleanupOlderThan(ctx, retention); err != nil {
				slog.Error("Notification cleanup failed", "error", err)
			}
		}
	}
}
