package routes

import (
	"time"

	"cra-notify/internal/api/handlers"
	"cra-notify/internal/api/middleware"
	"cra-notify/internal/models"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers groups everything the router mounts. Built in main.
type Handlers struct {
	WS           *handlers.WSHandler
	Notification *handlers.NotificationHandler
	Announcement *handlers.AnnouncementHandler
	Presence     *handlers.PresenceHandler
	Chat         *handlers.ChatHandler
	Health       *handlers.HealthHandler
}

type Router struct {
	engine      *gin.Engine
	handlers    Handlers
	rateLimitMW *middleware.RateLimitMiddleware
	authMW      *middleware.AuthMiddleware
}

func NewRouter(h Handlers, authMW *middleware.AuthMiddleware, rateLimitMW *middleware.RateLimitMiddleware, allowedOrigins []string) *Router {
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(allowedOrigins))
	engine.Use(middleware.LogApi("/healthz"))

	return &Router{
		engine:      engine,
		handlers:    h,
		rateLimitMW: rateLimitMW,
		authMW:      authMW,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", r.handlers.Health.Healthz)
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.engine.Group("/api/v1")

	// The handshake authenticates itself before upgrading.
	api.GET("/ws",
		r.rateLimitMW.RateLimitIP(30, time.Minute),
		r.handlers.WS.HandleWebSocket,
	)

	auth := api.Group("/")
	auth.Use(r.authMW.RequireAuth())
	{
		notifications := auth.Group("/notifications")
		notifications.Use(r.rateLimitMW.RateLimit(200, time.Minute))
		{
			notifications.GET("", r.handlers.Notification.ListNotifications)
			notifications.POST("", middleware.RequireRole(models.RoleAdmin), r.handlers.Notification.CreateNotification)
			notifications.GET("/unread-count", r.handlers.Notification.GetUnreadCount)
			notifications.PATCH("/read-all", r.handlers.Notification.MarkAllRead)
			notifications.PATCH("/:id/read", r.handlers.Notification.MarkRead)
			notifications.DELETE("/:id", r.handlers.Notification.DeleteNotification)
		}

		auth.POST("/projects/:projectId/notifications",
			r.rateLimitMW.RateLimit(60, time.Minute),
			r.handlers.Notification.NotifyProject,
		)

		auth.POST("/announcements",
			middleware.RequireRole(models.RoleAdmin),
			r.handlers.Announcement.Broadcast,
		)

		realtime := auth.Group("/realtime")
		{
			realtime.GET("/presence/:userId", r.handlers.Presence.GetPresence)
			realtime.GET("/stats", middleware.RequireRole(models.RoleAdmin), r.handlers.Presence.GetStats)
		}

		chat := auth.Group("/chat")
		chat.Use(r.rateLimitMW.RateLimit(200, time.Minute))
		{
			chat.GET("/channels/:channelId/messages", r.handlers.Chat.ListMessages)
			chat.POST("/channels/:channelId/messages", r.handlers.Chat.PostMessage)
			chat.PUT("/channels/:channelId", r.handlers.Chat.RenameChannel)
			chat.PUT("/messages/:messageId", r.handlers.Chat.EditMessage)
			chat.DELETE("/messages/:messageId", r.handlers.Chat.DeleteMessage)
			chat.POST("/messages/:messageId/reactions", r.handlers.Chat.AddReaction)
			chat.DELETE("/messages/:messageId/reactions/:emoji", r.handlers.Chat.RemoveReaction)
		}
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
