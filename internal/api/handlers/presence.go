package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cra-notify/internal/services"
	"cra-notify/internal/websocket"

	"github.com/gin-gonic/gin"
)

// StatusLookup exposes the mirrored status kept in Redis.
type StatusLookup interface {
	GetUserStatus(ctx context.Context, userID string) (*services.UserStatus, error)
	GetOnlineUsers(ctx context.Context) ([]string, error)
}

type PresenceHandler struct {
	hub    *websocket.Hub
	status StatusLookup
	logger *slog.Logger
}

// NewPresenceHandler accepts a nil status lookup when Redis is not configured.
func NewPresenceHandler(hub *websocket.Hub, status StatusLookup, logger *slog.Logger) *PresenceHandler {
	return &PresenceHandler{hub: hub, status: status, logger: logger}
}

type presenceResponse struct {
	UserID   string `json:"userId"`
	Online   bool   `json:"online"`
	Sockets  int    `json:"sockets"`
	LastSeen string `json:"lastSeen,omitempty"`
}

// GetPresence godoc
// @Summary Presence of a user on this instance
// @Description Diagnostic only; delivery never depends on it
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} presenceResponse
// @Router /realtime/presence/{userId} [get]
func (h *PresenceHandler) GetPresence(c *gin.Context) {
	userID := c.Param("userId")
	resp := presenceResponse{
		UserID:  userID,
		Online:  h.hub.IsUserOnline(userID),
		Sockets: h.hub.SocketCount(userID),
	}

	if h.status != nil && !resp.Online {
		status, err := h.status.GetUserStatus(c.Request.Context(), userID)
		if err != nil {
			h.logger.Warn("Failed to read mirrored status", "userID", userID, "error", err)
		} else if !status.LastSeen.IsZero() {
			resp.LastSeen = status.LastSeen.Format(time.RFC3339)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// GetStats godoc
// @Summary Connection counters of this instance
// @Description mirroredOnlineUsers is the size of the Redis online set and is omitted without Redis
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int
// @Router /realtime/stats [get]
func (h *PresenceHandler) GetStats(c *gin.Context) {
	stats := gin.H{
		"sockets":     h.hub.ClientCount(),
		"onlineUsers": len(h.hub.OnlineUsers()),
	}
	if h.status != nil {
		mirrored, err := h.status.GetOnlineUsers(c.Request.Context())
		if err != nil {
			h.logger.Warn("Failed to read mirrored online users", "error", err)
		} else {
			stats["mirroredOnlineUsers"] = len(mirrored)
		}
	}
	c.JSON(http.StatusOK, stats)
}
