package handlers

import (
	"net/http"
	"time"

	"cra-notify/internal/websocket"

	"github.com/gin-gonic/gin"
)

type AnnouncementHandler struct {
	hub *websocket.Hub
}

func NewAnnouncementHandler(hub *websocket.Hub) *AnnouncementHandler {
	return &AnnouncementHandler{hub: hub}
}

type announcementRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Message string `json:"message" binding:"required"`
	Level   string `json:"level" binding:"omitempty,oneof=info warning critical"`
}

// Broadcast godoc
// @Summary Platform-wide announcement
// @Description Pushes an `announcement` event to every connected socket. Nothing is stored.
// @Tags realtime
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 202 {object} map[string]int
// @Failure 403 {object} response.ErrorBody
// @Router /announcements [post]
func (h *AnnouncementHandler) Broadcast(c *gin.Context) {
	var req announcementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	delivered := h.hub.BroadcastToAll(websocket.Announcement{
		Title:     req.Title,
		Message:   req.Message,
		Level:     req.Level,
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusAccepted, gin.H{"delivered": delivered})
}
