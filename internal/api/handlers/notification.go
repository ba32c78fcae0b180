package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"cra-notify/internal/api/middleware"
	"cra-notify/internal/models"
	"cra-notify/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
	logger              *slog.Logger
}

func NewNotificationHandler(notificationService *services.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, logger: logger}
}

// ListNotifications godoc
// @Summary List notifications
// @Description Paged notifications of the current user, newest first
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Param unread query bool false "Only unread notifications"
// @Success 200 {object} models.NotificationListResponse
// @Failure 401 {object} response.ErrorBody
// @Router /notifications [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))

	resp, err := h.notificationService.List(c.Request.Context(), models.NotificationFilter{
		ReceiverID: middleware.UserID(c),
		UnreadOnly: unreadOnly,
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetUnreadCount godoc
// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UnreadCountResponse
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.notificationService.UnreadCount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.UnreadCountResponse{Count: count})
}

// MarkRead godoc
// @Summary Mark one notification read
// @Description Also pushes the new unread count to every connected device of the user
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} models.NotificationResponse
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	n, err := h.notificationService.MarkRead(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, n.ToResponse())
}

// MarkAllRead godoc
// @Summary Mark every notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Router /notifications/read-all [patch]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.notificationService.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// DeleteNotification godoc
// @Summary Delete a notification
// @Tags notifications
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	if err := h.notificationService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateNotification godoc
// @Summary Create and push a notification
// @Description Used by the platform services with an ADMIN token. The notification is stored first, then pushed to the receiver's sockets.
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateNotificationRequest true "Notification"
// @Success 201 {object} models.NotificationResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /notifications [post]
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req models.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	// only admins may attribute a notification to someone else
	if req.SenderID == nil || middleware.Role(c) != models.RoleAdmin {
		sender := middleware.UserID(c)
		req.SenderID = &sender
	}

	n, err := h.notificationService.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, n.ToResponse())
}

type notifyProjectRequest struct {
	Title      string                  `json:"title" binding:"required,max=255"`
	Message    string                  `json:"message" binding:"required"`
	Type       models.NotificationType `json:"type" binding:"required"`
	ActionURL  *string                 `json:"actionUrl,omitempty"`
	EntityType *string                 `json:"entityType,omitempty"`
	EntityID   *string                 `json:"entityId,omitempty"`
}

// NotifyProject godoc
// @Summary Notify every project member except the caller
// @Description The caller must be a project member or an admin.
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Success 201 {object} map[string]int
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /projects/{projectId}/notifications [post]
func (h *NotificationHandler) NotifyProject(c *gin.Context) {
	var req notifyProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	items, err := h.notificationService.NotifyProject(c.Request.Context(), c.Param("projectId"), services.Actor{ID: middleware.UserID(c), Role: middleware.Role(c)}, services.NotificationTemplate{
		Title:      req.Title,
		Message:    req.Message,
		Type:       req.Type,
		ActionURL:  req.ActionURL,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": len(items)})
}
