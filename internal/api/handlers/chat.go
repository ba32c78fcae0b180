package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cra-notify/internal/api/middleware"
	"cra-notify/internal/models"
	"cra-notify/internal/services"
	"cra-notify/pkg/response"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService *services.ChatService
	logger      *slog.Logger
}

func NewChatHandler(chatService *services.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, logger: logger}
}

// ListMessages godoc
// @Summary Channel history
// @Description Messages older than `before` (RFC3339), newest first
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param channelId path string true "Channel ID"
// @Param before query string false "Cursor timestamp"
// @Param limit query int false "Page size" default(50)
// @Success 200 {array} models.MessageResponse
// @Failure 403 {object} response.ErrorBody
// @Router /chat/channels/{channelId}/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeParamInvalid, "before must be an RFC3339 timestamp")
			return
		}
		before = parsed
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	msgs, err := h.chatService.ListMessages(c.Request.Context(), middleware.UserID(c), c.Param("channelId"), before, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// PostMessage godoc
// @Summary Send a message
// @Description Persists the message, then emits chat:new_message to the channel room and chat:mention to mentioned members
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param channelId path string true "Channel ID"
// @Param request body models.PostMessageRequest true "Message"
// @Success 201 {object} models.MessageResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /chat/channels/{channelId}/messages [post]
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req models.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	msg, err := h.chatService.PostMessage(c.Request.Context(), middleware.UserID(c), c.Param("channelId"), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// EditMessage godoc
// @Summary Edit own message
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param messageId path string true "Message ID"
// @Param request body models.EditMessageRequest true "New content"
// @Success 200 {object} models.MessageResponse
// @Router /chat/messages/{messageId} [put]
func (h *ChatHandler) EditMessage(c *gin.Context) {
	var req models.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	msg, err := h.chatService.EditMessage(c.Request.Context(), middleware.UserID(c), c.Param("messageId"), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage godoc
// @Summary Delete own message
// @Tags chat
// @Security BearerAuth
// @Param messageId path string true "Message ID"
// @Success 204
// @Router /chat/messages/{messageId} [delete]
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	if err := h.chatService.DeleteMessage(c.Request.Context(), middleware.UserID(c), c.Param("messageId")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddReaction godoc
// @Summary React to a message
// @Tags chat
// @Accept json
// @Security BearerAuth
// @Param messageId path string true "Message ID"
// @Param request body models.ReactionRequest true "Emoji"
// @Success 204
// @Router /chat/messages/{messageId}/reactions [post]
func (h *ChatHandler) AddReaction(c *gin.Context) {
	var req models.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.chatService.AddReaction(c.Request.Context(), middleware.UserID(c), c.Param("messageId"), req.Emoji); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveReaction godoc
// @Summary Remove own reaction
// @Tags chat
// @Security BearerAuth
// @Param messageId path string true "Message ID"
// @Param emoji path string true "Emoji"
// @Success 204
// @Router /chat/messages/{messageId}/reactions/{emoji} [delete]
func (h *ChatHandler) RemoveReaction(c *gin.Context) {
	if err := h.chatService.RemoveReaction(c.Request.Context(), middleware.UserID(c), c.Param("messageId"), c.Param("emoji")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RenameChannel godoc
// @Summary Rename a channel
// @Description Creator only; emits chat:channel_updated to the channel room
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param channelId path string true "Channel ID"
// @Param request body models.UpdateChannelRequest true "New name"
// @Success 200 {object} models.ChannelResponse
// @Router /chat/channels/{channelId} [put]
func (h *ChatHandler) RenameChannel(c *gin.Context) {
	var req models.UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	channel, err := h.chatService.RenameChannel(c.Request.Context(), middleware.UserID(c), c.Param("channelId"), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, channel)
}
