package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"cra-notify/internal/auth"
	"cra-notify/internal/websocket"
	"cra-notify/pkg/response"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

type WSHandler struct {
	hub           *websocket.Hub
	authenticator *auth.Authenticator
	upgrader      *gorilla.Upgrader
	logger        *slog.Logger
}

func NewWSHandler(hub *websocket.Hub, authenticator *auth.Authenticator, upgrader *gorilla.Upgrader, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: hub, authenticator: authenticator, upgrader: upgrader, logger: logger}
}

// HandleWebSocket godoc
// @Summary WebSocket connection
// @Description Authenticate and upgrade to the realtime notification socket. The token is read from the `token` query parameter, then the Authorization header, then the session cookie.
// @Tags realtime
// @Param token query string false "Access token"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} response.ErrorBody "Missing, invalid or expired token, or inactive user"
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	identity, err := h.authenticator.Authenticate(c.Request.Context(), c.Request)
	if err != nil {
		h.logger.Info("WebSocket handshake rejected", "clientIP", c.ClientIP(), "error", err)
		switch {
		case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUserInactive):
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, rootCause(err))
		default:
			response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, "authentication unavailable")
		}
		return
	}

	websocket.ServeWS(c.Request.Context(), h.hub, h.upgrader, c.Writer, c.Request, identity)
}

func rootCause(err error) string {
	for _, sentinel := range []error{auth.ErrMissingToken, auth.ErrInvalidToken, auth.ErrUserInactive} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
