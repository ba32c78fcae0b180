package websocket

import (
	"context"
	"net/http"
	"slices"

	"cra-notify/internal/auth"

	"github.com/gorilla/websocket"
)

// NewUpgrader accepts requests without an Origin header (non-browser clients)
// and browser requests whose Origin is listed. "*" allows any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := slices.Contains(allowedOrigins, "*")
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
}

// ServeWS upgrades an already authenticated request and attaches the socket.
func ServeWS(ctx context.Context, hub *Hub, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("Failed to upgrade WebSocket connection", "userID", identity.UserID, "error", err)
		return
	}

	client := NewClient(hub, conn, identity)
	if err := hub.Attach(ctx, client); err != nil {
		hub.logger.Error("Failed to attach client", "clientID", client.id, "userID", identity.UserID, "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "connection setup failed"))
		hub.Detach(client)
		client.close()
		return
	}

	client.Start()
	hub.logger.Debug("WebSocket goroutines started", "clientID", client.id, "userID", client.userID)
}
