package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cra-notify/internal/adapters/kafka"
	"cra-notify/internal/api/handlers"
	"cra-notify/internal/api/middleware"
	"cra-notify/internal/auth"
	"cra-notify/internal/models"
	"cra-notify/internal/services"
	"cra-notify/internal/websocket"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	engine        *gin.Engine
	tokens        *auth.TokenManager
	hub           *websocket.Hub
	notifications *memNotifications
	chat          *memChat
}

func newTestEnv(t *testing.T, checks map[string]handlers.Pinger) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := memUsers{
		"alice": {ID: "alice", Username: "alice", FirstName: "Alice", IsActive: true, Role: models.RoleResearcher},
		"bob":   {ID: "bob", Username: "bob", FirstName: "Bob", IsActive: true, Role: models.RoleResearcher},
		"carol": {ID: "carol", Username: "carol", FirstName: "Carol", IsActive: true, Role: models.RoleManager},
		"dave":  {ID: "dave", Username: "dave", IsActive: false},
	}
	projects := projectDirectory{"p1": {"alice", "bob", "carol"}}
	notifications := newMemNotifications(users)
	chat := &memChat{
		channels: map[string]*models.ChatChannel{
			"c1": {ID: "c1", Name: "general", Type: models.ChannelTypeGroup, CreatorID: "alice"},
		},
		members:  map[string][]string{"c1": {"alice", "bob"}},
		users:    users,
		messages: make(map[string]*models.ChatMessage),
	}

	hub := websocket.NewHub(notifications, projects,
		websocket.WithLogger(logger),
		websocket.WithChannelMembership(chat),
	)
	t.Cleanup(hub.Stop)

	notificationService := services.NewNotificationService(notifications, projects, hub, kafka.NoopPublisher{}, logger)
	chatService := services.NewChatService(chat, hub, notificationService, logger)
	tokens := auth.NewTokenManager("routes-test-secret", time.Hour, "cra-test")

	if checks == nil {
		checks = map[string]handlers.Pinger{"postgres": fakePinger{}}
	}

	router := NewRouter(
		Handlers{
			WS:           handlers.NewWSHandler(hub, auth.NewAuthenticator(tokens, users, "token"), websocket.NewUpgrader(nil), logger),
			Notification: handlers.NewNotificationHandler(notificationService, logger),
			Announcement: handlers.NewAnnouncementHandler(hub),
			Presence:     handlers.NewPresenceHandler(hub, nil, logger),
			Chat:         handlers.NewChatHandler(chatService, logger),
			Health:       handlers.NewHealthHandler(checks),
		},
		middleware.NewAuthMiddleware(tokens, "token"),
		middleware.NewRateLimitMiddleware(nil, logger),
		nil,
	)
	router.SetupRoutes()

	return &testEnv{
		engine:        router.GetEngine(),
		tokens:        tokens,
		hub:           hub,
		notifications: notifications,
		chat:          chat,
	}
}

func (e *testEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := e.tokens.Issue(userID, role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID, role))
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func createFor(t *testing.T, env *testEnv, receiverID string) models.NotificationResponse {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/v1/notifications", "alice", models.RoleAdmin, map[string]any{
		"title":      "Tâche assignée",
		"message":    "Analyse des échantillons",
		"type":       models.NotificationTaskAssigned,
		"receiverId": receiverID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[models.NotificationResponse](t, w)
}

func TestNotificationRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/api/v1/notifications", "/api/v1/notifications/unread-count", "/api/v1/chat/channels/c1/messages"} {
		w := env.do(t, http.MethodGet, path, "", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestCreateAndListNotifications(t *testing.T) {
	env := newTestEnv(t, nil)

	created := createFor(t, env, "bob")
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.IsRead)
	createFor(t, env, "bob")
	createFor(t, env, "carol")

	w := env.do(t, http.MethodGet, "/api/v1/notifications?limit=1", "bob", models.RoleResearcher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[models.NotificationListResponse](t, w)
	assert.Len(t, list.Items, 1)
	assert.Equal(t, int64(2), list.Pagination.Total)
	assert.Equal(t, 1, list.Pagination.Limit)

	w = env.do(t, http.MethodGet, "/api/v1/notifications/unread-count", "bob", models.RoleResearcher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":2}`, w.Body.String())
}

func TestCreateNotificationValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/notifications", "alice", models.RoleAdmin, map[string]any{
		"message":    "no title",
		"type":       models.NotificationSystem,
		"receiverId": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/notifications", "alice", models.RoleAdmin, map[string]any{
		"title":      "   ",
		"message":    "blank title",
		"type":       models.NotificationSystem,
		"receiverId": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateNotificationRequiresAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	body := map[string]any{
		"title":      "Validation requise",
		"message":    "Merci de valider le formulaire",
		"type":       models.NotificationSystem,
		"receiverId": "bob",
		"senderId":   "carol",
	}

	for _, role := range []string{models.RoleGuest, models.RoleResearcher, models.RoleManager} {
		w := env.do(t, http.MethodPost, "/api/v1/notifications", "mallory", role, body)
		assert.Equal(t, http.StatusForbidden, w.Code, role)
	}
	count, err := env.notifications.CountUnread(context.Background(), "bob")
	require.NoError(t, err)
	assert.Zero(t, count)

	w := env.do(t, http.MethodPost, "/api/v1/notifications", "alice", models.RoleAdmin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[models.NotificationResponse](t, w)
	require.NotNil(t, created.SenderID)
	assert.Equal(t, "carol", *created.SenderID)
	require.NotNil(t, created.Sender)
	assert.Equal(t, "Carol", created.Sender.Name)
}

func TestMarkReadChecksOwnership(t *testing.T) {
	env := newTestEnv(t, nil)
	n := createFor(t, env, "bob")
	path := "/api/v1/notifications/" + n.ID + "/read"

	w := env.do(t, http.MethodPatch, path, "carol", models.RoleManager, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	stored, err := env.notifications.FindByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsRead)

	w = env.do(t, http.MethodPatch, "/api/v1/notifications/missing/read", "bob", models.RoleResearcher, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPatch, path, "bob", models.RoleResearcher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[models.NotificationResponse](t, w)
	assert.True(t, resp.IsRead)
	assert.NotNil(t, resp.ReadAt)
}

func TestMarkAllReadAndDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	first := createFor(t, env, "bob")
	createFor(t, env, "bob")

	w := env.do(t, http.MethodPatch, "/api/v1/notifications/read-all", "bob", models.RoleResearcher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":2}`, w.Body.String())

	w = env.do(t, http.MethodDelete, "/api/v1/notifications/"+first.ID, "alice", models.RoleResearcher, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/notifications/"+first.ID, "bob", models.RoleResearcher, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := env.notifications.FindByID(context.Background(), first.ID)
	assert.ErrorIs(t, err, models.ErrNotificationNotFound)
}

func TestNotifyProjectSkipsActor(t *testing.T) {
	env := newTestEnv(t, nil)

	body := map[string]any{"title": "Rapport publié", "message": "Le rapport trimestriel est disponible", "type": models.NotificationProjectUpdated}
	w := env.do(t, http.MethodPost, "/api/v1/projects/p1/notifications", "alice", models.RoleResearcher, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"created":2}`, w.Body.String())

	count, err := env.notifications.CountUnread(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, count)

	w = env.do(t, http.MethodPost, "/api/v1/projects/unknown/notifications", "alice", models.RoleResearcher, body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotifyProjectRejectsOutsiders(t *testing.T) {
	env := newTestEnv(t, nil)
	body := map[string]any{"title": "Promo", "message": "Offre spéciale", "type": models.NotificationSystem}

	w := env.do(t, http.MethodPost, "/api/v1/projects/p1/notifications", "mallory", models.RoleGuest, body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	for _, member := range []string{"alice", "bob", "carol"} {
		count, err := env.notifications.CountUnread(context.Background(), member)
		require.NoError(t, err)
		assert.Zero(t, count, member)
	}

	w = env.do(t, http.MethodPost, "/api/v1/projects/p1/notifications", "root", models.RoleAdmin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"created":3}`, w.Body.String())
}

func TestAnnouncementRequiresAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	body := map[string]any{"title": "Maintenance", "message": "Coupure samedi 8h", "level": "warning"}

	w := env.do(t, http.MethodPost, "/api/v1/announcements", "alice", models.RoleResearcher, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/announcements", "root", models.RoleAdmin, body)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"delivered":0}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/announcements", "root", models.RoleAdmin, map[string]any{"title": "x", "message": "y", "level": "loud"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPresenceOfOfflineUser(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/realtime/presence/bob", "alice", models.RoleResearcher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"bob","online":false,"sockets":0}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/realtime/stats", "alice", models.RoleResearcher, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestChatRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/chat/channels/c1/messages", "alice", models.RoleResearcher, map[string]any{"content": "Bonjour @bob"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msg := decodeBody[models.MessageResponse](t, w)
	assert.Equal(t, "c1", msg.ChannelID)

	// the mention is persisted for bob
	count, err := env.notifications.CountUnread(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	w = env.do(t, http.MethodPost, "/api/v1/chat/channels/c1/messages", "carol", models.RoleManager, map[string]any{"content": "intrusion"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/chat/channels/nope/messages", "alice", models.RoleResearcher, map[string]any{"content": "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/chat/channels/c1/messages?before=yesterday", "alice", models.RoleResearcher, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/chat/channels/c1/messages", "bob", models.RoleResearcher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]models.MessageResponse](t, w), 1)

	w = env.do(t, http.MethodPut, "/api/v1/chat/messages/"+msg.ID, "bob", models.RoleResearcher, map[string]any{"content": "not mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/chat/channels/c1", "alice", models.RoleResearcher, map[string]any{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/chat/messages/"+msg.ID, "alice", models.RoleResearcher, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/healthz", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","postgres":"ok"}`, w.Body.String())

	env = newTestEnv(t, map[string]handlers.Pinger{"postgres": fakePinger{}, "redis": fakePinger{err: errors.New("connection refused")}})
	w = env.do(t, http.MethodGet, "/healthz", "", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","postgres":"ok","redis":"connection refused"}`, w.Body.String())
}

func dial(t *testing.T, server *httptest.Server, token string) (*gorilla.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	if token != "" {
		url += "?token=" + token
	}
	return gorilla.DefaultDialer.Dial(url, nil)
}

func readEnvelope(t *testing.T, conn *gorilla.Conn) websocket.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env websocket.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestWebSocketHandshake(t *testing.T) {
	env := newTestEnv(t, nil)
	server := httptest.NewServer(env.engine)
	defer server.Close()

	t.Run("missing token", func(t *testing.T) {
		_, resp, err := dial(t, server, "")
		require.ErrorIs(t, err, gorilla.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Zero(t, env.hub.ClientCount())
	})

	t.Run("inactive user", func(t *testing.T) {
		_, resp, err := dial(t, server, env.token(t, "dave", models.RoleResearcher))
		require.ErrorIs(t, err, gorilla.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.False(t, env.hub.IsUserOnline("dave"))
	})

	t.Run("push after REST create", func(t *testing.T) {
		conn, _, err := dial(t, server, env.token(t, "bob", models.RoleResearcher))
		require.NoError(t, err)
		defer conn.Close()

		status := readEnvelope(t, conn)
		assert.Equal(t, websocket.EventConnectionStatus, status.Event)
		assert.True(t, env.hub.IsUserOnline("bob"))

		created := createFor(t, env, "bob")

		pushed := readEnvelope(t, conn)
		require.Equal(t, websocket.EventNewNotification, pushed.Event)
		var n websocket.NewNotification
		require.NoError(t, json.Unmarshal(pushed.Data, &n))
		assert.Equal(t, created.ID, n.ID)
		require.NotNil(t, n.SenderID)
		assert.Equal(t, "alice", *n.SenderID)
		require.NotNil(t, n.Sender)
		assert.Equal(t, models.UserSummary{ID: "alice", Name: "Alice"}, *n.Sender)

		count := readEnvelope(t, conn)
		require.Equal(t, websocket.EventUnreadCountUpdated, count.Event)
		assert.JSONEq(t, `{"count":1}`, string(count.Data))
	})
}
