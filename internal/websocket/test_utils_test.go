package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cra-notify/internal/auth"
	"cra-notify/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// ErrClosedConnection is returned when attempting to use a closed mockConn.
var ErrClosedConnection = errors.New("connection closed")

// mockConn implements Conn for testing. Frames pushed on incoming are
// returned by ReadMessage; text frames written are recorded.
type mockConn struct {
	mu        sync.Mutex
	messages  [][]byte
	incoming  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		incoming: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-m.incoming:
		return websocket.TextMessage, msg, nil
	case <-m.done:
		return 0, nil, ErrClosedConnection
	}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-m.done:
		return ErrClosedConnection
	default:
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockConn) SetReadLimit(int64)                {}
func (m *mockConn) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConn) SetPongHandler(func(string) error) {}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *mockConn) isClosed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *mockConn) getMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]byte, len(m.messages))
	copy(result, m.messages)
	return result
}

// fakeNotificationStore is an in-memory NotificationStore.
type fakeNotificationStore struct {
	mu         sync.Mutex
	items      map[string]*models.Notification
	failWith   error
	countCalls int
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{items: make(map[string]*models.Notification)}
}

func (f *fakeNotificationStore) add(n *models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[n.ID] = n
}

func (f *fakeNotificationStore) isRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].IsRead
}

func (f *fakeNotificationStore) FindByID(_ context.Context, id string) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	n, ok := f.items[id]
	if !ok {
		return nil, models.ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotificationStore) MarkRead(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	n, ok := f.items[id]
	if !ok {
		return models.ErrNotificationNotFound
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
	}
	return nil
}

func (f *fakeNotificationStore) CountUnread(_ context.Context, receiverID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	if f.failWith != nil {
		return 0, f.failWith
	}
	var count int64
	for _, n := range f.items {
		if n.ReceiverID == receiverID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// fakeMembershipStore maps users to project ids and channel ids.
type fakeMembershipStore struct {
	mu       sync.Mutex
	projects map[string][]string
	channels map[string]map[string]bool
	failWith error
}

func newFakeMembershipStore() *fakeMembershipStore {
	return &fakeMembershipStore{
		projects: make(map[string][]string),
		channels: make(map[string]map[string]bool),
	}
}

func (f *fakeMembershipStore) addProject(userID, projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[userID] = append(f.projects[userID], projectID)
}

func (f *fakeMembershipStore) addChannelMember(channelID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channels[channelID] == nil {
		f.channels[channelID] = make(map[string]bool)
	}
	f.channels[channelID][userID] = true
}

func (f *fakeMembershipStore) ProjectIDsForUser(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return append([]string(nil), f.projects[userID]...), nil
}

func (f *fakeMembershipStore) IsMember(_ context.Context, channelID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[channelID][userID], nil
}

// fakeMirror records presence transitions.
type fakeMirror struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeMirror) SetUserOnline(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "online:"+userID)
	return nil
}

func (f *fakeMirror) SetUserOffline(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "offline:"+userID)
	return nil
}

func (f *fakeMirror) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestHub builds a hub over in-memory stores.
func createTestHub(opts ...Option) (*Hub, *fakeNotificationStore, *fakeMembershipStore) {
	notifications := newFakeNotificationStore()
	memberships := newFakeMembershipStore()
	opts = append([]Option{WithLogger(discardLogger()), WithChannelMembership(memberships)}, opts...)
	return NewHub(notifications, memberships, opts...), notifications, memberships
}

// attachTestClient attaches a socket whose pumps are not running; frames
// pile up in client.send and are read back with drain.
func attachTestClient(t *testing.T, hub *Hub, userID string) *Client {
	t.Helper()
	client := NewClient(hub, newMockConn(), &auth.Identity{UserID: userID, Role: models.RoleResearcher, Name: "User " + userID})
	require.NoError(t, hub.Attach(context.Background(), client))
	frames := drain(client)
	require.Len(t, frames, 1)
	require.Equal(t, EventConnectionStatus, frames[0].Event)
	return client
}

// drain returns every frame queued on the client so far.
func drain(c *Client) []Envelope {
	var out []Envelope
	for {
		select {
		case raw := <-c.send:
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				panic(err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func eventNames(frames []Envelope) []EventName {
	names := make([]EventName, len(frames))
	for i, f := range frames {
		names[i] = f.Event
	}
	return names
}

func payloadOf[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func newRequestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}
