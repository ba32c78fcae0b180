package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cra-notify/internal/models"
)

var ErrHubStopped = errors.New("hub stopped")

// NotificationStore is the durable source of truth the hub reads from.
type NotificationStore interface {
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	CountUnread(ctx context.Context, receiverID string) (int64, error)
}

// MembershipStore resolves the projects a user owns or actively participates in.
type MembershipStore interface {
	ProjectIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// ChannelMembership gates chat:join_channel.
type ChannelMembership interface {
	IsMember(ctx context.Context, channelID, userID string) (bool, error)
}

// PresenceMirror receives online/offline transitions, e.g. to publish them in Redis.
type PresenceMirror interface {
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string) error
}

type presenceChange struct {
	userID string
	online bool
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

func WithChannelMembership(channels ChannelMembership) Option {
	return func(h *Hub) { h.channels = channels }
}

func WithPresenceMirror(mirror PresenceMirror) Option {
	return func(h *Hub) { h.mirror = mirror }
}

func WithSendBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.sendBuffer = size
		}
	}
}

func WithMaxMessageSize(size int64) Option {
	return func(h *Hub) {
		if size > 0 {
			h.maxMessageSize = size
		}
	}
}

// Hub owns every live socket together with the presence and room indexes.
// All three are guarded by mu, and no I/O happens while mu is held.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	presence *Presence
	rooms    rooms
	stopped  bool

	notifications NotificationStore
	memberships   MembershipStore
	channels      ChannelMembership
	mirror        PresenceMirror

	presenceChanges chan presenceChange

	logger         *slog.Logger
	sendBuffer     int
	maxMessageSize int64

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(notifications NotificationStore, memberships MembershipStore, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:         make(map[*Client]struct{}),
		presence:        NewPresence(),
		rooms:           make(rooms),
		notifications:   notifications,
		memberships:     memberships,
		presenceChanges: make(chan presenceChange, 1024),
		logger:          slog.Default(),
		sendBuffer:      defaultSendBuffer,
		maxMessageSize:  defaultMaxMessageSize,
		ctx:             ctx,
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run forwards presence transitions to the mirror until ctx is done or Stop is called.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case change := <-h.presenceChanges:
			h.applyPresenceChange(ctx, change)
		case <-ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			return
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			return
		}
	}
}

func (h *Hub) applyPresenceChange(ctx context.Context, change presenceChange) {
	if h.mirror == nil {
		return
	}
	var err error
	if change.online {
		err = h.mirror.SetUserOnline(ctx, change.userID)
	} else {
		err = h.mirror.SetUserOffline(ctx, change.userID)
	}
	if err != nil {
		h.logger.Error("Failed to mirror presence", "userID", change.userID, "online", change.online, "error", err)
	}
}

// notePresence is called with h.mu held so the mirror sees transitions in
// the order the registry applied them. It never blocks.
func (h *Hub) notePresence(userID string, online bool) {
	if h.mirror == nil {
		return
	}
	select {
	case h.presenceChanges <- presenceChange{userID: userID, online: online}:
	default:
		h.logger.Warn("Presence mirror queue full, dropping change", "userID", userID, "online", online)
	}
}

// Stop closes every socket and refuses further attaches.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.cancel()
}

// Attach registers an authenticated socket: presence, personal room, and one
// room per project the user belongs to right now. The project list is a
// snapshot and is not refreshed while the socket stays connected.
func (h *Hub) Attach(ctx context.Context, c *Client) error {
	projectIDs, err := h.memberships.ProjectIDsForUser(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("load project memberships: %w", err)
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrHubStopped
	}
	h.clients[c] = struct{}{}
	cameOnline := h.presence.Register(c.userID, c.id)
	h.rooms.join(c.userID, c)
	for _, projectID := range projectIDs {
		h.rooms.join(RoomKey(RoomKindProject, projectID), c)
	}
	if cameOnline {
		h.notePresence(c.userID, true)
	}
	h.mu.Unlock()

	h.logger.Info("Client registered", "clientID", c.id, "userID", c.userID, "projects", len(projectIDs))

	return c.Send(ConnectionStatus{
		Connected: true,
		UserID:    c.userID,
		SocketID:  c.id,
		Timestamp: time.Now().UTC(),
	})
}

// Detach removes a socket from every index. Unknown sockets are ignored.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.rooms.leaveAll(c)
	if h.presence.Unregister(c.userID, c.id) {
		h.notePresence(c.userID, false)
	}
	h.mu.Unlock()

	c.close()

	h.logger.Info("Client unregistered", "clientID", c.id, "userID", c.userID)
}

// JoinRoom subscribes a socket to "<kind>:<id>".
func (h *Hub) JoinRoom(c *Client, kind, id string) {
	key := RoomKey(kind, id)

	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		h.rooms.join(key, c)
	}
	h.mu.Unlock()

	h.logger.Debug("Client joined room", "clientID", c.id, "userID", c.userID, "room", key)
}

func (h *Hub) LeaveRoom(c *Client, kind, id string) {
	key := RoomKey(kind, id)

	h.mu.Lock()
	h.rooms.leave(key, c)
	h.mu.Unlock()

	h.logger.Debug("Client left room", "clientID", c.id, "userID", c.userID, "room", key)
}

func (h *Hub) inRoom(c *Client, key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[key]
	return ok
}

func (h *Hub) snapshot(key, excludeUserID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms.recipients(key, excludeUserID)
}

// deliver encodes once and enqueues on every target. It returns how many
// sockets accepted the frame.
func (h *Hub) deliver(targets []*Client, e Event) int {
	if len(targets) == 0 {
		return 0
	}
	data, err := Encode(e)
	if err != nil {
		h.logger.Error("Failed to encode event", "event", e.EventName(), "error", err)
		return 0
	}

	delivered := 0
	for _, c := range targets {
		if err := c.sendRaw(data); err == nil {
			delivered++
		}
	}
	return delivered
}

// EmitToUser pushes an event to every socket of userID.
func (h *Hub) EmitToUser(userID string, e Event) int {
	return h.deliver(h.snapshot(userID, ""), e)
}

// SendToUser pushes an already persisted notification to the receiver's
// personal room, followed by their fresh unread count. Nobody connected is
// not an error.
func (h *Hub) SendToUser(ctx context.Context, n *models.Notification) {
	delivered := h.EmitToUser(n.ReceiverID, NewNotification{
		NotificationResponse: n.ToResponse(),
		DeliveredAt:          time.Now().UTC(),
	})
	if delivered == 0 {
		return
	}
	h.pushUnreadCount(ctx, n.ReceiverID)
}

func (h *Hub) pushUnreadCount(ctx context.Context, userID string) {
	count, err := h.notifications.CountUnread(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to count unread notifications", "userID", userID, "error", err)
		return
	}
	h.EmitToUser(userID, UnreadCountUpdated{Count: count})
}

// SendToRoom pushes an event to "<kind>:<id>", skipping every socket of excludeUserID.
func (h *Hub) SendToRoom(kind, id string, e Event, excludeUserID string) int {
	return h.deliver(h.snapshot(RoomKey(kind, id), excludeUserID), e)
}

// BroadcastToAll pushes an event to every connected socket.
func (h *Hub) BroadcastToAll(e Event) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	return h.deliver(targets, e)
}

func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.presence.IsUserOnline(userID)
}

func (h *Hub) SocketCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.presence.SocketCount(userID)
}

func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.presence.OnlineUsers()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
