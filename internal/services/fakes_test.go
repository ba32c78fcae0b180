package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"cra-notify/internal/models"
	"cra-notify/internal/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memNotificationStore struct {
	mu     sync.Mutex
	items  map[string]*models.Notification
	seq    int
	failOn string
}

func newMemNotificationStore() *memNotificationStore {
	return &memNotificationStore{items: make(map[string]*models.Notification)}
}

func (m *memNotificationStore) fail(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s failed", op)
	}
	return nil
}

func (m *memNotificationStore) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create"); err != nil {
		return err
	}
	m.seq++
	n.ID = fmt.Sprintf("n%d", m.seq)
	n.CreatedAt = time.Now()
	cp := *n
	m.items[n.ID] = &cp
	return nil
}

func (m *memNotificationStore) CreateBatch(ctx context.Context, items []*models.Notification) error {
	if err := m.fail("create"); err != nil {
		return err
	}
	for _, n := range items {
		if err := m.Create(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (m *memNotificationStore) FindByID(_ context.Context, id string) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return nil, models.ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *memNotificationStore) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Notification
	for _, n := range m.items {
		if n.ReceiverID != filter.ReceiverID || (filter.UnreadOnly && n.IsRead) {
			continue
		}
		all = append(all, *n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *memNotificationStore) MarkRead(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.items[id]; ok && !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
	}
	return nil
}

func (m *memNotificationStore) MarkAllRead(_ context.Context, receiverID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for _, n := range m.items {
		if n.ReceiverID == receiverID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &at
			updated++
		}
	}
	return updated, nil
}

func (m *memNotificationStore) CountUnread(_ context.Context, receiverID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.items {
		if n.ReceiverID == receiverID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memNotificationStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return models.ErrNotificationNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memNotificationStore) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, n := range m.items {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(m.items, id)
			removed++
		}
	}
	return removed, nil
}

type staticProjects map[string][]string

func (p staticProjects) MemberIDs(_ context.Context, projectID string) ([]string, error) {
	ids, ok := p[projectID]
	if !ok {
		return nil, models.ErrProjectNotFound
	}
	return ids, nil
}

type emitted struct {
	target string
	event  websocket.Event
}

// recordingNotifier captures what would have been pushed.
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []*models.Notification
	emitted []emitted
	rooms   []emitted
	exclude []string
}

func (r *recordingNotifier) SendToUser(_ context.Context, n *models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) EmitToUser(userID string, e websocket.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitted = append(r.emitted, emitted{target: userID, event: e})
	return 1
}

func (r *recordingNotifier) SendToRoom(kind, id string, e websocket.Event, excludeUserID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, emitted{target: websocket.RoomKey(kind, id), event: e})
	r.exclude = append(r.exclude, excludeUserID)
	return 1
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *recordingPublisher) PublishCreated(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n.ID)
	return p.err
}
