package routes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cra-notify/internal/models"
)

// memNotifications loads the sender on create like the Postgres repository.
type memNotifications struct {
	mu    sync.Mutex
	items map[string]*models.Notification
	users memUsers
	seq   int
}

func newMemNotifications(users memUsers) *memNotifications {
	return &memNotifications{items: make(map[string]*models.Notification), users: users}
}

func (m *memNotifications) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	n.ID = fmt.Sprintf("n%d", m.seq)
	n.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Millisecond)
	if n.SenderID != nil {
		n.Sender = m.users[*n.SenderID]
	}
	cp := *n
	m.items[n.ID] = &cp
	return nil
}

func (m *memNotifications) CreateBatch(ctx context.Context, items []*models.Notification) error {
	for _, n := range items {
		if err := m.Create(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (m *memNotifications) FindByID(_ context.Context, id string) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return nil, models.ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *memNotifications) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Notification
	for _, n := range m.items {
		if n.ReceiverID != filter.ReceiverID || (filter.UnreadOnly && n.IsRead) {
			continue
		}
		all = append(all, *n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := (filter.Page - 1) * filter.Limit
	if start >= len(all) {
		return nil, int64(len(all)), nil
	}
	end := min(start+filter.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (m *memNotifications) MarkRead(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return models.ErrNotificationNotFound
	}
	n.IsRead = true
	n.ReadAt = &at
	return nil
}

func (m *memNotifications) MarkAllRead(_ context.Context, receiverID string, at time.Time) (int64, error) {
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

func (m *memNotifications) CountUnread(_ context.Context, receiverID string) (int64, error) {
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

func (m *memNotifications) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return models.ErrNotificationNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memNotifications) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
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

// projectDirectory maps project ids to member ids.
type projectDirectory map[string][]string

func (p projectDirectory) ProjectIDsForUser(_ context.Context, userID string) ([]string, error) {
	var ids []string
	for projectID, members := range p {
		for _, id := range members {
			if id == userID {
				ids = append(ids, projectID)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (p projectDirectory) MemberIDs(_ context.Context, projectID string) ([]string, error) {
	members, ok := p[projectID]
	if !ok {
		return nil, models.ErrProjectNotFound
	}
	return members, nil
}

type memUsers map[string]*models.User

func (m memUsers) FindActiveByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m[id]
	if !ok || !u.IsActive {
		return nil, models.ErrUserNotFound
	}
	return u, nil
}

type memChat struct {
	mu       sync.Mutex
	channels map[string]*models.ChatChannel
	members  map[string][]string
	users    memUsers
	messages map[string]*models.ChatMessage
	seq      int
}

func (m *memChat) FindChannel(_ context.Context, id string) (*models.ChatChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil, models.ErrChannelNotFound
	}
	cp := *ch
	return &cp, nil
}

func (m *memChat) UpdateChannelName(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[id].Name = name
	return nil
}

func (m *memChat) IsMember(_ context.Context, channelID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.members[channelID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memChat) MembersByUsernames(_ context.Context, channelID string, usernames []string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, id := range m.members[channelID] {
		u := m.users[id]
		for _, name := range usernames {
			if u.Username == name {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}

func (m *memChat) CreateMessage(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	msg.ID = fmt.Sprintf("m%d", m.seq)
	msg.CreatedAt = time.Now()
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memChat) FindMessage(_ context.Context, id string) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, models.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memChat) ListMessages(_ context.Context, channelID string, before time.Time, limit int) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChatMessage
	for _, msg := range m.messages {
		if msg.ChannelID == channelID && msg.CreatedAt.Before(before) {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memChat) UpdateMessageContent(_ context.Context, id, content string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[id].Content = content
	m.messages[id].EditedAt = &at
	return nil
}

func (m *memChat) DeleteMessage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, id)
	return nil
}

func (m *memChat) AddReaction(context.Context, *models.ChatReaction) (bool, error) { return true, nil }

func (m *memChat) RemoveReaction(context.Context, string, string, string) error { return nil }

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }
