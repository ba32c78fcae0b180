package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"cra-notify/internal/models"
	"cra-notify/internal/websocket"
)

var (
	ErrEmptyMessage     = errors.New("message content is empty")
	ErrEmptyChannelName = errors.New("channel name is required")
)

type ChatStore interface {
	FindChannel(ctx context.Context, id string) (*models.ChatChannel, error)
	UpdateChannelName(ctx context.Context, id, name string) error
	IsMember(ctx context.Context, channelID, userID string) (bool, error)
	MembersByUsernames(ctx context.Context, channelID string, usernames []string) ([]models.User, error)
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	FindMessage(ctx context.Context, id string) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, channelID string, before time.Time, limit int) ([]models.ChatMessage, error)
	UpdateMessageContent(ctx context.Context, id, content string, at time.Time) error
	DeleteMessage(ctx context.Context, id string) error
	AddReaction(ctx context.Context, reaction *models.ChatReaction) (bool, error)
	RemoveReaction(ctx context.Context, messageID, userID, emoji string) error
}

// RoomNotifier is the room-scoped side of the websocket hub.
type RoomNotifier interface {
	SendToRoom(kind, id string, e websocket.Event, excludeUserID string) int
	EmitToUser(userID string, e websocket.Event) int
}

// MentionNotifier persists mention notifications.
type MentionNotifier interface {
	CreateForUsers(ctx context.Context, receiverIDs []string, actorID string, tmpl NotificationTemplate) ([]*models.Notification, error)
}

var mentionPattern = regexp.MustCompile(`(?:^|\s)@([A-Za-z0-9_.\-]+)`)

// ParseMentions returns the distinct @usernames in content, in order of appearance.
func ParseMentions(content string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		name := strings.TrimRight(m[1], ".-")
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ChatService persists chat mutations and echoes them to `channel:<id>`,
// never back to the actor.
type ChatService struct {
	store    ChatStore
	rooms    RoomNotifier
	mentions MentionNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewChatService(store ChatStore, rooms RoomNotifier, mentions MentionNotifier, logger *slog.Logger) *ChatService {
	return &ChatService{store: store, rooms: rooms, mentions: mentions, logger: logger, now: time.Now}
}

func (s *ChatService) requireMember(ctx context.Context, channelID, userID string) error {
	if _, err := s.store.FindChannel(ctx, channelID); err != nil {
		return err
	}
	member, err := s.store.IsMember(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if !member {
		return models.ErrForbidden
	}
	return nil
}

func (s *ChatService) ListMessages(ctx context.Context, userID, channelID string, before time.Time, limit int) ([]models.MessageResponse, error) {
	if err := s.requireMember(ctx, channelID, userID); err != nil {
		return nil, err
	}
	if before.IsZero() {
		before = s.now()
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	msgs, err := s.store.ListMessages(ctx, channelID, before, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, msgs[i].ToResponse())
	}
	return out, nil
}

func (s *ChatService) PostMessage(ctx context.Context, userID, channelID string, req models.PostMessageRequest) (*models.MessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if err := s.requireMember(ctx, channelID, userID); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ChannelID: channelID,
		AuthorID:  userID,
		Content:   content,
		ParentID:  req.ParentID,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	resp := msg.ToResponse()
	s.rooms.SendToRoom(websocket.RoomKindChannel, channelID, websocket.ChatNewMessage{MessageResponse: resp}, userID)
	s.notifyMentions(ctx, msg)
	return &resp, nil
}

func (s *ChatService) notifyMentions(ctx context.Context, msg *models.ChatMessage) {
	usernames := ParseMentions(msg.Content)
	if len(usernames) == 0 {
		return
	}

	users, err := s.store.MembersByUsernames(ctx, msg.ChannelID, usernames)
	if err != nil {
		s.logger.Error("Failed to resolve mentions", "messageID", msg.ID, "error", err)
		return
	}

	author := msg.Author.Summary()
	if msg.Author.ID == "" {
		author = nil
	}
	receiverIDs := make([]string, 0, len(users))
	for _, u := range users {
		if u.ID == msg.AuthorID {
			continue
		}
		receiverIDs = append(receiverIDs, u.ID)
		s.rooms.EmitToUser(u.ID, websocket.ChatMention{
			ChannelID: msg.ChannelID,
			MessageID: msg.ID,
			Author:    author,
			Excerpt:   excerpt(msg.Content, 120),
			CreatedAt: msg.CreatedAt,
		})
	}

	if s.mentions == nil || len(receiverIDs) == 0 {
		return
	}
	entityType, entityID := "chat_message", msg.ID
	actionURL := fmt.Sprintf("/chat/%s?message=%s", msg.ChannelID, msg.ID)
	title := "New mention"
	if author != nil {
		title = author.Name + " mentioned you"
	}
	_, err = s.mentions.CreateForUsers(ctx, receiverIDs, msg.AuthorID, NotificationTemplate{
		Title:      title,
		Message:    excerpt(msg.Content, 200),
		Type:       models.NotificationChatMention,
		ActionURL:  &actionURL,
		EntityType: &entityType,
		EntityID:   &entityID,
	})
	if err != nil {
		s.logger.Error("Failed to persist mention notifications", "messageID", msg.ID, "error", err)
	}
}

func (s *ChatService) EditMessage(ctx context.Context, userID, messageID string, req models.EditMessageRequest) (*models.MessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	msg, err := s.store.FindMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.AuthorID != userID {
		return nil, models.ErrForbidden
	}

	now := s.now().UTC()
	if err := s.store.UpdateMessageContent(ctx, msg.ID, content, now); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.EditedAt = &now

	resp := msg.ToResponse()
	s.rooms.SendToRoom(websocket.RoomKindChannel, msg.ChannelID, websocket.ChatMessageUpdated{MessageResponse: resp}, userID)
	return &resp, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, userID, messageID string) error {
	msg, err := s.store.FindMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.AuthorID != userID {
		return models.ErrForbidden
	}
	if err := s.store.DeleteMessage(ctx, msg.ID); err != nil {
		return err
	}

	s.rooms.SendToRoom(websocket.RoomKindChannel, msg.ChannelID, websocket.ChatMessageDeleted{ChannelID: msg.ChannelID, MessageID: msg.ID}, userID)
	return nil
}

func (s *ChatService) AddReaction(ctx context.Context, userID, messageID, emoji string) error {
	msg, err := s.reactable(ctx, userID, messageID)
	if err != nil {
		return err
	}
	added, err := s.store.AddReaction(ctx, &models.ChatReaction{MessageID: msg.ID, UserID: userID, Emoji: emoji})
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	s.rooms.SendToRoom(websocket.RoomKindChannel, msg.ChannelID, websocket.ChatReactionAdded{ChatReaction: websocket.ChatReaction{
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		UserID:    userID,
		Emoji:     emoji,
	}}, userID)
	return nil
}

func (s *ChatService) RemoveReaction(ctx context.Context, userID, messageID, emoji string) error {
	msg, err := s.reactable(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if err := s.store.RemoveReaction(ctx, msg.ID, userID, emoji); err != nil {
		return err
	}

	s.rooms.SendToRoom(websocket.RoomKindChannel, msg.ChannelID, websocket.ChatReactionRemoved{ChatReaction: websocket.ChatReaction{
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		UserID:    userID,
		Emoji:     emoji,
	}}, userID)
	return nil
}

func (s *ChatService) reactable(ctx context.Context, userID, messageID string) (*models.ChatMessage, error) {
	msg, err := s.store.FindMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	member, err := s.store.IsMember(ctx, msg.ChannelID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, models.ErrForbidden
	}
	return msg, nil
}

// RenameChannel is restricted to the channel creator.
func (s *ChatService) RenameChannel(ctx context.Context, userID, channelID string, req models.UpdateChannelRequest) (*models.ChannelResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyChannelName
	}

	channel, err := s.store.FindChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.CreatorID != userID {
		return nil, models.ErrForbidden
	}
	if err := s.store.UpdateChannelName(ctx, channel.ID, name); err != nil {
		return nil, err
	}
	channel.Name = name

	resp := channel.ToResponse()
	s.rooms.SendToRoom(websocket.RoomKindChannel, channel.ID, websocket.ChatChannelUpdated{ChannelResponse: resp}, userID)
	return &resp, nil
}

func excerpt(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
