package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"cra-notify/internal/models"
	"cra-notify/internal/websocket"
)

var ErrInvalidNotification = errors.New("invalid notification")

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	CreateBatch(ctx context.Context, items []*models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkAllRead(ctx context.Context, receiverID string, at time.Time) (int64, error)
	CountUnread(ctx context.Context, receiverID string) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ProjectMembers interface {
	MemberIDs(ctx context.Context, projectID string) ([]string, error)
}

// Notifier is the realtime side of delivery, implemented by the websocket hub.
type Notifier interface {
	SendToUser(ctx context.Context, n *models.Notification)
	EmitToUser(userID string, e websocket.Event) int
}

// EventPublisher streams created notifications to other consumers.
type EventPublisher interface {
	PublishCreated(ctx context.Context, n *models.Notification) error
}

// NotificationTemplate is the receiver-independent part of a notification.
type NotificationTemplate struct {
	Title      string
	Message    string
	Type       models.NotificationType
	ActionURL  *string
	EntityType *string
	EntityID   *string
}

// NotificationService persists first, then pushes. A push or publish failure
// never undoes or fails the write.
type NotificationService struct {
	store     NotificationStore
	projects  ProjectMembers
	notifier  Notifier
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewNotificationService(store NotificationStore, projects ProjectMembers, notifier Notifier, publisher EventPublisher, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		store:     store,
		projects:  projects,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *NotificationService) Create(ctx context.Context, req models.CreateNotificationRequest) (*models.Notification, error) {
	n := &models.Notification{
		Title:      strings.TrimSpace(req.Title),
		Message:    strings.TrimSpace(req.Message),
		Type:       req.Type,
		ReceiverID: req.ReceiverID,
		SenderID:   req.SenderID,
		ActionURL:  req.ActionURL,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
	}
	if err := validateNotification(n); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}

	s.afterCreate(ctx, n)
	return n, nil
}

// CreateForUsers fans one template out to several receivers. The actor and
// duplicate ids are skipped.
func (s *NotificationService) CreateForUsers(ctx context.Context, receiverIDs []string, actorID string, tmpl NotificationTemplate) ([]*models.Notification, error) {
	seen := make(map[string]struct{}, len(receiverIDs))
	items := make([]*models.Notification, 0, len(receiverIDs))
	for _, receiverID := range receiverIDs {
		if receiverID == "" || receiverID == actorID {
			continue
		}
		if _, dup := seen[receiverID]; dup {
			continue
		}
		seen[receiverID] = struct{}{}

		n := &models.Notification{
			Title:      strings.TrimSpace(tmpl.Title),
			Message:    strings.TrimSpace(tmpl.Message),
			Type:       tmpl.Type,
			ReceiverID: receiverID,
			ActionURL:  tmpl.ActionURL,
			EntityType: tmpl.EntityType,
			EntityID:   tmpl.EntityID,
		}
		if actorID != "" {
			sender := actorID
			n.SenderID = &sender
		}
		if err := validateNotification(n); err != nil {
			return nil, err
		}
		items = append(items, n)
	}

	if len(items) == 0 {
		return items, nil
	}

	if err := s.store.CreateBatch(ctx, items); err != nil {
		return nil, err
	}

	for _, n := range items {
		s.afterCreate(ctx, n)
	}
	return items, nil
}

// NotifyProject notifies every member of a project except the actor.
// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role string
}

// NotifyProject fans out to every member except the actor, who must be a
// member of the project or an admin.
func (s *NotificationService) NotifyProject(ctx context.Context, projectID string, actor Actor, tmpl NotificationTemplate) ([]*models.Notification, error) {
	memberIDs, err := s.projects.MemberIDs(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load members of project %s: %w", projectID, err)
	}
	if actor.Role != models.RoleAdmin && !slices.Contains(memberIDs, actor.ID) {
		return nil, models.ErrForbidden
	}
	if tmpl.EntityType == nil {
		entityType, entityID := "project", projectID
		tmpl.EntityType, tmpl.EntityID = &entityType, &entityID
	}
	return s.CreateForUsers(ctx, memberIDs, actor.ID, tmpl)
}

func (s *NotificationService) afterCreate(ctx context.Context, n *models.Notification) {
	if err := s.publisher.PublishCreated(ctx, n); err != nil {
		s.logger.Error("Failed to publish notification event", "notificationID", n.ID, "error", err)
	}
	s.notifier.SendToUser(ctx, n)
}

func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) (*models.NotificationListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &models.NotificationListResponse{
		Items:      make([]models.NotificationResponse, 0, len(items)),
		Pagination: models.Pagination{Page: filter.Page, Limit: filter.Limit, Total: total},
	}
	for i := range items {
		resp.Items = append(resp.Items, items[i].ToResponse())
	}
	return resp, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkRead marks one of the user's notifications read and syncs the count
// to every device of the user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	n, err := s.owned(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}

	if !n.IsRead {
		now := s.now().UTC()
		if err := s.store.MarkRead(ctx, n.ID, now); err != nil {
			return nil, err
		}
		n.IsRead = true
		n.ReadAt = &now
	}

	s.pushUnreadCount(ctx, userID)
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.store.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, err
	}
	s.notifier.EmitToUser(userID, websocket.UnreadCountUpdated{Count: 0})
	return updated, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	n, err := s.owned(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, n.ID); err != nil {
		return err
	}
	if !n.IsRead {
		s.pushUnreadCount(ctx, userID)
	}
	return nil
}

// CleanupOlderThan removes read notifications created before now-age.
func (s *NotificationService) CleanupOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	removed, err := s.store.DeleteReadBefore(ctx, s.now().Add(-age))
	if err != nil {
		return 0, err
	}
	s.logger.Info("Notification cleanup finished", "removed", removed, "olderThan", age)
	return removed, nil
}

// owned loads a notification and hides foreign ones behind ErrForbidden.
func (s *NotificationService) owned(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	n, err := s.store.FindByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.ReceiverID != userID {
		return nil, models.ErrForbidden
	}
	return n, nil
}

func (s *NotificationService) pushUnreadCount(ctx context.Context, userID string) {
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to count unread notifications", "userID", userID, "error", err)
		return
	}
	s.notifier.EmitToUser(userID, websocket.UnreadCountUpdated{Count: count})
}

func validateNotification(n *models.Notification) error {
	switch {
	case n.ReceiverID == "":
		return fmt.Errorf("%w: receiver is required", ErrInvalidNotification)
	case n.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidNotification)
	case n.Message == "":
		return fmt.Errorf("%w: message is required", ErrInvalidNotification)
	case n.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidNotification)
	}
	return nil
}
