package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cra-notify/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts the row and loads its sender so the pushed payload
// matches what List returns.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return loadSenders(db, []*models.Notification{n})
}

// CreateBatch inserts all rows in one transaction.
func (r *NotificationRepository) CreateBatch(ctx context.Context, items []*models.Notification) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create notifications: %w", err)
		}
		return loadSenders(tx, items)
	})
}

func loadSenders(db *gorm.DB, items []*models.Notification) error {
	seen := make(map[string]bool)
	var ids []string
	for _, n := range items {
		if n.SenderID != nil && n.Sender == nil && !seen[*n.SenderID] {
			seen[*n.SenderID] = true
			ids = append(ids, *n.SenderID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var users []models.User
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return fmt.Errorf("failed to load notification senders: %w", err)
	}
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for _, n := range items {
		if n.SenderID != nil && n.Sender == nil {
			n.Sender = byID[*n.SenderID]
		}
	}
	return nil
}

// FindByID reports ErrNotificationNotFound for ids that are not UUIDs
// instead of letting Postgres fail the cast.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotificationNotFound
	}
	var n models.Notification
	err := r.db.WithContext(ctx).Preload("Sender").First(&n, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("receiver_id = ?", filter.ReceiverID)
	if filter.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	var items []models.Notification
	err := query.Preload("Sender").
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, total, nil
}

// MarkRead is a no-op on rows already read so readAt keeps its first value.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, receiverID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, receiverID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotificationNotFound
	}
	res := r.db.WithContext(ctx).Delete(&models.Notification{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotificationNotFound
	}
	return nil
}

// DeleteReadBefore removes read notifications older than the cutoff.
func (r *NotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clean up notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}
