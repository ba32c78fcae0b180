package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cra-notify/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db}
}

func (r *ChatRepository) CreateChannel(ctx context.Context, channel *models.ChatChannel, memberIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(channel).Error; err != nil {
			return fmt.Errorf("failed to create channel: %w", err)
		}
		for _, userID := range memberIDs {
			member := models.ChatChannelMember{ChannelID: channel.ID, UserID: userID}
			if err := tx.Create(&member).Error; err != nil {
				return fmt.Errorf("failed to add member %s: %w", userID, err)
			}
		}
		return nil
	})
}

func (r *ChatRepository) FindChannel(ctx context.Context, id string) (*models.ChatChannel, error) {
	var channel models.ChatChannel
	err := r.db.WithContext(ctx).First(&channel, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrChannelNotFound
		}
		return nil, err
	}
	return &channel, nil
}

func (r *ChatRepository) UpdateChannelName(ctx context.Context, id, name string) error {
	res := r.db.WithContext(ctx).Model(&models.ChatChannel{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return fmt.Errorf("failed to update channel: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrChannelNotFound
	}
	return nil
}

func (r *ChatRepository) IsMember(ctx context.Context, channelID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatChannelMember{}).
		Where("channel_id = ? AND user_id = ? AND left_at IS NULL", channelID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check channel membership: %w", err)
	}
	return count > 0, nil
}

// MembersByUsernames resolves @mentions to active members of the channel.
func (r *ChatRepository) MembersByUsernames(ctx context.Context, channelID string, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_channel_members m ON m.user_id = users.id").
		Where("m.channel_id = ? AND m.left_at IS NULL AND users.username IN ?", channelID, usernames).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mentions: %w", err)
	}
	return users, nil
}

func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return r.db.WithContext(ctx).Preload("Author").First(msg, "id = ?", msg.ID).Error
}

func (r *ChatRepository) FindMessage(ctx context.Context, id string) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.WithContext(ctx).Preload("Author").First(&msg, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (r *ChatRepository) ListMessages(ctx context.Context, channelID string, before time.Time, limit int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("channel_id = ? AND created_at < ?", channelID, before).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func (r *ChatRepository) UpdateMessageContent(ctx context.Context, id, content string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"content": content, "edited_at": at})
	if res.Error != nil {
		return fmt.Errorf("failed to edit message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrMessageNotFound
	}
	return nil
}

func (r *ChatRepository) DeleteMessage(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.ChatMessage{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrMessageNotFound
	}
	return nil
}

// AddReaction is idempotent on (message, user, emoji); added is false when
// the reaction already existed.
func (r *ChatRepository) AddReaction(ctx context.Context, reaction *models.ChatReaction) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(reaction)
	if res.Error != nil {
		return false, fmt.Errorf("failed to add reaction: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *ChatRepository) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	res := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.ChatReaction{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove reaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrReactionNotFound
	}
	return nil
}
