package models

import (
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// ChatMessage is a persisted chat line.
type ChatMessage struct {
	ID        string         `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	ChannelID string         `gorm:"not null;type:uuid;index" json:"channelId"`
	AuthorID  string         `gorm:"not null;type:uuid" json:"authorId"`
	Content   string         `gorm:"not null" json:"content"`
	ParentID  *string        `gorm:"type:uuid" json:"parentId,omitempty"`
	EditedAt  *time.Time     `json:"editedAt,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Author    User           `gorm:"foreignKey:AuthorID;references:ID" json:"-"`
	Reactions []ChatReaction `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
}

// ChatReaction is unique per (message, user, emoji).
type ChatReaction struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	MessageID string    `gorm:"not null;type:uuid;uniqueIndex:idx_reaction" json:"messageId"`
	UserID    string    `gorm:"not null;type:uuid;uniqueIndex:idx_reaction" json:"userId"`
	Emoji     string    `gorm:"not null;type:varchar(32);uniqueIndex:idx_reaction" json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

/** -------------------- DTOs -------------------- */

type PostMessageRequest struct {
	Content  string  `json:"content" binding:"required,max=4000"`
	ParentID *string `json:"parentId,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=32"`
}

type MessageResponse struct {
	ID        string       `json:"id"`
	ChannelID string       `json:"channelId"`
	Content   string       `json:"content"`
	ParentID  *string      `json:"parentId,omitempty"`
	Author    *UserSummary `json:"author,omitempty"`
	EditedAt  *time.Time   `json:"editedAt,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

func (m *ChatMessage) ToResponse() MessageResponse {
	resp := MessageResponse{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		ParentID:  m.ParentID,
		EditedAt:  m.EditedAt,
		CreatedAt: m.CreatedAt,
	}
	if m.Author.ID != "" {
		resp.Author = m.Author.Summary()
	}
	return resp
}
