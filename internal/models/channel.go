package models

import (
	"time"

	"gorm.io/gorm"
)

// Channel type constants
const (
	ChannelTypeDirect  = "direct"
	ChannelTypeGroup   = "group"
	ChannelTypeProject = "project"
)

// ChatChannel is a chat room; realtime events go to `channel:<id>`.
type ChatChannel struct {
	ID        string         `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Type      string         `gorm:"not null;type:varchar(20);check:type IN ('direct', 'group', 'project')" json:"type"`
	ProjectID *string        `gorm:"type:uuid;index" json:"projectId,omitempty"`
	CreatorID string         `gorm:"not null;type:uuid" json:"creatorId"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ChatChannelMember is an active member while LeftAt is nil.
type ChatChannelMember struct {
	ID        string     `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	ChannelID string     `gorm:"not null;type:uuid;uniqueIndex:idx_channel_member" json:"channelId"`
	UserID    string     `gorm:"not null;type:uuid;uniqueIndex:idx_channel_member" json:"userId"`
	Role      string     `gorm:"not null;default:MEMBER" json:"role"`
	JoinedAt  time.Time  `gorm:"autoCreateTime" json:"joinedAt"`
	LeftAt    *time.Time `json:"leftAt,omitempty"`

	User User `gorm:"foreignKey:UserID;references:ID" json:"user"`
}

/** -------------------- DTOs -------------------- */

type UpdateChannelRequest struct {
	Name string `json:"name" binding:"required"`
}

type ChannelResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	ProjectID *string `json:"projectId,omitempty"`
	CreatorID string  `json:"creatorId"`
}

func (c *ChatChannel) ToResponse() ChannelResponse {
	return ChannelResponse{ID: c.ID, Name: c.Name, Type: c.Type, ProjectID: c.ProjectID, CreatorID: c.CreatorID}
}
