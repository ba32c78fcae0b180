package models

import (
	"time"

	"gorm.io/gorm"
)

// Project is the unit whose members share a `project:<id>` realtime room.
type Project struct {
	ID        string         `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	Code      string         `gorm:"uniqueIndex;not null" json:"code"`
	Title     string         `gorm:"not null" json:"title"`
	CreatorID string         `gorm:"not null;type:uuid;index" json:"creatorId"`
	Status    string         `gorm:"not null;default:PLANNING" json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Participants []ProjectParticipant `gorm:"foreignKey:ProjectID" json:"participants,omitempty"`
}

// ProjectParticipant links a user to a project. Only active rows grant room membership.
type ProjectParticipant struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	ProjectID string    `gorm:"not null;type:uuid;uniqueIndex:idx_project_participant" json:"projectId"`
	UserID    string    `gorm:"not null;type:uuid;uniqueIndex:idx_project_participant;index" json:"userId"`
	Role      string    `gorm:"not null;default:MEMBER" json:"role"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}
