package models

import (
	"time"
)

// NotificationType is an open set; these are the values the platform services emit.
type NotificationType string

const (
	NotificationTaskAssigned     NotificationType = "TASK_ASSIGNED"
	NotificationTaskUpdated      NotificationType = "TASK_UPDATED"
	NotificationProjectUpdated   NotificationType = "PROJECT_UPDATED"
	NotificationCommentAdded     NotificationType = "COMMENT_ADDED"
	NotificationDocumentShared   NotificationType = "DOCUMENT_SHARED"
	NotificationSeminarScheduled NotificationType = "SEMINAR_SCHEDULED"
	NotificationFormSubmitted    NotificationType = "FORM_SUBMITTED"
	NotificationChatMention      NotificationType = "CHAT_MENTION"
	NotificationSystem           NotificationType = "SYSTEM"
)

/** --------------------ENTITIES-------------------- */
// Notification is the durable record. Realtime pushes only echo it.
type Notification struct {
	ID         string           `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	Title      string           `gorm:"not null" json:"title"`
	Message    string           `gorm:"not null" json:"message"`
	Type       NotificationType `gorm:"not null;type:varchar(50)" json:"type"`
	ReceiverID string           `gorm:"not null;type:uuid;index:idx_notifications_receiver_read" json:"receiverId"`
	SenderID   *string          `gorm:"type:uuid" json:"senderId,omitempty"`
	ActionURL  *string          `json:"actionUrl,omitempty"`
	EntityType *string          `gorm:"type:varchar(50)" json:"entityType,omitempty"`
	EntityID   *string          `json:"entityId,omitempty"`
	IsRead     bool             `gorm:"not null;default:false;index:idx_notifications_receiver_read" json:"isRead"`
	ReadAt     *time.Time       `json:"readAt,omitempty"`
	CreatedAt  time.Time        `gorm:"index" json:"createdAt"`

	Sender *User `gorm:"foreignKey:SenderID;references:ID" json:"sender,omitempty"`
}

/** -------------------- DTOs -------------------- */
// CreateNotificationRequest is the input of the internal create endpoint and of
// the notification service.
type CreateNotificationRequest struct {
	Title      string           `json:"title" binding:"required,max=255"`
	Message    string           `json:"message" binding:"required"`
	Type       NotificationType `json:"type" binding:"required"`
	ReceiverID string           `json:"receiverId" binding:"required"`
	SenderID   *string          `json:"senderId,omitempty"`
	ActionURL  *string          `json:"actionUrl,omitempty"`
	EntityType *string          `json:"entityType,omitempty"`
	EntityID   *string          `json:"entityId,omitempty"`
}

// NotificationFilter drives the list endpoint.
type NotificationFilter struct {
	ReceiverID string
	UnreadOnly bool
	Page       int
	Limit      int
}

type NotificationResponse struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Type       NotificationType `json:"type"`
	ActionURL  *string          `json:"actionUrl,omitempty"`
	EntityType *string          `json:"entityType,omitempty"`
	EntityID   *string          `json:"entityId,omitempty"`
	SenderID   *string          `json:"senderId,omitempty"`
	Sender     *UserSummary     `json:"sender,omitempty"`
	IsRead     bool             `json:"isRead"`
	ReadAt     *time.Time       `json:"readAt,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

func (n *Notification) ToResponse() NotificationResponse {
	return NotificationResponse{
		ID:         n.ID,
		Title:      n.Title,
		Message:    n.Message,
		Type:       n.Type,
		ActionURL:  n.ActionURL,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		SenderID:   n.SenderID,
		Sender:     n.Sender.Summary(),
		IsRead:     n.IsRead,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}

type NotificationListResponse struct {
	Items      []NotificationResponse `json:"items"`
	Pagination Pagination             `json:"pagination"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}
