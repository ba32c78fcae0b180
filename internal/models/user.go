package models

import (
	"time"

	"gorm.io/gorm"
)

// Role values carried in access tokens.
const (
	RoleAdmin      = "ADMIN"
	RoleResearcher = "RESEARCHER"
	RoleManager    = "MANAGER"
	RoleGuest      = "GUEST"
)

/** --------------------ENTITIES-------------------- */
// User is the platform account. Soft-deleted or inactive users cannot open sockets.
type User struct {
	ID        string         `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Username  string         `gorm:"uniqueIndex;not null" json:"username"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Password  string         `json:"-"` // bcrypt hash
	Role      string         `gorm:"not null;default:RESEARCHER" json:"role"`
	Avatar    string         `json:"avatar,omitempty"`
	IsActive  bool           `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// DisplayName falls back to the username when no full name is set.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

/** -------------------- DTOs -------------------- */
// UserSummary is the sender block embedded in pushed notifications and chat events.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.DisplayName(), Avatar: u.Avatar}
}
