package models

import "errors"

// Sentinel errors shared by repositories and services.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrChannelNotFound      = errors.New("channel not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrReactionNotFound     = errors.New("reaction not found")
	ErrForbidden            = errors.New("forbidden")
)
