package websocket

import (
	"errors"
	"time"

	"cra-notify/internal/models"
)

// HandleFrame decodes one inbound frame and runs its handler on the caller's
// goroutine. Handler failures are reported to the sending socket only and
// never close the connection.
func (h *Hub) HandleFrame(c *Client, raw []byte) {
	ev, err := DecodeClientEvent(raw)
	if err != nil {
		h.logger.Debug("Rejected client frame", "clientID", c.id, "userID", c.userID, "error", err)
		c.sendError(err.Error())
		return
	}

	switch e := ev.(type) {
	case MarkNotificationRead:
		h.handleMarkRead(c, e)
	case GetUnreadCount:
		h.handleGetUnreadCount(c)
	case JoinRoom:
		h.JoinRoom(c, e.RoomType, e.RoomID)
	case LeaveRoom:
		h.LeaveRoom(c, e.RoomType, e.RoomID)
	case JoinChannel:
		h.handleJoinChannel(c, e)
	case LeaveChannel:
		h.handleLeaveChannel(c, e)
	case TypingStart:
		h.handleTyping(c, e.TypingRequest, true)
	case TypingStop:
		h.handleTyping(c, e.TypingRequest, false)
	}
}

func (h *Hub) handleMarkRead(c *Client, e MarkNotificationRead) {
	n, err := h.notifications.FindByID(c.ctx, e.NotificationID)
	if errors.Is(err, models.ErrNotificationNotFound) {
		c.sendError("Notification not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load notification", "notificationID", e.NotificationID, "userID", c.userID, "error", err)
		c.sendError("Failed to mark notification as read")
		return
	}
	if n.ReceiverID != c.userID {
		h.logger.Warn("Mark-read on foreign notification", "notificationID", e.NotificationID, "userID", c.userID)
		c.sendError("Notification does not belong to the current user")
		return
	}

	now := time.Now().UTC()
	if err := h.notifications.MarkRead(c.ctx, n.ID, now); err != nil {
		h.logger.Error("Failed to mark notification as read", "notificationID", n.ID, "userID", c.userID, "error", err)
		c.sendError("Failed to mark notification as read")
		return
	}

	_ = c.Send(NotificationReadConfirmed{NotificationID: n.ID, Timestamp: now})
	h.pushUnreadCount(c.ctx, c.userID)
}

func (h *Hub) handleGetUnreadCount(c *Client) {
	count, err := h.notifications.CountUnread(c.ctx, c.userID)
	if err != nil {
		h.logger.Error("Failed to count unread notifications", "userID", c.userID, "error", err)
		c.sendError("Failed to get unread count")
		return
	}
	_ = c.Send(UnreadCountUpdated{Count: count})
}

func (h *Hub) handleJoinChannel(c *Client, e JoinChannel) {
	if h.channels != nil {
		member, err := h.channels.IsMember(c.ctx, e.ChannelID, c.userID)
		if err != nil {
			h.logger.Error("Failed to check channel membership", "channelID", e.ChannelID, "userID", c.userID, "error", err)
			c.sendError("Failed to join channel")
			return
		}
		if !member {
			c.sendError("Not a member of this channel")
			return
		}
	}

	h.JoinRoom(c, RoomKindChannel, e.ChannelID)
	h.SendToRoom(RoomKindChannel, e.ChannelID, ChatUserJoined{ChatPresence{ChannelID: e.ChannelID, UserID: c.userID}}, c.userID)
}

func (h *Hub) handleLeaveChannel(c *Client, e LeaveChannel) {
	h.LeaveRoom(c, RoomKindChannel, e.ChannelID)
	h.SendToRoom(RoomKindChannel, e.ChannelID, ChatUserLeft{ChatPresence{ChannelID: e.ChannelID, UserID: c.userID}}, c.userID)
}

// handleTyping relays to the rest of the channel room. Nothing is stored and
// the client owns the expiry.
func (h *Hub) handleTyping(c *Client, req TypingRequest, typing bool) {
	if !h.inRoom(c, RoomKey(RoomKindChannel, req.ChannelID)) {
		c.sendError("Join the channel before sending typing events")
		return
	}

	name := req.UserName
	if name == "" {
		name = c.name
	}
	h.SendToRoom(RoomKindChannel, req.ChannelID, ChatUserTyping{
		ChannelID: req.ChannelID,
		UserID:    c.userID,
		UserName:  name,
		IsTyping:  typing,
	}, c.userID)
}
