package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cra-notify/internal/models"
)

// EventName is the value of the "event" field of every frame.
type EventName string

// Server -> client
const (
	EventConnectionStatus          EventName = "connection_status"
	EventNewNotification           EventName = "new_notification"
	EventUnreadCountUpdated        EventName = "unread_count_updated"
	EventNotificationReadConfirmed EventName = "notification_read_confirmed"
	EventError                     EventName = "error"
	EventAnnouncement              EventName = "announcement"

	EventChatNewMessage      EventName = "chat:new_message"
	EventChatMessageUpdated  EventName = "chat:message_updated"
	EventChatMessageDeleted  EventName = "chat:message_deleted"
	EventChatReactionAdded   EventName = "chat:reaction_added"
	EventChatReactionRemoved EventName = "chat:reaction_removed"
	EventChatUserTyping      EventName = "chat:user_typing"
	EventChatUserJoined      EventName = "chat:user_joined"
	EventChatUserLeft        EventName = "chat:user_left"
	EventChatChannelUpdated  EventName = "chat:channel_updated"
	EventChatMention         EventName = "chat:mention"
)

// Client -> server
const (
	EventMarkNotificationRead EventName = "mark_notification_read"
	EventGetUnreadCount       EventName = "get_unread_count"
	EventJoinRoom             EventName = "join_room"
	EventLeaveRoom            EventName = "leave_room"
	EventChatJoinChannel      EventName = "chat:join_channel"
	EventChatLeaveChannel     EventName = "chat:leave_channel"
	EventChatTypingStart      EventName = "chat:typing_start"
	EventChatTypingStop       EventName = "chat:typing_stop"
)

func (e EventName) String() string {
	return string(e)
}

var ErrUnknownEvent = errors.New("unknown event")

// Event is implemented by every payload the server pushes.
type Event interface {
	EventName() EventName
}

type ConnectionStatus struct {
	Connected bool      `json:"connected"`
	UserID    string    `json:"userId"`
	SocketID  string    `json:"socketId"`
	Timestamp time.Time `json:"timestamp"`
}

type NewNotification struct {
	models.NotificationResponse
	DeliveredAt time.Time `json:"deliveredAt"`
}

type UnreadCountUpdated struct {
	Count int64 `json:"count"`
}

type NotificationReadConfirmed struct {
	NotificationID string    `json:"notificationId"`
	Timestamp      time.Time `json:"timestamp"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

type Announcement struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Level     string    `json:"level,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatNewMessage struct {
	models.MessageResponse
}

type ChatMessageUpdated struct {
	models.MessageResponse
}

type ChatMessageDeleted struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

type ChatReaction struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

type ChatReactionAdded struct{ ChatReaction }

type ChatReactionRemoved struct{ ChatReaction }

type ChatUserTyping struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	IsTyping  bool   `json:"isTyping"`
}

type ChatPresence struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
}

type ChatUserJoined struct{ ChatPresence }

type ChatUserLeft struct{ ChatPresence }

type ChatChannelUpdated struct {
	models.ChannelResponse
}

type ChatMention struct {
	ChannelID string              `json:"channelId"`
	MessageID string              `json:"messageId"`
	Author    *models.UserSummary `json:"author,omitempty"`
	Excerpt   string              `json:"excerpt"`
	CreatedAt time.Time           `json:"createdAt"`
}

func (ConnectionStatus) EventName() EventName          { return EventConnectionStatus }
func (NewNotification) EventName() EventName           { return EventNewNotification }
func (UnreadCountUpdated) EventName() EventName        { return EventUnreadCountUpdated }
func (NotificationReadConfirmed) EventName() EventName { return EventNotificationReadConfirmed }
func (ErrorEvent) EventName() EventName                { return EventError }
func (Announcement) EventName() EventName              { return EventAnnouncement }
func (ChatNewMessage) EventName() EventName            { return EventChatNewMessage }
func (ChatMessageUpdated) EventName() EventName        { return EventChatMessageUpdated }
func (ChatMessageDeleted) EventName() EventName        { return EventChatMessageDeleted }
func (ChatReactionAdded) EventName() EventName         { return EventChatReactionAdded }
func (ChatReactionRemoved) EventName() EventName       { return EventChatReactionRemoved }
func (ChatUserTyping) EventName() EventName            { return EventChatUserTyping }
func (ChatUserJoined) EventName() EventName            { return EventChatUserJoined }
func (ChatUserLeft) EventName() EventName              { return EventChatUserLeft }
func (ChatChannelUpdated) EventName() EventName        { return EventChatChannelUpdated }
func (ChatMention) EventName() EventName               { return EventChatMention }

// Envelope is the frame shape on the wire in both directions.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps an event in its envelope.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(struct {
		Event EventName `json:"event"`
		Data  Event     `json:"data"`
	}{Event: e.EventName(), Data: e})
}

// ClientEvent is implemented by every payload a client may send.
type ClientEvent interface {
	clientEvent() EventName
}

type MarkNotificationRead struct {
	NotificationID string `json:"notificationId"`
}

type GetUnreadCount struct{}

type RoomRequest struct {
	RoomType string `json:"roomType"`
	RoomID   string `json:"roomId"`
}

type JoinRoom struct{ RoomRequest }

type LeaveRoom struct{ RoomRequest }

type ChannelRequest struct {
	ChannelID string `json:"channelId"`
}

type JoinChannel struct{ ChannelRequest }

type LeaveChannel struct{ ChannelRequest }

type TypingRequest struct {
	ChannelID string `json:"channelId"`
	UserName  string `json:"userName"`
}

type TypingStart struct{ TypingRequest }

type TypingStop struct{ TypingRequest }

func (MarkNotificationRead) clientEvent() EventName { return EventMarkNotificationRead }
func (GetUnreadCount) clientEvent() EventName       { return EventGetUnreadCount }
func (JoinRoom) clientEvent() EventName             { return EventJoinRoom }
func (LeaveRoom) clientEvent() EventName            { return EventLeaveRoom }
func (JoinChannel) clientEvent() EventName          { return EventChatJoinChannel }
func (LeaveChannel) clientEvent() EventName         { return EventChatLeaveChannel }
func (TypingStart) clientEvent() EventName          { return EventChatTypingStart }
func (TypingStop) clientEvent() EventName           { return EventChatTypingStop }

// DecodeClientEvent parses one inbound frame into its typed variant.
func DecodeClientEvent(raw []byte) (ClientEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}

	var ev ClientEvent
	switch env.Event {
	case EventMarkNotificationRead:
		var p MarkNotificationRead
		if err := decodeData(env.Data, &p); err != nil {
			return nil, err
		}
		if p.NotificationID == "" {
			return nil, errors.New("notificationId is required")
		}
		ev = p
	case EventGetUnreadCount:
		ev = GetUnreadCount{}
	case EventJoinRoom, EventLeaveRoom:
		var p RoomRequest
		if err := decodeData(env.Data, &p); err != nil {
			return nil, err
		}
		if p.RoomType == "" || p.RoomID == "" {
			return nil, errors.New("roomType and roomId are required")
		}
		if env.Event == EventJoinRoom {
			ev = JoinRoom{p}
		} else {
			ev = LeaveRoom{p}
		}
	case EventChatJoinChannel, EventChatLeaveChannel:
		var p ChannelRequest
		if err := decodeData(env.Data, &p); err != nil {
			return nil, err
		}
		if p.ChannelID == "" {
			return nil, errors.New("channelId is required")
		}
		if env.Event == EventChatJoinChannel {
			ev = JoinChannel{p}
		} else {
			ev = LeaveChannel{p}
		}
	case EventChatTypingStart, EventChatTypingStop:
		var p TypingRequest
		if err := decodeData(env.Data, &p); err != nil {
			return nil, err
		}
		if p.ChannelID == "" {
			return nil, errors.New("channelId is required")
		}
		if env.Event == EventChatTypingStart {
			ev = TypingStart{p}
		} else {
			ev = TypingStop{p}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return ev, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	return nil
}
