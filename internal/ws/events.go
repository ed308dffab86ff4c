// SPDX-License-Identifier: MIT

// Package ws carries the realtime chat protocol. Clients connect to a room
// socket or the notification socket, exchange JSON events, and every event
// travels through the Redis fanout so all server instances see it.
package ws

import (
	"encoding/json"

	"github.com/parleyhq/parley/internal/domain"
)

// Event types exchanged over the socket.
const (
	EventChatMessage   = "chat.message"
	EventTyping        = "typing.status"
	EventUserStatus    = "user.status"
	EventMessageStatus = "message.status"
	EventMessageRead   = "message.read"
	EventReaction      = "message.reaction"
	EventHistory       = "chat.history"
	EventNotification  = "notification.message"
	EventError         = "error"
)

// Close codes sent when a socket is rejected.
const (
	CloseUnauthorized = 4001
	CloseNotMember    = 4002
	CloseNoRoom       = 4004
)

// Inbound is a client-to-server event. Fields are populated depending on
// Type; unknown types produce an error event back to the sender.
type Inbound struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	MessageID int64  `json:"message_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Typing    bool   `json:"typing,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
}

// Outbound is a server-to-client event, also the shape published on the
// Redis fanout.
type Outbound struct {
	Type      string               `json:"type"`
	RoomID    int64                `json:"room_id,omitempty"`
	Message   *domain.Message      `json:"message,omitempty"`
	Messages  []domain.Message     `json:"messages,omitempty"`
	MessageID int64                `json:"message_id,omitempty"`
	Status    domain.MessageStatus `json:"status,omitempty"`
	UserID    int64                `json:"user_id,omitempty"`
	Username  string               `json:"username,omitempty"`
	Presence  string               `json:"presence,omitempty"`
	Typing    bool                 `json:"typing,omitempty"`
	Reaction  *domain.Reaction     `json:"reaction,omitempty"`
	Removed   bool                 `json:"removed,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func (o Outbound) encode() []byte {
	b, err := json.Marshal(o)
	if err != nil {
		return []byte(`{"type":"error","error":"encode failed"}`)
	}
	return b
}

func errorEvent(msg string) []byte {
	return Outbound{Type: EventError, Error: msg}.encode()
}
