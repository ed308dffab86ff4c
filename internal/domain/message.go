// SPDX-License-Identifier: MIT

package domain

import "time"

// MessageStatus tracks message delivery progress.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusSeen      MessageStatus = "seen"
)

// rank orders statuses so updates never move backwards.
func (s MessageStatus) rank() int {
	switch s {
	case StatusSending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	}
	return -1
}

// Valid reports whether s is an accepted status.
func (s MessageStatus) Valid() bool {
	return s.rank() >= 0
}

// CanAdvanceTo reports whether a transition from s to next is forward-moving.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.Valid() && next.rank() > s.rank()
}

// Message is a single chat message within a room.
type Message struct {
	ID             int64         `json:"id"`
	RoomID         int64         `json:"room_id"`
	SenderID       int64         `json:"sender_id"`
	SenderName     string        `json:"sender"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	DeletedAt      *time.Time    `json:"deleted_at,omitempty"`
	AttachmentPath string        `json:"attachment_path,omitempty"`
	AttachmentType string        `json:"attachment_type,omitempty"`
	Reactions      []Reaction    `json:"reactions,omitempty"`
}

// Deleted reports whether the message has been soft-deleted.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Reaction is an emoji attached to a message by a user. A user may react
// with a given emoji at most once per message.
type Reaction struct {
	MessageID int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}
