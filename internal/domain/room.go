// SPDX-License-Identifier: MIT

package domain

import "time"

// RoomType distinguishes one-to-one conversations from named groups.
type RoomType string

const (
	RoomDirect RoomType = "direct"
	RoomGroup  RoomType = "group"
)

// Valid reports whether t is an accepted room type.
func (t RoomType) Valid() bool {
	return t == RoomDirect || t == RoomGroup
}

// Room is a conversation. Direct rooms are unnamed and hold exactly two
// members; group rooms carry a unique name.
type Room struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name,omitempty"`
	Type        RoomType  `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
	Members     []Member  `json:"members,omitempty"`
	LastMessage *Message  `json:"last_message,omitempty"`
}

// Role is a member's permission level within a room.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is an accepted role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Member is a user's membership in a room.
type Member struct {
	UserID    int64      `json:"user_id"`
	Username  string     `json:"username"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	Role      Role       `json:"role"`
	JoinedAt  time.Time  `json:"joined_at"`
	RoleSince *time.Time `json:"role_changed_at,omitempty"`
}
