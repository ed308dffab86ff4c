// SPDX-License-Identifier: MIT

package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrNotMember      = errors.New("not a member of this room")
	ErrNotAdmin       = errors.New("admin role required")
	ErrLastAdmin      = errors.New("cannot remove the last admin")
	ErrGroupNeedsName = errors.New("group rooms require a name")
	ErrDirectNamed    = errors.New("direct rooms must not have a name")
	ErrInvalidInput   = errors.New("invalid input")
)
