// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/parleyhq/parley/internal/domain"
)

// Rooms provides access to rooms and memberships.
type Rooms struct {
	db *sql.DB
}

// NewRooms creates a room store over db.
func NewRooms(db *sql.DB) *Rooms {
	return &Rooms{db: db}
}

// CreateGroup creates a named group room. The creator joins as admin, the
// optional memberIDs join as members.
func (s *Rooms) CreateGroup(ctx context.Context, name string, creatorID int64, memberIDs []int64) (domain.Room, error) {
	if name == "" {
		return domain.Room{}, domain.ErrGroupNeedsName
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Room{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (name, type) VALUES (?, 'group')`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Room{}, fmt.Errorf("group %q: %w", name, domain.ErrAlreadyExists)
		}
		return domain.Room{}, fmt.Errorf("insert room: %w", err)
	}
	roomID, err := res.LastInsertId()
	if err != nil {
		return domain.Room{}, fmt.Errorf("room id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memberships (user_id, room_id, role) VALUES (?, ?, 'admin')`,
		creatorID, roomID); err != nil {
		return domain.Room{}, fmt.Errorf("insert creator membership: %w", err)
	}
	for _, uid := range memberIDs {
		if uid == creatorID {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memberships (user_id, room_id, role) VALUES (?, ?, 'member')`,
			uid, roomID); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return domain.Room{}, fmt.Errorf("insert member %d: %w", uid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Room{}, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, roomID)
}

// GetOrCreateDirect returns the direct room between a and b, creating it if
// needed. Both members become admins. The second return value reports
// whether the room was created by this call.
func (s *Rooms) GetOrCreateDirect(ctx context.Context, a, b int64) (domain.Room, bool, error) {
	if a == b {
		return domain.Room{}, false, fmt.Errorf("direct room with self: %w", domain.ErrInvalidInput)
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}

	var roomID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT room_id FROM direct_pairs WHERE user_lo = ? AND user_hi = ?`, lo, hi).Scan(&roomID)
	switch {
	case err == nil:
		room, err := s.GetByID(ctx, roomID)
		return room, false, err
	case errors.Is(err, sql.ErrNoRows):
		// fall through to create
	default:
		return domain.Room{}, false, fmt.Errorf("lookup direct pair: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Room{}, false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO rooms (type) VALUES ('direct')`)
	if err != nil {
		return domain.Room{}, false, fmt.Errorf("insert room: %w", err)
	}
	roomID, err = res.LastInsertId()
	if err != nil {
		return domain.Room{}, false, fmt.Errorf("room id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO direct_pairs (room_id, user_lo, user_hi) VALUES (?, ?, ?)`,
		roomID, lo, hi); err != nil {
		// Lost a race with a concurrent create: use the winner's room.
		if isUniqueViolation(err) {
			_ = tx.Rollback()
			var existing int64
			if qerr := s.db.QueryRowContext(ctx,
				`SELECT room_id FROM direct_pairs WHERE user_lo = ? AND user_hi = ?`, lo, hi).Scan(&existing); qerr == nil {
				room, gerr := s.GetByID(ctx, existing)
				return room, false, gerr
			}
		}
		return domain.Room{}, false, fmt.Errorf("insert direct pair: %w", err)
	}

	for _, uid := range []int64{a, b} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memberships (user_id, room_id, role) VALUES (?, ?, 'admin')`,
			uid, roomID); err != nil {
			return domain.Room{}, false, fmt.Errorf("insert membership %d: %w", uid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Room{}, false, fmt.Errorf("commit: %w", err)
	}
	room, err := s.GetByID(ctx, roomID)
	return room, true, err
}

// GetByID returns a room with its members populated.
func (s *Rooms) GetByID(ctx context.Context, id int64) (domain.Room, error) {
	var room domain.Room
	var name sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, created_at FROM rooms WHERE id = ?`, id).
		Scan(&room.ID, &name, &room.Type, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, fmt.Errorf("room %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("select room: %w", err)
	}
	room.Name = name.String

	members, err := s.Members(ctx, id)
	if err != nil {
		return domain.Room{}, err
	}
	room.Members = members
	return room, nil
}

// Members returns the members of a room ordered by join time.
func (s *Rooms) Members(ctx context.Context, roomID int64) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.user_id, u.username, u.avatar_url, m.role, m.joined_at, m.role_changed_at
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?
		ORDER BY m.joined_at, m.id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		var roleSince sql.NullTime
		if err := rows.Scan(&m.UserID, &m.Username, &m.AvatarURL, &m.Role, &m.JoinedAt, &roleSince); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if roleSince.Valid {
			t := roleSince.Time
			m.RoleSince = &t
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListForUser returns the rooms the user belongs to, newest first, each with
// members and last message populated.
func (s *Rooms) ListForUser(ctx context.Context, userID int64) ([]domain.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.type, r.created_at
		FROM rooms r
		JOIN memberships m ON m.room_id = r.id
		WHERE m.user_id = ?
		ORDER BY r.created_at DESC, r.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select rooms: %w", err)
	}
	defer rows.Close()

	var result []domain.Room
	for rows.Next() {
		var room domain.Room
		var name sql.NullString
		if err := rows.Scan(&room.ID, &name, &room.Type, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		room.Name = name.String
		result = append(result, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		members, err := s.Members(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Members = members

		last, err := lastMessage(ctx, s.db, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].LastMessage = last
	}
	return result, nil
}

// Role returns the caller's role in the room, or ErrNotMember.
func (s *Rooms) Role(ctx context.Context, roomID, userID int64) (domain.Role, error) {
	var role domain.Role
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM memberships WHERE room_id = ? AND user_id = ?`,
		roomID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotMember
	}
	if err != nil {
		return "", fmt.Errorf("select role: %w", err)
	}
	return role, nil
}

// IsMember reports whether the user belongs to the room.
func (s *Rooms) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	_, err := s.Role(ctx, roomID, userID)
	if errors.Is(err, domain.ErrNotMember) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddMember adds a user to a group room. Returns ErrAlreadyExists if the
// user is already a member.
func (s *Rooms) AddMember(ctx context.Context, roomID, userID int64, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("role %q: %w", role, domain.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (user_id, room_id, role) VALUES (?, ?, ?)`,
		userID, roomID, role)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %d in room %d: %w", userID, roomID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// adminCount counts admins inside an open transaction.
func adminCount(ctx context.Context, tx *sql.Tx, roomID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM memberships WHERE room_id = ? AND role = 'admin'`, roomID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

// Leave removes the caller from the room. When the caller is the last
// admin the whole room is deleted; the boolean reports that outcome.
func (s *Rooms) Leave(ctx context.Context, roomID, userID int64) (roomDeleted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var role domain.Role
	err = tx.QueryRowContext(ctx,
		`SELECT role FROM memberships WHERE room_id = ? AND user_id = ?`,
		roomID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrNotMember
	}
	if err != nil {
		return false, fmt.Errorf("select role: %w", err)
	}

	if role == domain.RoleAdmin {
		admins, err := adminCount(ctx, tx, roomID)
		if err != nil {
			return false, err
		}
		if admins <= 1 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, roomID); err != nil {
				return false, fmt.Errorf("delete room: %w", err)
			}
			return true, tx.Commit()
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memberships WHERE room_id = ? AND user_id = ?`, roomID, userID); err != nil {
		return false, fmt.Errorf("delete membership: %w", err)
	}
	return false, tx.Commit()
}

// RemoveMember removes another user from the room. Removing the last admin
// is rejected with ErrLastAdmin.
func (s *Rooms) RemoveMember(ctx context.Context, roomID, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var role domain.Role
	err = tx.QueryRowContext(ctx,
		`SELECT role FROM memberships WHERE room_id = ? AND user_id = ?`,
		roomID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotMember
	}
	if err != nil {
		return fmt.Errorf("select role: %w", err)
	}

	if role == domain.RoleAdmin {
		admins, err := adminCount(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return domain.ErrLastAdmin
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memberships WHERE room_id = ? AND user_id = ?`, roomID, userID); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return tx.Commit()
}

// UpdateRole changes a member's role and stamps the change time. Demoting
// the last admin is rejected with ErrLastAdmin.
func (s *Rooms) UpdateRole(ctx context.Context, roomID, userID int64, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("role %q: %w", role, domain.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.Role
	err = tx.QueryRowContext(ctx,
		`SELECT role FROM memberships WHERE room_id = ? AND user_id = ?`,
		roomID, userID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotMember
	}
	if err != nil {
		return fmt.Errorf("select role: %w", err)
	}
	if current == role {
		return nil
	}

	if current == domain.RoleAdmin && role == domain.RoleMember {
		admins, err := adminCount(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return domain.ErrLastAdmin
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE memberships SET role = ?, role_changed_at = CURRENT_TIMESTAMP
		 WHERE room_id = ? AND user_id = ?`, role, roomID, userID); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return tx.Commit()
}
