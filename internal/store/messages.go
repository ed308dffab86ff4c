// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/parleyhq/parley/internal/domain"
)

// Messages provides access to messages, reads and reactions.
type Messages struct {
	db *sql.DB
}

// NewMessages creates a message store over db.
func NewMessages(db *sql.DB) *Messages {
	return &Messages{db: db}
}

const messageColumns = `
	m.id, m.room_id, m.sender_id, u.username, m.content, m.status,
	m.created_at, m.deleted_at, m.attachment_path, m.attachment_type`

func scanMessage(row interface{ Scan(...any) error }) (domain.Message, error) {
	var msg domain.Message
	var deletedAt sql.NullTime
	err := row.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName,
		&msg.Content, &msg.Status, &msg.CreatedAt, &deletedAt,
		&msg.AttachmentPath, &msg.AttachmentType)
	if err != nil {
		return domain.Message{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		msg.DeletedAt = &t
	}
	if msg.Deleted() {
		msg.Content = ""
		msg.AttachmentPath = ""
		msg.AttachmentType = ""
	}
	return msg, nil
}

// Create stores a new message with the given initial status.
func (s *Messages) Create(ctx context.Context, roomID, senderID int64, content string, status domain.MessageStatus, attachmentPath, attachmentType string) (domain.Message, error) {
	if !status.Valid() {
		return domain.Message{}, fmt.Errorf("status %q: %w", status, domain.ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (room_id, sender_id, content, status, attachment_path, attachment_type)
		VALUES (?, ?, ?, ?, ?, ?)`,
		roomID, senderID, content, status, attachmentPath, attachmentType)
	if err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Message{}, fmt.Errorf("message id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns a single message by id.
func (s *Messages) Get(ctx context.Context, id int64) (domain.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("select message: %w", err)
	}
	msg.Reactions, err = s.reactionsFor(ctx, msg.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// ListByRoom returns up to limit messages, oldest first. When before is
// nonzero only messages with a smaller id are returned, which pages
// backwards through history.
func (s *Messages) ListByRoom(ctx context.Context, roomID int64, limit int, before int64) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT ` + messageColumns + `
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.room_id = ?`
	args := []any{roomID}
	if before > 0 {
		q += ` AND m.id < ?`
		args = append(args, before)
	}
	q += ` ORDER BY m.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query walks backwards from the newest, replay wants oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	for i := range msgs {
		msgs[i].Reactions, err = s.reactionsFor(ctx, msgs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// AdvanceStatus moves a message's status forward. Backward or sideways
// transitions are ignored, so concurrent delivered/seen updates are safe.
func (s *Messages) AdvanceStatus(ctx context.Context, id int64, next domain.MessageStatus) (bool, error) {
	if !next.Valid() {
		return false, fmt.Errorf("status %q: %w", next, domain.ErrInvalidInput)
	}

	var current domain.MessageStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM messages WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("select status: %w", err)
	}
	if !current.CanAdvanceTo(next) {
		return false, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE id = ? AND status = ?`,
		next, id, current)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkRoomDelivered advances every sent message in a room to delivered,
// returning the ids that changed. Used when a recipient connects.
func (s *Messages) MarkRoomDelivered(ctx context.Context, roomID, recipientID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM messages
		WHERE room_id = ? AND status = 'sent' AND sender_id != ?
		ORDER BY id`, roomID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("select undelivered: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE messages SET status = 'delivered'
		WHERE room_id = ? AND status = 'sent' AND sender_id != ?`,
		roomID, recipientID); err != nil {
		return nil, fmt.Errorf("mark delivered: %w", err)
	}
	return ids, nil
}

// SoftDelete marks a message deleted. Only the sender may delete their own
// message; anyone else gets ErrNotFound so message ids cannot be probed.
func (s *Messages) SoftDelete(ctx context.Context, id, senderID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND sender_id = ? AND deleted_at IS NULL`,
		id, senderID)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkRead records that a user has read a message and advances the message
// to seen. Re-reading is a no-op.
func (s *Messages) MarkRead(ctx context.Context, messageID, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO message_reads (message_id, user_id) VALUES (?, ?)
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		messageID, userID); err != nil {
		return fmt.Errorf("insert read: %w", err)
	}
	if _, err := s.AdvanceStatus(ctx, messageID, domain.StatusSeen); err != nil {
		return err
	}
	return nil
}

// AddReaction attaches an emoji to a message. Reacting twice with the same
// emoji returns ErrAlreadyExists.
func (s *Messages) AddReaction(ctx context.Context, messageID, userID int64, emoji string) (domain.Reaction, error) {
	if emoji == "" {
		return domain.Reaction{}, fmt.Errorf("empty emoji: %w", domain.ErrInvalidInput)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO reactions (message_id, user_id, emoji) VALUES (?, ?, ?)`,
		messageID, userID, emoji); err != nil {
		if isUniqueViolation(err) {
			return domain.Reaction{}, fmt.Errorf("reaction: %w", domain.ErrAlreadyExists)
		}
		return domain.Reaction{}, fmt.Errorf("insert reaction: %w", err)
	}

	var r domain.Reaction
	err := s.db.QueryRowContext(ctx, `
		SELECT r.message_id, r.user_id, u.username, r.emoji, r.created_at
		FROM reactions r JOIN users u ON u.id = r.user_id
		WHERE r.message_id = ? AND r.user_id = ? AND r.emoji = ?`,
		messageID, userID, emoji).
		Scan(&r.MessageID, &r.UserID, &r.Username, &r.Emoji, &r.CreatedAt)
	if err != nil {
		return domain.Reaction{}, fmt.Errorf("select reaction: %w", err)
	}
	return r, nil
}

// RemoveReaction detaches a user's emoji from a message.
func (s *Messages) RemoveReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ?`,
		messageID, userID, emoji)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reaction: %w", domain.ErrNotFound)
	}
	return nil
}

func (s *Messages) reactionsFor(ctx context.Context, messageID int64) ([]domain.Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.message_id, r.user_id, u.username, r.emoji, r.created_at
		FROM reactions r JOIN users u ON u.id = r.user_id
		WHERE r.message_id = ?
		ORDER BY r.id`, messageID)
	if err != nil {
		return nil, fmt.Errorf("select reactions: %w", err)
	}
	defer rows.Close()

	var reactions []domain.Reaction
	for rows.Next() {
		var r domain.Reaction
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Username, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}

// lastMessage returns the newest message in a room, or nil when empty.
func lastMessage(ctx context.Context, db *sql.DB, roomID int64) (*domain.Message, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.room_id = ?
		ORDER BY m.id DESC LIMIT 1`, roomID)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select last message: %w", err)
	}
	return &msg, nil
}
