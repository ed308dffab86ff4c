// SPDX-License-Identifier: MIT

package store

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order; user_version tracks progress.
var migrations = []string{
	`
	CREATE TABLE users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT    NOT NULL UNIQUE,
		email         TEXT    NOT NULL UNIQUE,
		password_hash TEXT    NOT NULL,
		avatar_url    TEXT    NOT NULL DEFAULT '',
		active        INTEGER NOT NULL DEFAULT 1,
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX idx_users_email ON users(email);

	CREATE TABLE rooms (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT,
		type       TEXT    NOT NULL CHECK (type IN ('direct','group')),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE UNIQUE INDEX idx_rooms_group_name ON rooms(name) WHERE type = 'group';

	-- Enforces one direct room per unordered user pair.
	CREATE TABLE direct_pairs (
		room_id  INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		user_lo  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		user_hi  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (user_lo, user_hi),
		CHECK (user_lo < user_hi)
	);

	CREATE TABLE memberships (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id         INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		room_id         INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		role            TEXT    NOT NULL DEFAULT 'member' CHECK (role IN ('admin','member')),
		joined_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		role_changed_at TIMESTAMP,
		UNIQUE (user_id, room_id)
	);
	CREATE INDEX idx_memberships_room ON memberships(room_id);

	CREATE TABLE messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id         INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		sender_id       INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content         TEXT    NOT NULL,
		status          TEXT    NOT NULL DEFAULT 'sending'
		                CHECK (status IN ('sending','sent','delivered','seen')),
		created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at      TIMESTAMP,
		attachment_path TEXT NOT NULL DEFAULT '',
		attachment_type TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX idx_messages_room_created ON messages(room_id, created_at);
	CREATE INDEX idx_messages_status ON messages(status);

	CREATE TABLE message_reads (
		message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		read_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (message_id, user_id)
	);

	CREATE TABLE reactions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		emoji      TEXT    NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (message_id, user_id, emoji)
	);
	`,
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("bump user_version to %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}
