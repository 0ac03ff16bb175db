// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/brewops/brewops/internal/errdefs"
	"github.com/brewops/brewops/internal/models"
)

// messageColumns selects a message row with both parties' display info
// joined in. Keep in sync with scanMessage.
const messageColumns = `
	m.id, m.sender_id, m.receiver_id, m.body, m.is_read, m.created_at,
	s.name AS sender_name, s.role AS sender_role,
	r.name AS receiver_name, r.role AS receiver_role
	FROM messages m
	JOIN users s ON s.id = m.sender_id
	JOIN users r ON r.id = m.receiver_id`

// scanMessage scans one joined message row.
func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.IsRead,
		&m.CreatedAt, &m.SenderName, &m.SenderRole, &m.ReceiverName, &m.ReceiverRole)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

// CreateMessage persists a new unread message and returns the stored record
// with display info joined in. The body must be non-empty after trimming.
// Self-messages are legal; the store does not forbid sender == receiver.
func (db *DB) CreateMessage(ctx context.Context, senderID, receiverID int64, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errdefs.NewValidation("message", "message body must not be empty")
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, body, is_read, created_at)
		 VALUES (?, ?, ?, 0, ?)`,
		senderID, receiverID, body, time.Now().UTC())
	if err != nil {
		return nil, errdefs.NewStorage("create message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errdefs.NewStorage("create message id", err)
	}

	return db.GetMessage(ctx, id)
}

// GetMessage returns one message by id.
func (db *DB) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT`+messageColumns+` WHERE m.id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.NewNotFound("message", id)
	}
	if err != nil {
		return nil, errdefs.NewStorage("get message", err)
	}
	return m, nil
}

// GetConversation returns the messages between a and b, oldest first,
// paginated. Direction does not matter; both sides of the exchange are
// included.
func (db *DB) GetConversation(ctx context.Context, a, b int64, limit, offset int) ([]models.Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT`+messageColumns+`
		 WHERE (m.sender_id = ? AND m.receiver_id = ?)
		    OR (m.sender_id = ? AND m.receiver_id = ?)
		 ORDER BY m.created_at ASC, m.id ASC
		 LIMIT ? OFFSET ?`,
		a, b, b, a, limit, offset)
	if err != nil {
		return nil, errdefs.NewStorage("get conversation", err)
	}
	defer closeWithLog(rows, "conversation rows")

	return collectMessages(rows, "get conversation")
}

// GetMessagesForUser returns every message where the identity is sender or
// receiver, newest first, paginated.
func (db *DB) GetMessagesForUser(ctx context.Context, userID int64, limit, offset int) ([]models.Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT`+messageColumns+`
		 WHERE m.sender_id = ? OR m.receiver_id = ?
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT ? OFFSET ?`,
		userID, userID, limit, offset)
	if err != nil {
		return nil, errdefs.NewStorage("get messages for user", err)
	}
	defer closeWithLog(rows, "user message rows")

	return collectMessages(rows, "get messages for user")
}

// GetUnreadMessages returns the identity's unread messages, newest first.
func (db *DB) GetUnreadMessages(ctx context.Context, userID int64) ([]models.Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT`+messageColumns+`
		 WHERE m.receiver_id = ? AND m.is_read = 0
		 ORDER BY m.created_at DESC, m.id DESC`,
		userID)
	if err != nil {
		return nil, errdefs.NewStorage("get unread messages", err)
	}
	defer closeWithLog(rows, "unread message rows")

	return collectMessages(rows, "get unread messages")
}

// MarkMessageRead flips one message to read. Idempotent: returns false when
// the message was already read (or does not exist). The transition is
// one-way; there is no way back to unread.
func (db *DB) MarkMessageRead(ctx context.Context, messageID int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE id = ? AND is_read = 0`, messageID)
	if err != nil {
		return false, errdefs.NewStorage("mark message read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errdefs.NewStorage("mark message read rows", err)
	}
	return n > 0, nil
}

// MarkConversationRead flips every unread message sent to readerID from
// partnerID. Messages flowing the other way are untouched. Returns the
// number of rows changed.
func (db *DB) MarkConversationRead(ctx context.Context, readerID, partnerID int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE messages SET is_read = 1
		 WHERE receiver_id = ? AND sender_id = ? AND is_read = 0`,
		readerID, partnerID)
	if err != nil {
		return 0, errdefs.NewStorage("mark conversation read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errdefs.NewStorage("mark conversation read rows", err)
	}
	return n, nil
}

// CountUnread returns how many unread messages the identity has.
func (db *DB) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, errdefs.NewStorage("count unread", err)
	}
	return n, nil
}

// DeleteMessage removes a message. Returns whether a row was deleted.
func (db *DB) DeleteMessage(ctx context.Context, id int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return false, errdefs.NewStorage("delete message", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errdefs.NewStorage("delete message rows", err)
	}
	return n > 0, nil
}

// MessageStats summarizes sent/received/unread totals for an identity.
func (db *DB) MessageStats(ctx context.Context, userID int64) (*models.MessageStats, error) {
	stats := &models.MessageStats{}
	err := db.conn.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM messages WHERE sender_id = ?),
			(SELECT COUNT(*) FROM messages WHERE receiver_id = ?),
			(SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = 0)`,
		userID, userID, userID).
		Scan(&stats.TotalSent, &stats.TotalReceived, &stats.Unread)
	if err != nil {
		return nil, errdefs.NewStorage("message stats", err)
	}
	return stats, nil
}

// collectMessages drains joined message rows.
func collectMessages(rows *sql.Rows, op string) ([]models.Message, error) {
	var out []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, errdefs.NewStorage(op, err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.NewStorage(op, err)
	}
	return out, nil
}
