// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/brewops/brewops/internal/errdefs"
	"github.com/brewops/brewops/internal/models"
)

// CreateNotification persists a notification. Title and body are required;
// exactly one of UserID / Role must be set. Priority defaults to medium.
func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n.Title == "" {
		return nil, errdefs.NewValidation("title", "notification title is required")
	}
	if n.Body == "" {
		return nil, errdefs.NewValidation("message", "notification message is required")
	}
	if (n.UserID == nil) == (n.Role == "") {
		return nil, errdefs.NewValidation("target", "exactly one of user_id or role must be set")
	}
	priority := n.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	var role any
	if n.Role != "" {
		role = n.Role
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO notifications (title, body, kind, user_id, role, metadata, priority, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		n.Title, n.Body, n.Kind, n.UserID, role, n.Metadata, priority, time.Now().UTC())
	if err != nil {
		return nil, errdefs.NewStorage("create notification", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errdefs.NewStorage("create notification id", err)
	}

	return db.getNotification(ctx, id)
}

// getNotification returns one notification by id.
func (db *DB) getNotification(ctx context.Context, id int64) (*models.Notification, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, title, body, kind, user_id, role, metadata, priority, is_read, created_at
		 FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.NewNotFound("notification", id)
	}
	if err != nil {
		return nil, errdefs.NewStorage("get notification", err)
	}
	return n, nil
}

// NotificationsForUser returns the notifications visible to an identity:
// those addressed to it directly plus those addressed to its role, newest
// first. Role notifications share one read state across the role; per-holder
// read tracking is out of scope here.
func (db *DB) NotificationsForUser(ctx context.Context, userID int64, role string) ([]models.Notification, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, body, kind, user_id, role, metadata, priority, is_read, created_at
		 FROM notifications
		 WHERE user_id = ? OR role = ?
		 ORDER BY created_at DESC, id DESC`,
		userID, role)
	if err != nil {
		return nil, errdefs.NewStorage("notifications for user", err)
	}
	defer closeWithLog(rows, "notification rows")

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errdefs.NewStorage("notifications for user", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.NewStorage("notifications for user", err)
	}
	return out, nil
}

// MarkNotificationRead flips one notification to read. Ownership is
// enforced here in the store, not in a separate layer: a notification
// addressed to neither ownerID nor its role is a no-op and returns false.
// Marking a role notification flips it for every holder of the role, the
// same shared read state NotificationsForUser exposes.
func (db *DB) MarkNotificationRead(ctx context.Context, id, ownerID int64, role string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1
		 WHERE id = ? AND (user_id = ? OR role = ?) AND is_read = 0`, id, ownerID, role)
	if err != nil {
		return false, errdefs.NewStorage("mark notification read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errdefs.NewStorage("mark notification read rows", err)
	}
	return n > 0, nil
}

// MarkAllNotificationsRead flips every unread notification visible to the
// identity, role-addressed ones included. Returns the number of rows
// changed.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, ownerID int64, role string) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1
		 WHERE (user_id = ? OR role = ?) AND is_read = 0`, ownerID, role)
	if err != nil {
		return 0, errdefs.NewStorage("mark all notifications read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errdefs.NewStorage("mark all notifications read rows", err)
	}
	return n, nil
}

// CountUnreadNotifications returns how many unread notifications are
// visible to the identity, matching what NotificationsForUser lists.
func (db *DB) CountUnreadNotifications(ctx context.Context, userID int64, role string) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications
		 WHERE (user_id = ? OR role = ?) AND is_read = 0`, userID, role).Scan(&n)
	if err != nil {
		return 0, errdefs.NewStorage("count unread notifications", err)
	}
	return n, nil
}

// DeleteNotification removes a notification owned by ownerID. Returns
// whether a row was deleted; deleting someone else's notification is a
// silent no-op.
func (db *DB) DeleteNotification(ctx context.Context, id, ownerID int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return false, errdefs.NewStorage("delete notification", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errdefs.NewStorage("delete notification rows", err)
	}
	return n > 0, nil
}

// scanNotification scans one notification row.
func scanNotification(row interface{ Scan(...any) error }) (*models.Notification, error) {
	n := &models.Notification{}
	var userID sql.NullInt64
	var role sql.NullString
	err := row.Scan(&n.ID, &n.Title, &n.Body, &n.Kind, &userID, &role,
		&n.Metadata, &n.Priority, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		n.UserID = &userID.Int64
	}
	if role.Valid {
		n.Role = role.String
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}
