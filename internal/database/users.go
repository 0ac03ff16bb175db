// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/brewops/brewops/internal/errdefs"
	"github.com/brewops/brewops/internal/models"
)

// GetUser returns one identity directory entry by id.
func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, role FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.NewNotFound("user", id)
	}
	if err != nil {
		return nil, errdefs.NewStorage("get user", err)
	}
	return u, nil
}

// SearchUsers returns identities whose name or email matches the query
// prefix, excluding the searcher. Used by the frontend's recipient picker.
func (db *DB) SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]models.User, error) {
	pattern := query + "%"
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, email, role FROM users
		 WHERE (name LIKE ? OR email LIKE ?) AND id != ?
		 ORDER BY name ASC
		 LIMIT ?`,
		pattern, pattern, excludeID, limit)
	if err != nil {
		return nil, errdefs.NewStorage("search users", err)
	}
	defer closeWithLog(rows, "user rows")

	var out []models.User
	for rows.Next() {
		u := models.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role); err != nil {
			return nil, errdefs.NewStorage("search users", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.NewStorage("search users", err)
	}
	return out, nil
}

// UpsertUser inserts or updates a directory entry. The identity service is
// the source of truth; this keeps the local read model current and seeds
// test fixtures.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, role) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			email = excluded.email, role = excluded.role`,
		u.ID, u.Name, u.Email, u.Role)
	if err != nil {
		return errdefs.NewStorage("upsert user", err)
	}
	return nil
}
