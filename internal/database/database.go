// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

// Package database provides the relational persistence layer: connection
// management, schema bootstrap, and the message / notification / identity
// stores backed by sqlite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/brewops/brewops/internal/config"
	"github.com/brewops/brewops/internal/logging"
)

// DB wraps the sqlite connection and exposes the store operations.
type DB struct {
	conn *sql.DB
	cfg  config.DatabaseConfig
}

// New opens (or creates) the sqlite database at cfg.Path, applies pragmas,
// configures the connection pool and bootstraps the schema.
func New(cfg config.DatabaseConfig) (*DB, error) {
	conn, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	// sqlite serializes writers; a single connection sidesteps SQLITE_BUSY
	// under concurrent gateway and HTTP writes.
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	conn.SetMaxOpenConns(maxOpen)
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	conn.SetConnMaxLifetime(1 * time.Hour)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		logging.Warn().Err(err).Msg("failed to enable WAL mode, continuing with default journaling")
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if cfg.BusyTimeout > 0 {
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds())); err != nil {
			logging.Warn().Err(err).Msg("failed to set busy_timeout pragma")
		}
	}

	db := &DB{conn: conn, cfg: cfg}

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("database ready")
	return db, nil
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// createTables creates the core tables and indexes.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		// Identity directory. Owned by the wider BrewOps platform; this
		// core only reads it, but bootstraps the table so a standalone
		// messaging deployment starts clean.
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_id INTEGER NOT NULL REFERENCES users(id),
			receiver_id INTEGER NOT NULL REFERENCES users(id),
			body TEXT NOT NULL,
			is_read INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, is_read)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, id)`,

		// Exactly one of user_id / role is set per notification.
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			kind TEXT NOT NULL,
			user_id INTEGER REFERENCES users(id),
			role TEXT,
			metadata TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'medium',
			is_read INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			CHECK ((user_id IS NULL) != (role IS NULL))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_role ON notifications(role)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}
