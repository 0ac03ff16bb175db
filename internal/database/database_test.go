// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package database

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/brewops/brewops/internal/config"
	"github.com/brewops/brewops/internal/logging"
	"github.com/brewops/brewops/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// newTestDB opens an in-memory database with the schema bootstrapped.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(config.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		BusyTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

// seedUsers inserts the standard test directory: a manager, a taster and
// a line operator.
func seedUsers(t *testing.T, db *DB) {
	t.Helper()
	users := []models.User{
		{ID: 1, Name: "Mei Lin", Email: "mei@brewops.test", Role: "manager"},
		{ID: 2, Name: "Arjun Rao", Email: "arjun@brewops.test", Role: "taster"},
		{ID: 3, Name: "Tomas Novak", Email: "tomas@brewops.test", Role: "operator"},
	}
	for i := range users {
		if err := db.UpsertUser(context.Background(), &users[i]); err != nil {
			t.Fatalf("failed to seed user %d: %v", users[i].ID, err)
		}
	}
}

func TestNewCreatesSchema(t *testing.T) {
	db := newTestDB(t)

	// Schema bootstrap is idempotent.
	if err := db.createTables(); err != nil {
		t.Fatalf("second createTables failed: %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}
