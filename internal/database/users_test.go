// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package database

import (
	"context"
	"testing"

	"github.com/brewops/brewops/internal/errdefs"
	"github.com/brewops/brewops/internal/models"
)

func TestGetUser(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db)

	u, err := db.GetUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if u.Name != "Mei Lin" || u.Role != "manager" {
		t.Errorf("unexpected user: %+v", u)
	}

	_, err = db.GetUser(context.Background(), 404)
	if !errdefs.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestSearchUsers(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db)
	ctx := context.Background()

	tests := []struct {
		name      string
		query     string
		excludeID int64
		want      []int64
	}{
		{"name prefix", "Mei", 2, []int64{1}},
		{"email prefix", "arjun@", 1, []int64{2}},
		{"excludes searcher", "Mei", 1, nil},
		{"no match", "zzz", 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := db.SearchUsers(ctx, tt.query, tt.excludeID, 10)
			if err != nil {
				t.Fatalf("SearchUsers failed: %v", err)
			}
			if len(users) != len(tt.want) {
				t.Fatalf("expected %d results, got %d", len(tt.want), len(users))
			}
			for i, id := range tt.want {
				if users[i].ID != id {
					t.Errorf("result %d: expected id %d, got %d", i, id, users[i].ID)
				}
			}
		})
	}
}

func TestUpsertUserUpdates(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db)
	ctx := context.Background()

	if err := db.UpsertUser(ctx, &models.User{
		ID: 2, Name: "Arjun Rao", Email: "arjun@brewops.test", Role: "lead-taster",
	}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	u, err := db.GetUser(ctx, 2)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if u.Role != "lead-taster" {
		t.Errorf("role not updated: %q", u.Role)
	}
}
