// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

// Package presence tracks which identities currently hold live transport
// connections. The tracker is an explicit, injectable instance constructed
// once at process start and handed to the gateway - never a global.
//
// An identity may hold several handles at once (multi-device); its presence
// entry exists while at least one handle is open and vanishes the instant
// the last one closes. A role channel is just another addressable target:
// every handle is listed under both its identity and its role.
package presence

import (
	"sort"
	"sync"

	"github.com/brewops/brewops/internal/models"
)

// Event is one frame pushed to connected handles.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Handle is an opaque reference to one live transport connection.
// Deliver must not block: implementations drop the frame and return false
// when the outbound buffer is full (realtime delivery is at-most-once; the
// store remains the source of truth).
type Handle interface {
	ID() uint64
	Deliver(event Event) bool
}

// entry remembers who a handle belongs to.
type entry struct {
	userID int64
	name   string
	role   string
}

// Tracker is the shared identity -> handles map. All mutation is atomic
// with respect to concurrent reads; a RWMutex is sufficient at this scale.
type Tracker struct {
	mu      sync.RWMutex
	byUser  map[int64]map[Handle]struct{}
	byRole  map[string]map[Handle]struct{}
	handles map[Handle]entry
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byUser:  make(map[int64]map[Handle]struct{}),
		byRole:  make(map[string]map[Handle]struct{}),
		handles: make(map[Handle]entry),
	}
}

// Join registers a handle under the identity's personal channel and its
// role channel. Returns true when this is the identity's first handle.
func (t *Tracker) Join(userID int64, name, role string, h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	first := len(t.byUser[userID]) == 0

	if t.byUser[userID] == nil {
		t.byUser[userID] = make(map[Handle]struct{})
	}
	t.byUser[userID][h] = struct{}{}

	if role != "" {
		if t.byRole[role] == nil {
			t.byRole[role] = make(map[Handle]struct{})
		}
		t.byRole[role][h] = struct{}{}
	}

	t.handles[h] = entry{userID: userID, name: name, role: role}
	return first
}

// Leave removes a handle. Returns the identity it belonged to and whether
// it was the identity's last handle. Unknown handles report (0, false).
func (t *Tracker) Leave(h Handle) (userID int64, last bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.handles[h]
	if !ok {
		return 0, false
	}
	delete(t.handles, h)

	if set := t.byUser[e.userID]; set != nil {
		delete(set, h)
		if len(set) == 0 {
			delete(t.byUser, e.userID)
			last = true
		}
	}
	if set := t.byRole[e.role]; set != nil {
		delete(set, h)
		if len(set) == 0 {
			delete(t.byRole, e.role)
		}
	}
	return e.userID, last
}

// IsOnline reports whether the identity holds at least one open handle.
func (t *Tracker) IsOnline(userID int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byUser[userID]) > 0
}

// ListOnline returns the current roster, one entry per identity, in
// ascending identity order for deterministic output.
func (t *Tracker) ListOnline() []models.OnlineUser {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[int64]models.OnlineUser, len(t.byUser))
	for _, e := range t.handles {
		if _, ok := seen[e.userID]; !ok {
			seen[e.userID] = models.OnlineUser{UserID: e.userID, UserName: e.name, UserRole: e.role}
		}
	}

	out := make([]models.OnlineUser, 0, len(seen))
	for _, u := range seen {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// SendToUser pushes an event to every handle of one identity. Returns false
// when the identity is not connected; the caller decides whether that is an
// error or simply "will see it on next poll".
func (t *Tracker) SendToUser(userID int64, event Event) bool {
	for _, h := range t.userHandles(userID) {
		h.Deliver(event)
	}
	return t.IsOnline(userID)
}

// SendToRole pushes an event to every handle of every identity holding the
// role. Returns the number of handles addressed.
func (t *Tracker) SendToRole(role string, event Event) int {
	handles := t.roleHandles(role)
	for _, h := range handles {
		h.Deliver(event)
	}
	return len(handles)
}

// BroadcastExcept pushes an event to every connected handle except one.
// Pass nil to reach everyone.
func (t *Tracker) BroadcastExcept(except Handle, event Event) {
	for _, h := range t.allHandles() {
		if h == except {
			continue
		}
		h.Deliver(event)
	}
}

// userHandles snapshots one identity's handles under the read lock so that
// delivery happens outside it.
func (t *Tracker) userHandles(userID int64) []Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedHandles(t.byUser[userID])
}

func (t *Tracker) roleHandles(role string) []Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedHandles(t.byRole[role])
}

func (t *Tracker) allHandles() []Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedHandles(t.handles)
}

// sortedHandles flattens a handle set in ascending handle-ID order so
// delivery order is deterministic.
func sortedHandles[V any](set map[Handle]V) []Handle {
	out := make([]Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
