// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brewops/brewops/internal/presence"
)

func TestDeliverAfterCloseDropsEvent(t *testing.T) {
	h := NewHub(nil, nil)
	c := newClient(h, nil, 1, "Mei Lin", "manager")

	if !c.Deliver(presence.Event{Type: "pong"}) {
		t.Fatal("delivery to an open client should succeed")
	}

	c.closeSend()
	c.closeSend() // idempotent

	if c.Deliver(presence.Event{Type: "pong"}) {
		t.Error("delivery after close should report a drop")
	}
}

// Tracker deliveries run on handle snapshots taken outside the tracker
// lock, so Deliver can arrive while the hub tears the client down. The
// race must end in a dropped frame, never a send on a closed channel.
func TestDeliverRacesClose(t *testing.T) {
	h := NewHub(nil, nil)

	for range 100 {
		c := newClient(h, nil, 1, "Mei Lin", "manager")

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					c.Deliver(presence.Event{Type: "userStatus"})
				}
			}()
		}
		c.closeSend()
		wg.Wait()
	}
}

func TestRequestUnregisterAfterShutdown(t *testing.T) {
	tracker := presence.NewTracker()
	h := NewHub(tracker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = h.Serve(ctx)
	}()
	cancel()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	// A read pump finishing after shutdown must not block forever.
	c := newClient(h, nil, 1, "Mei Lin", "manager")
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		h.requestUnregister(c)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("requestUnregister blocked after hub shutdown")
	}
}
