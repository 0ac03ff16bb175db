// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package presence

import (
	"sync"
	"testing"
)

// fakeHandle records delivered events; full simulates a saturated buffer.
type fakeHandle struct {
	id   uint64
	mu   sync.Mutex
	got  []Event
	full bool
}

func (h *fakeHandle) ID() uint64 { return h.id }

func (h *fakeHandle) Deliver(event Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return false
	}
	h.got = append(h.got, event)
	return true
}

func (h *fakeHandle) events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.got))
	copy(out, h.got)
	return out
}

func TestJoinFirstAndMultiDevice(t *testing.T) {
	tr := NewTracker()
	phone := &fakeHandle{id: 1}
	laptop := &fakeHandle{id: 2}

	if first := tr.Join(7, "Mei Lin", "manager", phone); !first {
		t.Error("first handle should report first=true")
	}
	if first := tr.Join(7, "Mei Lin", "manager", laptop); first {
		t.Error("second handle must not report first")
	}
	if !tr.IsOnline(7) {
		t.Error("identity should be online")
	}

	// Leaving one device keeps the identity online.
	userID, last := tr.Leave(phone)
	if userID != 7 || last {
		t.Errorf("expected (7, false), got (%d, %v)", userID, last)
	}
	if !tr.IsOnline(7) {
		t.Error("identity should still be online with one handle")
	}

	userID, last = tr.Leave(laptop)
	if userID != 7 || !last {
		t.Errorf("expected (7, true), got (%d, %v)", userID, last)
	}
	if tr.IsOnline(7) {
		t.Error("identity should be offline")
	}
}

func TestLeaveUnknownHandle(t *testing.T) {
	tr := NewTracker()
	userID, last := tr.Leave(&fakeHandle{id: 99})
	if userID != 0 || last {
		t.Errorf("unknown handle should report (0, false), got (%d, %v)", userID, last)
	}
}

func TestListOnlineDeterministic(t *testing.T) {
	tr := NewTracker()
	tr.Join(3, "Tomas Novak", "operator", &fakeHandle{id: 1})
	tr.Join(1, "Mei Lin", "manager", &fakeHandle{id: 2})
	tr.Join(1, "Mei Lin", "manager", &fakeHandle{id: 3}) // second device
	tr.Join(2, "Arjun Rao", "taster", &fakeHandle{id: 4})

	roster := tr.ListOnline()
	if len(roster) != 3 {
		t.Fatalf("expected 3 identities, got %d", len(roster))
	}
	for i, want := range []int64{1, 2, 3} {
		if roster[i].UserID != want {
			t.Errorf("position %d: expected user %d, got %d", i, want, roster[i].UserID)
		}
	}
}

func TestSendToUserAllDevices(t *testing.T) {
	tr := NewTracker()
	phone := &fakeHandle{id: 1}
	laptop := &fakeHandle{id: 2}
	other := &fakeHandle{id: 3}
	tr.Join(7, "Mei Lin", "manager", phone)
	tr.Join(7, "Mei Lin", "manager", laptop)
	tr.Join(8, "Arjun Rao", "taster", other)

	if online := tr.SendToUser(7, Event{Type: "ping"}); !online {
		t.Error("SendToUser should report the identity online")
	}
	if len(phone.events()) != 1 || len(laptop.events()) != 1 {
		t.Error("every device of the identity must receive the event")
	}
	if len(other.events()) != 0 {
		t.Error("other identities must not receive the event")
	}

	if online := tr.SendToUser(42, Event{Type: "ping"}); online {
		t.Error("SendToUser to an offline identity should report false")
	}
}

func TestSendToRole(t *testing.T) {
	tr := NewTracker()
	a := &fakeHandle{id: 1}
	b := &fakeHandle{id: 2}
	c := &fakeHandle{id: 3}
	tr.Join(1, "Arjun Rao", "taster", a)
	tr.Join(2, "Ines Costa", "taster", b)
	tr.Join(3, "Mei Lin", "manager", c)

	n := tr.SendToRole("taster", Event{Type: "notification"})
	if n != 2 {
		t.Errorf("expected 2 handles addressed, got %d", n)
	}
	if len(c.events()) != 0 {
		t.Error("managers must not receive taster events")
	}
}

func TestBroadcastExcept(t *testing.T) {
	tr := NewTracker()
	a := &fakeHandle{id: 1}
	b := &fakeHandle{id: 2}
	tr.Join(1, "Mei Lin", "manager", a)
	tr.Join(2, "Arjun Rao", "taster", b)

	tr.BroadcastExcept(a, Event{Type: "userStatus"})
	if len(a.events()) != 0 {
		t.Error("excluded handle must not receive the broadcast")
	}
	if len(b.events()) != 1 {
		t.Error("other handles must receive the broadcast")
	}

	tr.BroadcastExcept(nil, Event{Type: "userStatus"})
	if len(a.events()) != 1 || len(b.events()) != 2 {
		t.Error("nil exclusion must reach everyone")
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			h := &fakeHandle{id: id}
			tr.Join(int64(id%5), "user", "role", h)
			tr.SendToUser(int64(id%5), Event{Type: "ping"})
			tr.Leave(h)
		}(uint64(i + 1))
	}
	wg.Wait()

	if got := len(tr.ListOnline()); got != 0 {
		t.Errorf("expected empty roster after all leaves, got %d", got)
	}
}
