// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package chat

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/brewops/brewops/internal/config"
	"github.com/brewops/brewops/internal/database"
	"github.com/brewops/brewops/internal/errdefs"
	"github.com/brewops/brewops/internal/logging"
	"github.com/brewops/brewops/internal/models"
	"github.com/brewops/brewops/internal/presence"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// recordingPusher captures pushed events per identity. online controls
// what IsOnline and SendToUser report.
type recordingPusher struct {
	mu     sync.Mutex
	online map[int64]bool
	pushed map[int64][]presence.Event
}

func newRecordingPusher(onlineIDs ...int64) *recordingPusher {
	online := make(map[int64]bool)
	for _, id := range onlineIDs {
		online[id] = true
	}
	return &recordingPusher{online: online, pushed: make(map[int64][]presence.Event)}
}

func (p *recordingPusher) SendToUser(userID int64, event presence.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed[userID] = append(p.pushed[userID], event)
	return p.online[userID]
}

func (p *recordingPusher) IsOnline(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

func (p *recordingPusher) eventsFor(userID int64) []presence.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]presence.Event, len(p.pushed[userID]))
	copy(out, p.pushed[userID])
	return out
}

func newTestService(t *testing.T, pusher Pusher) (*Service, *database.DB) {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		BusyTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	users := []models.User{
		{ID: 1, Name: "Mei Lin", Email: "mei@brewops.test", Role: "manager"},
		{ID: 2, Name: "Arjun Rao", Email: "arjun@brewops.test", Role: "taster"},
		{ID: 3, Name: "Tomas Novak", Email: "tomas@brewops.test", Role: "operator"},
	}
	for i := range users {
		if err := db.UpsertUser(context.Background(), &users[i]); err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}
	return NewService(db, pusher, 1000), db
}

func TestSendMessagePipeline(t *testing.T) {
	pusher := newRecordingPusher(2)
	svc, db := newTestService(t, pusher)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, 1, 2, "Kill-green batch ready")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if msg.ID == 0 || msg.IsRead {
		t.Errorf("unexpected stored message: %+v", msg)
	}

	// Receiver gets newMessage then notification.
	events := pusher.eventsFor(2)
	if len(events) != 2 {
		t.Fatalf("expected 2 pushed events, got %d", len(events))
	}
	if events[0].Type != EventNewMessage {
		t.Errorf("first event should be %s, got %s", EventNewMessage, events[0].Type)
	}
	if events[1].Type != EventNotification {
		t.Errorf("second event should be %s, got %s", EventNotification, events[1].Type)
	}

	// The derived notification is durable and addressed to the receiver.
	notifications, err := db.NotificationsForUser(ctx, 2, "taster")
	if err != nil {
		t.Fatalf("NotificationsForUser failed: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	n := notifications[0]
	if n.Kind != models.NotificationKindMessage {
		t.Errorf("expected kind message, got %q", n.Kind)
	}
	if n.Title != "New message from Mei Lin" {
		t.Errorf("unexpected title: %q", n.Title)
	}
}

func TestSendMessageOfflineReceiverStillPersists(t *testing.T) {
	pusher := newRecordingPusher() // nobody online
	svc, db := newTestService(t, pusher)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, 1, 2, "stored while offline")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	stored, err := db.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if stored.Body != "stored while offline" {
		t.Errorf("unexpected body: %q", stored.Body)
	}
}

func TestSendMessageUnknownReceiver(t *testing.T) {
	pusher := newRecordingPusher()
	svc, _ := newTestService(t, pusher)

	_, err := svc.SendMessage(context.Background(), 1, 999, "hello?")
	if !errdefs.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
	if len(pusher.eventsFor(999)) != 0 {
		t.Error("nothing must be pushed for a failed send")
	}
}

func TestSendMessageEmptyBody(t *testing.T) {
	pusher := newRecordingPusher()
	svc, _ := newTestService(t, pusher)

	_, err := svc.SendMessage(context.Background(), 1, 2, "   ")
	if !errdefs.IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestMarkMessageReadReceiverOnly(t *testing.T) {
	pusher := newRecordingPusher(1, 2)
	svc, _ := newTestService(t, pusher)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, 1, 2, "read me")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// The sender cannot mark their own outbound message.
	if _, err := svc.MarkMessageRead(ctx, 1, msg.ID); !errdefs.IsAuthorization(err) {
		t.Errorf("expected AuthorizationError for sender, got %v", err)
	}

	// A third party cannot either.
	if _, err := svc.MarkMessageRead(ctx, 3, msg.ID); !errdefs.IsAuthorization(err) {
		t.Errorf("expected AuthorizationError for third party, got %v", err)
	}

	updated, err := svc.MarkMessageRead(ctx, 2, msg.ID)
	if err != nil {
		t.Fatalf("MarkMessageRead failed: %v", err)
	}
	if !updated.IsRead {
		t.Error("returned message should be read")
	}

	// Receipt relayed to the sender exactly once.
	receipts := 0
	for _, e := range pusher.eventsFor(1) {
		if e.Type == EventMessageRead {
			receipts++
		}
	}
	if receipts != 1 {
		t.Errorf("expected 1 read receipt to sender, got %d", receipts)
	}

	// Second mark is idempotent and relays nothing new.
	if _, err := svc.MarkMessageRead(ctx, 2, msg.ID); err != nil {
		t.Fatalf("second MarkMessageRead failed: %v", err)
	}
	receipts = 0
	for _, e := range pusher.eventsFor(1) {
		if e.Type == EventMessageRead {
			receipts++
		}
	}
	if receipts != 1 {
		t.Errorf("idempotent mark must not relay another receipt, got %d", receipts)
	}
}

func TestMarkConversationRead(t *testing.T) {
	pusher := newRecordingPusher(1, 2)
	svc, _ := newTestService(t, pusher)
	ctx := context.Background()

	for _, body := range []string{"one", "two"} {
		if _, err := svc.SendMessage(ctx, 1, 2, body); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, err := svc.MarkConversationRead(ctx, 2, 1)
	if err != nil {
		t.Fatalf("MarkConversationRead failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows changed, got %d", n)
	}

	// One aggregate receipt to the partner; nothing on a repeat.
	receipts := 0
	for _, e := range pusher.eventsFor(1) {
		if e.Type == EventMessageRead {
			receipts++
		}
	}
	if receipts != 1 {
		t.Errorf("expected 1 aggregate receipt, got %d", receipts)
	}

	n, err = svc.MarkConversationRead(ctx, 2, 1)
	if err != nil {
		t.Fatalf("second MarkConversationRead failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no rows on repeat, got %d", n)
	}
}

func TestTypingForwards(t *testing.T) {
	pusher := newRecordingPusher(2)
	svc, _ := newTestService(t, pusher)

	svc.Typing(1, 2, true)
	events := pusher.eventsFor(2)
	if len(events) != 1 || events[0].Type != EventUserTyping {
		t.Fatalf("expected one userTyping event, got %+v", events)
	}
	payload, ok := events[0].Data.(UserTypingPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", events[0].Data)
	}
	if payload.UserID != 1 || !payload.IsTyping {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestRecentConversations(t *testing.T) {
	pusher := newRecordingPusher()
	svc, _ := newTestService(t, pusher)
	ctx := context.Background()

	// Mei talks to Arjun, then Tomas messages Mei twice. Latest activity
	// is the Tomas conversation.
	if _, err := svc.SendMessage(ctx, 1, 2, "morning Arjun"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.SendMessage(ctx, 2, 1, "morning Mei"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.SendMessage(ctx, 3, 1, "drier 2 is jammed"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.SendMessage(ctx, 3, 1, "never mind, cleared it"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	convs, err := svc.RecentConversations(ctx, 1, 50)
	if err != nil {
		t.Fatalf("RecentConversations failed: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}

	// Most recently active partner first.
	if convs[0].PartnerID != 3 {
		t.Errorf("expected partner 3 first, got %d", convs[0].PartnerID)
	}
	if convs[0].LastMessage.Body != "never mind, cleared it" {
		t.Errorf("expected latest message, got %q", convs[0].LastMessage.Body)
	}
	if convs[0].UnreadCount != 2 {
		t.Errorf("expected 2 unread from Tomas, got %d", convs[0].UnreadCount)
	}

	if convs[1].PartnerID != 2 {
		t.Errorf("expected partner 2 second, got %d", convs[1].PartnerID)
	}
	// Only the inbound leg counts toward unread.
	if convs[1].UnreadCount != 1 {
		t.Errorf("expected 1 unread from Arjun, got %d", convs[1].UnreadCount)
	}

	// The viewer's own sends never count as unread for the viewer.
	convsArjun, err := svc.RecentConversations(ctx, 2, 50)
	if err != nil {
		t.Fatalf("RecentConversations failed: %v", err)
	}
	if len(convsArjun) != 1 || convsArjun[0].UnreadCount != 1 {
		t.Errorf("unexpected view for Arjun: %+v", convsArjun)
	}

	// Limit truncates after the fold.
	limited, err := svc.RecentConversations(ctx, 1, 1)
	if err != nil {
		t.Fatalf("RecentConversations failed: %v", err)
	}
	if len(limited) != 1 || limited[0].PartnerID != 3 {
		t.Errorf("limit should keep the most recent conversation: %+v", limited)
	}
}
