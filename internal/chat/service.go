// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

// Package chat implements the canonical messaging pipeline. Both transports
// (the HTTP API and the realtime gateway) call the same Service methods, so
// a send behaves identically regardless of entry point: same persisted
// shape, same derived notification, same realtime push.
package chat

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/brewops/brewops/internal/database"
	"github.com/brewops/brewops/internal/errdefs"
	"github.com/brewops/brewops/internal/logging"
	"github.com/brewops/brewops/internal/metrics"
	"github.com/brewops/brewops/internal/models"
	"github.com/brewops/brewops/internal/presence"
)

// Pusher is the realtime fan-out the service needs: push to one identity's
// handles, and ask whether it is connected. Satisfied by *presence.Tracker.
type Pusher interface {
	SendToUser(userID int64, event presence.Event) bool
	IsOnline(userID int64) bool
}

// Service is the canonical messaging pipeline.
type Service struct {
	db     *database.DB
	pusher Pusher

	// conversationCap bounds the aggregator's history fetch. Pragmatic
	// O(messages) fold; a materialized view is the upgrade path at scale.
	conversationCap int
}

// NewService creates the chat service. The pusher is typically the presence
// tracker owned by the gateway.
func NewService(db *database.DB, pusher Pusher, conversationCap int) *Service {
	if conversationCap <= 0 {
		conversationCap = 1000
	}
	return &Service{db: db, pusher: pusher, conversationCap: conversationCap}
}

// SendMessage runs the full send pipeline: verify the receiver exists,
// persist the message, persist the derived notification, and push both to
// the receiver's personal channel if connected. A push to an offline
// receiver is simply dropped; the store remains the source of truth.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID int64, body string) (*models.Message, error) {
	if _, err := s.db.GetUser(ctx, receiverID); err != nil {
		return nil, err
	}

	msg, err := s.db.CreateMessage(ctx, senderID, receiverID, body)
	if err != nil {
		return nil, err
	}

	notification, err := s.createMessageNotification(ctx, msg)
	if err != nil {
		// The message is already durable; a notification failure must not
		// unsend it. Log and push what we have.
		logging.Error().Err(err).Int64("message_id", msg.ID).
			Msg("failed to create message notification")
	}

	delivered := s.pusher.SendToUser(receiverID, NewMessageEvent(msg))
	if notification != nil {
		s.pusher.SendToUser(receiverID, presence.Event{
			Type: EventNotification,
			Data: NotificationPayload{
				Type:       notification.Kind,
				Title:      notification.Title,
				Message:    notification.Body,
				SenderID:   msg.SenderID,
				SenderName: msg.SenderName,
				Timestamp:  notification.CreatedAt,
			},
		})
	}

	metrics.RecordMessageSent(delivered)
	logging.Debug().
		Int64("message_id", msg.ID).
		Int64("sender_id", senderID).
		Int64("receiver_id", receiverID).
		Bool("delivered_realtime", delivered).
		Msg("message sent")

	return msg, nil
}

// createMessageNotification persists the kind="message" notification that
// every successful send produces. The metadata deep-links back to the
// originating message.
func (s *Service) createMessageNotification(ctx context.Context, msg *models.Message) (*models.Notification, error) {
	meta, err := json.Marshal(models.MessageMetadata{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		SenderRole: msg.SenderRole,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification metadata: %w", err)
	}

	n, err := s.db.CreateNotification(ctx, &models.Notification{
		Title:    fmt.Sprintf("New message from %s", msg.SenderName),
		Body:     msg.Body,
		Kind:     models.NotificationKindMessage,
		UserID:   &msg.ReceiverID,
		Metadata: string(meta),
		Priority: models.PriorityMedium,
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordNotificationCreated(n.Kind)
	return n, nil
}

// MarkMessageRead transitions one message to read on behalf of readerID.
// Only the message's receiver may do this. The store call is idempotent;
// the read receipt is relayed to the original sender if connected.
func (s *Service) MarkMessageRead(ctx context.Context, readerID, messageID int64) (*models.Message, error) {
	msg, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.ReceiverID != readerID {
		return nil, errdefs.NewAuthorization("only the receiver can mark a message as read")
	}

	changed, err := s.db.MarkMessageRead(ctx, messageID)
	if err != nil {
		return nil, err
	}
	msg.IsRead = true

	if changed {
		s.pusher.SendToUser(msg.SenderID, MessageReadEvent(messageID, readerID))
	}
	return msg, nil
}

// MarkConversationRead flips every unread message sent to readerID from
// partnerID and relays one receipt per flipped conversation to the partner.
func (s *Service) MarkConversationRead(ctx context.Context, readerID, partnerID int64) (int64, error) {
	n, err := s.db.MarkConversationRead(ctx, readerID, partnerID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.pusher.SendToUser(partnerID, MessageReadEvent(0, readerID))
	}
	return n, nil
}

// Typing forwards a typing indicator to the receiver's personal channel.
// Nothing is persisted; an offline receiver is a no-op, not an error.
func (s *Service) Typing(senderID, receiverID int64, isTyping bool) {
	s.pusher.SendToUser(receiverID, presence.Event{
		Type: EventUserTyping,
		Data: UserTypingPayload{UserID: senderID, IsTyping: isTyping},
	})
}

// RecentConversations derives the identity's inbox view: one entry per
// partner holding the most recent message and the viewer's unread count,
// ordered by last activity. This is a read-time fold over the message
// history, recomputed per request and bounded by conversationCap.
func (s *Service) RecentConversations(ctx context.Context, userID int64, limit int) ([]models.Conversation, error) {
	history, err := s.db.GetMessagesForUser(ctx, userID, s.conversationCap, 0)
	if err != nil {
		return nil, err
	}

	// History arrives newest first, so the first message seen per partner
	// is that conversation's latest; insertion order is already the final
	// ordering (store timestamps are assigned monotonically).
	index := make(map[int64]int)
	conversations := make([]models.Conversation, 0)

	for i := range history {
		m := history[i]
		partnerID := m.SenderID
		partnerName := m.SenderName
		partnerRole := m.SenderRole
		if m.SenderID == userID {
			partnerID = m.ReceiverID
			partnerName = m.ReceiverName
			partnerRole = m.ReceiverRole
		}

		at, ok := index[partnerID]
		if !ok {
			index[partnerID] = len(conversations)
			conversations = append(conversations, models.Conversation{
				PartnerID:   partnerID,
				PartnerName: partnerName,
				PartnerRole: partnerRole,
				LastMessage: m,
				UpdatedAt:   m.CreatedAt,
			})
			at = index[partnerID]
		}
		if m.ReceiverID == userID && !m.IsRead {
			conversations[at].UnreadCount++
		}
	}

	if limit > 0 && len(conversations) > limit {
		conversations = conversations[:limit]
	}
	return conversations, nil
}
