// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package chat

import (
	"time"

	"github.com/brewops/brewops/internal/models"
	"github.com/brewops/brewops/internal/presence"
)

// Server -> client event types. The payload shapes form a closed set; every
// frame on the wire is one of these.
const (
	EventNewMessage   = "newMessage"
	EventNotification = "notification"
	EventMessageSent  = "messageSent"
	EventMessageRead  = "messageRead"
	EventUserTyping   = "userTyping"
	EventUserStatus   = "userStatus"
	EventOnlineUsers  = "onlineUsers"
	EventError        = "error"
	EventPong         = "pong"
)

// NewMessagePayload notifies a receiver of an incoming message.
type NewMessagePayload struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	SenderName string    `json:"senderName"`
	SenderRole string    `json:"senderRole"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// NotificationPayload mirrors the persisted notification for realtime push.
type NotificationPayload struct {
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	SenderID   int64     `json:"senderId"`
	SenderName string    `json:"senderName"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessageSentPayload acknowledges a send back to its author.
type MessageSentPayload struct {
	ID         int64     `json:"id"`
	ReceiverID int64     `json:"receiverId"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessageReadPayload is the read receipt relayed to the original sender.
type MessageReadPayload struct {
	MessageID int64     `json:"messageId"`
	ReadBy    int64     `json:"readBy"`
	Timestamp time.Time `json:"timestamp"`
}

// UserTypingPayload forwards a typing indicator; never persisted.
type UserTypingPayload struct {
	UserID   int64 `json:"userId"`
	IsTyping bool  `json:"isTyping"`
}

// UserStatusPayload announces presence or free-form status changes.
type UserStatusPayload struct {
	UserID    int64     `json:"userId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload carries a human-readable failure back to one handle.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessageEvent builds the newMessage frame for a stored message.
func NewMessageEvent(m *models.Message) presence.Event {
	return presence.Event{Type: EventNewMessage, Data: NewMessagePayload{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		SenderRole: m.SenderRole,
		Message:    m.Body,
		Timestamp:  m.CreatedAt,
	}}
}

// MessageSentEvent builds the sender-side acknowledgment frame.
func MessageSentEvent(m *models.Message) presence.Event {
	return presence.Event{Type: EventMessageSent, Data: MessageSentPayload{
		ID:         m.ID,
		ReceiverID: m.ReceiverID,
		Message:    m.Body,
		Timestamp:  m.CreatedAt,
	}}
}

// MessageReadEvent builds the read-receipt frame.
func MessageReadEvent(messageID, readBy int64) presence.Event {
	return presence.Event{Type: EventMessageRead, Data: MessageReadPayload{
		MessageID: messageID,
		ReadBy:    readBy,
		Timestamp: time.Now().UTC(),
	}}
}

// UserStatusEvent builds a presence/status broadcast frame.
func UserStatusEvent(userID int64, status string) presence.Event {
	return presence.Event{Type: EventUserStatus, Data: UserStatusPayload{
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}}
}

// ErrorEvent builds an error frame for one handle.
func ErrorEvent(message string) presence.Event {
	return presence.Event{Type: EventError, Data: ErrorPayload{Message: message}}
}
