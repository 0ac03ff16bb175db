// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

// Package models defines the shared data types of the messaging core.
package models

import "time"

// Notification kinds. "message" notifications always carry metadata linking
// back to the originating message so the client can deep-link. The domain
// kinds are emitted by other BrewOps subsystems through the same store.
const (
	NotificationKindMessage  = "message"
	NotificationKindInfo     = "info"
	NotificationKindWarning  = "warning"
	NotificationKindError    = "error"
	NotificationKindSuccess  = "success"
	NotificationKindDelivery = "delivery"
	NotificationKindPayment  = "payment"
)

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// User is an identity directory entry. Identities are managed by the wider
// BrewOps platform; this core only reads them.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Message is a point-to-point message between two identities.
// IDs and timestamps are store-assigned; IsRead only ever goes false->true.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Body       string    `json:"message"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`

	// Display info joined in by the store.
	SenderName   string `json:"sender_name,omitempty"`
	SenderRole   string `json:"sender_role,omitempty"`
	ReceiverName string `json:"receiver_name,omitempty"`
	ReceiverRole string `json:"receiver_role,omitempty"`
}

// MessageMetadata is the metadata payload of a kind="message" notification.
type MessageMetadata struct {
	MessageID  int64  `json:"message_id"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name"`
	SenderRole string `json:"sender_role"`
}

// Notification targets either one identity (UserID) or every holder of a
// role (Role). Exactly one of the two is set.
type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"message"`
	Kind      string    `json:"type"`
	UserID    *int64    `json:"user_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	Metadata  string    `json:"metadata,omitempty"` // opaque JSON blob
	Priority  string    `json:"priority"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the derived per-partner inbox entry: the most recent
// message exchanged with a partner plus the viewer's unread count.
// It is recomputed per request, never stored.
type Conversation struct {
	PartnerID   int64     `json:"partner_id"`
	PartnerName string    `json:"partner_name"`
	PartnerRole string    `json:"partner_role"`
	LastMessage Message   `json:"last_message"`
	UnreadCount int       `json:"unread_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MessageStats summarizes an identity's message activity.
type MessageStats struct {
	TotalSent     int64 `json:"total_sent"`
	TotalReceived int64 `json:"total_received"`
	Unread        int64 `json:"unread"`
}

// OnlineUser is one entry of the presence roster.
type OnlineUser struct {
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
	UserRole string `json:"userRole"`
}
