// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

// Package websocket implements the realtime gateway: one hub supervising
// client connections, a presence tracker shared with the rest of the
// application, and a dispatcher that feeds inbound events into the same
// chat pipeline the HTTP API uses.
package websocket

import (
	"context"
	"net/http"
	"sort"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/brewops/brewops/internal/auth"
	"github.com/brewops/brewops/internal/chat"
	"github.com/brewops/brewops/internal/errdefs"
	"github.com/brewops/brewops/internal/logging"
	"github.com/brewops/brewops/internal/metrics"
	"github.com/brewops/brewops/internal/presence"
	"github.com/brewops/brewops/internal/validation"
)

// Client -> server event types.
const (
	eventSendMessage     = "sendMessage"
	eventMarkMessageRead = "markMessageRead"
	eventTyping          = "typing"
	eventSetStatus       = "setStatus"
	eventPing            = "ping"
)

// Hub owns the connection registry. Registration and unregistration flow
// through channels into a single goroutine, so the clients map needs no
// lock; event dispatch runs on each connection's read pump and touches
// only the tracker and the chat service, which are safe for concurrent
// use.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	// done is closed when the registration loop stops, releasing read
	// pumps that would otherwise block handing their client back.
	done chan struct{}

	tracker *presence.Tracker
	chat    *chat.Service
	clients map[*Client]struct{}
}

// NewHub creates a hub bound to the shared presence tracker and the
// canonical chat service.
func NewHub(tracker *presence.Tracker, chatSvc *chat.Service) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		tracker:    tracker,
		chat:       chatSvc,
		clients:    make(map[*Client]struct{}),
	}
}

// String names the hub in supervisor logs.
func (h *Hub) String() string { return "websocket-hub" }

// Serve runs the registration loop until the context is canceled. It
// satisfies suture.Service; the supervisor restarts it on failure.
func (h *Hub) Serve(ctx context.Context) error {
	logging.Info().Msg("websocket hub started")

	for {
		// Context cancellation wins over pending registrations.
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case c := <-h.Register:
			h.handleRegister(c)
		case c := <-h.Unregister:
			h.handleUnregister(c)
		}
	}
}

// handleRegister joins the client's identity, shares the current roster
// with it, and announces the connection to everyone else. The status
// broadcast is sent on every connect, not just the first handle, so late
// subscribers converge; clients treat it as idempotent.
func (h *Hub) handleRegister(c *Client) {
	h.clients[c] = struct{}{}
	metrics.TrackWSConnection(true)

	h.tracker.Join(c.userID, c.userName, c.userRole, c)
	h.tracker.BroadcastExcept(c, chat.UserStatusEvent(c.userID, "online"))
	c.Deliver(presence.Event{Type: chat.EventOnlineUsers, Data: h.tracker.ListOnline()})

	logging.Info().
		Int64("user_id", c.userID).
		Str("role", c.userRole).
		Int("connections", len(h.clients)).
		Msg("websocket client connected")
}

// handleUnregister detaches a client. The offline broadcast fires only
// when the identity's last handle closes; other devices keep it online.
func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	metrics.TrackWSConnection(false)

	userID, last := h.tracker.Leave(c)
	c.closeSend()

	if last {
		h.tracker.BroadcastExcept(nil, chat.UserStatusEvent(userID, "offline"))
	}

	logging.Info().
		Int64("user_id", c.userID).
		Int("connections", len(h.clients)).
		Msg("websocket client disconnected")
}

// closeAll tears down every connection on shutdown, in handle order so
// the teardown sequence is reproducible.
func (h *Hub) closeAll() {
	ordered := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })

	for _, c := range ordered {
		h.tracker.Leave(c)
		c.closeSend()
		delete(h.clients, c)
		metrics.TrackWSConnection(false)
	}

	// Surviving read pumps give up on unregistration once this closes.
	close(h.done)
	logging.Info().Int("closed", len(ordered)).Msg("websocket hub stopped")
}

// requestUnregister hands a client back to the registration loop, giving
// up if the hub has already shut down.
func (h *Hub) requestUnregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// Inbound payload shapes. Validation mirrors the HTTP request structs so
// both transports reject the same inputs.
type sendMessagePayload struct {
	ReceiverID int64  `json:"receiverId" validate:"gt=0"`
	Message    string `json:"message"    validate:"required,max=4000"`
}

type markMessageReadPayload struct {
	MessageID int64 `json:"messageId" validate:"gt=0"`
}

type typingPayload struct {
	ReceiverID int64 `json:"receiverId" validate:"gt=0"`
	IsTyping   bool  `json:"isTyping"`
}

type setStatusPayload struct {
	Status string `json:"status" validate:"required,max=64"`
}

// dispatch routes one inbound event. It runs on the client's read pump,
// so a slow store call back-pressures only that connection.
func (h *Hub) dispatch(c *Client, evt inboundEvent) {
	metrics.RecordWSEvent(evt.Type)
	ctx := context.Background()

	switch evt.Type {
	case eventSendMessage:
		var p sendMessagePayload
		if !h.decode(c, evt.Data, &p) {
			return
		}
		msg, err := h.chat.SendMessage(ctx, c.userID, p.ReceiverID, p.Message)
		if err != nil {
			h.deliverError(c, err)
			return
		}
		// Ack every one of the sender's handles so other devices sync.
		h.tracker.SendToUser(c.userID, chat.MessageSentEvent(msg))

	case eventMarkMessageRead:
		var p markMessageReadPayload
		if !h.decode(c, evt.Data, &p) {
			return
		}
		if _, err := h.chat.MarkMessageRead(ctx, c.userID, p.MessageID); err != nil {
			h.deliverError(c, err)
			return
		}
		// Confirm to the requester; the sender's receipt comes from the
		// chat pipeline.
		c.Deliver(chat.MessageReadEvent(p.MessageID, c.userID))

	case eventTyping:
		var p typingPayload
		if !h.decode(c, evt.Data, &p) {
			return
		}
		h.chat.Typing(c.userID, p.ReceiverID, p.IsTyping)

	case eventSetStatus:
		var p setStatusPayload
		if !h.decode(c, evt.Data, &p) {
			return
		}
		h.tracker.BroadcastExcept(c, chat.UserStatusEvent(c.userID, p.Status))

	case eventPing:
		c.Deliver(presence.Event{Type: chat.EventPong})

	default:
		c.Deliver(chat.ErrorEvent("unknown event type"))
	}
}

// decode unmarshals and validates one event payload, reporting failures
// back to the client. Returns false when the payload was rejected.
func (h *Hub) decode(c *Client, raw json.RawMessage, out any) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		c.Deliver(chat.ErrorEvent("malformed event payload"))
		return false
	}
	if err := validation.ValidateStruct(out); err != nil {
		c.Deliver(chat.ErrorEvent(err.Error()))
		return false
	}
	return true
}

// deliverError maps a pipeline failure onto the error frame. Storage
// failures are reported generically; their details belong in the logs,
// not on the wire.
func (h *Hub) deliverError(c *Client, err error) {
	if errdefs.IsStorage(err) {
		logging.Error().Err(err).Int64("user_id", c.userID).Msg("websocket event failed")
		c.Deliver(chat.ErrorEvent("internal error"))
		return
	}
	c.Deliver(chat.ErrorEvent(err.Error()))
}

// upgrader performs the protocol switch. Cross-origin policy is enforced
// by the HTTP middleware stack before the request reaches this point.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an authenticated request to a websocket connection and
// hands it to the hub. Authentication happens before the upgrade; an
// unauthenticated caller never gets a socket.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(h, conn, claims.UserID, claims.Name, claims.Role)
	h.Register <- c
	c.Start()
}
