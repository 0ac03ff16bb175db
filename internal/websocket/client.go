// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/brewops/brewops/internal/chat"
	"github.com/brewops/brewops/internal/logging"
	"github.com/brewops/brewops/internal/presence"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024 // chat frames are small; anything bigger is abuse
	sendBuffer     = 64
)

// clientIDCounter assigns unique, monotonically increasing IDs so handles
// sort in a consistent order for deterministic delivery.
var clientIDCounter atomic.Uint64

// Client is the middleman between one websocket connection and the hub.
// It implements presence.Handle.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn

	// sendMu serializes Deliver against closeSend. Tracker deliveries run
	// on handle snapshots taken outside the tracker lock, so a delivery
	// can race teardown; sending on a closed channel panics even inside a
	// select with a default arm.
	sendMu     sync.Mutex
	sendClosed bool
	send       chan presence.Event

	// Identity bound at handshake time.
	userID   int64
	userName string
	userRole string
}

// newClient wraps an upgraded connection with its authenticated identity.
func newClient(hub *Hub, conn *websocket.Conn, userID int64, name, role string) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		hub:      hub,
		conn:     conn,
		send:     make(chan presence.Event, sendBuffer),
		userID:   userID,
		userName: name,
		userRole: role,
	}
}

// ID returns the client's unique identifier for deterministic ordering.
func (c *Client) ID() uint64 { return c.id }

// Deliver queues an event for the write pump without blocking. A full
// buffer drops the frame: realtime delivery is at-most-once and the store
// is the source of truth. Events arriving after teardown are dropped.
func (c *Client) Deliver(event presence.Event) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return false
	}
	select {
	case c.send <- event:
		return true
	default:
		logging.Warn().
			Uint64("client_id", c.id).
			Int64("user_id", c.userID).
			Str("event", event.Type).
			Msg("send buffer full, dropping event")
		return false
	}
}

// closeSend shuts the outbound queue exactly once. Idempotent so the hub
// teardown paths can overlap without a double close.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// inboundEvent is the raw frame read off the wire; Data is decoded per
// event type by the hub's dispatcher.
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readPump pumps inbound events from the connection to the hub dispatcher.
// One goroutine per connection; store calls made by handlers block only
// this connection's event processing.
func (c *Client) readPump() {
	defer func() {
		c.hub.requestUnregister(c)
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Int64("user_id", c.userID).Msg("unexpected websocket close")
			}
			return
		}

		var evt inboundEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			c.Deliver(chat.ErrorEvent("malformed event"))
			continue
		}
		c.hub.dispatch(c, evt)
	}
}

// writePump pumps queued events to the connection and keeps it alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logging.Error().Err(err).Str("event", event.Type).Msg("failed to marshal event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Error().Err(err).Int64("user_id", c.userID).Msg("failed to write event")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
