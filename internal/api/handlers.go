// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/brewops/brewops/internal/auth"
	"github.com/brewops/brewops/internal/chat"
	"github.com/brewops/brewops/internal/config"
	"github.com/brewops/brewops/internal/database"
	"github.com/brewops/brewops/internal/errdefs"
	"github.com/brewops/brewops/internal/middleware"
	"github.com/brewops/brewops/internal/presence"
	"github.com/brewops/brewops/internal/validation"
	"github.com/brewops/brewops/internal/websocket"
)

// Handlers binds the HTTP endpoints to the stores, the chat pipeline and
// the realtime gateway.
type Handlers struct {
	cfg     *config.Config
	db      *database.DB
	chat    *chat.Service
	tracker *presence.Tracker
	hub     *websocket.Hub
}

// NewHandlers wires the endpoint set.
func NewHandlers(cfg *config.Config, db *database.DB, chatSvc *chat.Service, tracker *presence.Tracker, hub *websocket.Hub) *Handlers {
	return &Handlers{cfg: cfg, db: db, chat: chatSvc, tracker: tracker, hub: hub}
}

// mustClaims returns the authenticated identity. The auth middleware
// guarantees presence on protected routes; a miss is a routing bug.
func mustClaims(r *http.Request) *auth.Claims {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		panic("handler reached without authentication middleware")
	}
	return claims
}

// pagination parses limit/offset query params, clamped to configuration.
func (h *Handlers) pagination(r *http.Request) (limit, offset int) {
	limit = h.cfg.API.DefaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.MaxPageSize
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errdefs.NewValidation(name, "must be a positive integer")
	}
	return id, nil
}

// decodeBody unmarshals and validates a JSON request body.
func decodeBody(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errdefs.NewValidation("body", "malformed JSON body")
	}
	return validation.ValidateStruct(out)
}

// --- Messages ---

type sendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id" validate:"gt=0"`
	Message    string `json:"message"     validate:"required,max=4000"`
}

// sendMessage is the HTTP entry into the canonical send pipeline.
func (h *Handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondFromError(w, r, err)
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), claims.UserID, req.ReceiverID, req.Message)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, msg)
}

func (h *Handlers) listMessages(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	limit, offset := h.pagination(r)

	messages, err := h.db.GetMessagesForUser(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondList(w, messages, limit, offset, len(messages))
}

func (h *Handlers) unreadMessages(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	messages, err := h.db.GetUnreadMessages(r.Context(), claims.UserID)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, messages)
}

func (h *Handlers) messageStats(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	stats, err := h.db.MessageStats(r.Context(), claims.UserID)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, stats)
}

func (h *Handlers) conversations(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	limit, _ := h.pagination(r)

	convs, err := h.chat.RecentConversations(r.Context(), claims.UserID, limit)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, convs)
}

// conversation returns one conversation page, oldest first, and marks the
// viewer's side of it read. Opening a conversation is the read action.
func (h *Handlers) conversation(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	partnerID, err := pathID(r, "partnerID")
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	limit, offset := h.pagination(r)

	messages, err := h.db.GetConversation(r.Context(), claims.UserID, partnerID, limit, offset)
	if err != nil {
		respondFromError(w, r, err)
		return
	}

	if _, err := h.chat.MarkConversationRead(r.Context(), claims.UserID, partnerID); err != nil {
		respondFromError(w, r, err)
		return
	}
	respondList(w, messages, limit, offset, len(messages))
}

func (h *Handlers) markMessageRead(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	id, err := pathID(r, "id")
	if err != nil {
		respondFromError(w, r, err)
		return
	}

	msg, err := h.chat.MarkMessageRead(r.Context(), claims.UserID, id)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, msg)
}

func (h *Handlers) markConversationRead(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	partnerID, err := pathID(r, "partnerID")
	if err != nil {
		respondFromError(w, r, err)
		return
	}

	n, err := h.chat.MarkConversationRead(r.Context(), claims.UserID, partnerID)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]int64{"updated": n})
}

// deleteMessage removes a message. Only a participant may delete it.
func (h *Handlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	id, err := pathID(r, "id")
	if err != nil {
		respondFromError(w, r, err)
		return
	}

	msg, err := h.db.GetMessage(r.Context(), id)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	if msg.SenderID != claims.UserID && msg.ReceiverID != claims.UserID {
		respondFromError(w, r, errdefs.NewAuthorization("only a participant can delete a message"))
		return
	}

	if _, err := h.db.DeleteMessage(r.Context(), id); err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]bool{"deleted": true})
}

// --- Notifications ---

func (h *Handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	notifications, err := h.db.NotificationsForUser(r.Context(), claims.UserID, claims.Role)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, notifications)
}

func (h *Handlers) unreadNotificationCount(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	n, err := h.db.CountUnreadNotifications(r.Context(), claims.UserID, claims.Role)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *Handlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	id, err := pathID(r, "id")
	if err != nil {
		respondFromError(w, r, err)
		return
	}

	updated, err := h.db.MarkNotificationRead(r.Context(), id, claims.UserID, claims.Role)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]bool{"updated": updated})
}

func (h *Handlers) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	n, err := h.db.MarkAllNotificationsRead(r.Context(), claims.UserID, claims.Role)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *Handlers) deleteNotification(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	id, err := pathID(r, "id")
	if err != nil {
		respondFromError(w, r, err)
		return
	}

	deleted, err := h.db.DeleteNotification(r.Context(), id, claims.UserID)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	if !deleted {
		respondFromError(w, r, errdefs.NewNotFound("notification", id))
		return
	}
	respondSuccess(w, http.StatusOK, map[string]bool{"deleted": true})
}

// --- Users ---

func (h *Handlers) searchUsers(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	q := r.URL.Query().Get("q")
	if q == "" {
		respondFromError(w, r, errdefs.NewValidation("q", "search query is required"))
		return
	}
	limit, _ := h.pagination(r)

	users, err := h.db.SearchUsers(r.Context(), q, claims.UserID, limit)
	if err != nil {
		respondFromError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, users)
}

func (h *Handlers) onlineUsers(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.tracker.ListOnline())
}

// --- Gateway and health ---

// serveWS hands an authenticated request to the realtime gateway.
func (h *Handlers) serveWS(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, mustClaims(r))
}

func (h *Handlers) healthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *Handlers) healthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, CodeInternal, "database unavailable")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}
