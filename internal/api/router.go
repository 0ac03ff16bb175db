// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brewops/brewops/internal/auth"
	"github.com/brewops/brewops/internal/config"
	"github.com/brewops/brewops/internal/middleware"
)

// NewRouter assembles the full HTTP surface: middleware stack, versioned
// API routes, the gateway upgrade endpoint, health probes and metrics.
func NewRouter(cfg *config.Config, jwt *auth.JWTManager, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health/live", h.healthLive)
		r.Get("/health/ready", h.healthReady)

		// The upgrade endpoint skips the Prometheus wrapper: the gorilla
		// upgrader needs the raw hijackable ResponseWriter. Connection
		// counts come from the hub's own gauge instead.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwt))
			r.Get("/ws", h.serveWS)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Prometheus)
			r.Use(httprate.LimitByRealIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
			r.Use(middleware.Authenticate(jwt))

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", h.listMessages)
				r.Post("/", h.sendMessage)
				r.Get("/unread", h.unreadMessages)
				r.Get("/stats", h.messageStats)
				r.Get("/conversations", h.conversations)
				r.Get("/conversation/{partnerID}", h.conversation)
				r.Put("/conversation/{partnerID}/read", h.markConversationRead)
				r.Put("/{id}/read", h.markMessageRead)
				r.Delete("/{id}", h.deleteMessage)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.listNotifications)
				r.Get("/unread-count", h.unreadNotificationCount)
				r.Put("/read-all", h.markAllNotificationsRead)
				r.Put("/{id}/read", h.markNotificationRead)
				r.Delete("/{id}", h.deleteNotification)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/search", h.searchUsers)
				r.Get("/online", h.onlineUsers)
			})
		})
	})

	return r
}
