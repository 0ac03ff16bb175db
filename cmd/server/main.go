// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

// Command server runs the BrewOps messaging core: sqlite-backed message
// and notification stores, the realtime websocket gateway and the HTTP
// API, all under one supervisor tree.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/brewops/brewops/internal/api"
	"github.com/brewops/brewops/internal/auth"
	"github.com/brewops/brewops/internal/chat"
	"github.com/brewops/brewops/internal/config"
	"github.com/brewops/brewops/internal/database"
	"github.com/brewops/brewops/internal/logging"
	"github.com/brewops/brewops/internal/presence"
	"github.com/brewops/brewops/internal/supervisor"
	"github.com/brewops/brewops/internal/supervisor/services"
	"github.com/brewops/brewops/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("addr", cfg.Server.Addr()).
		Msg("starting brewops server")

	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close database")
		}
	}()

	jwt, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return err
	}

	tracker := presence.NewTracker()
	chatSvc := chat.NewService(db, tracker, cfg.API.ConversationCap)
	hub := websocket.NewHub(tracker, chatSvc)

	handlers := api.NewHandlers(cfg, db, chatSvc, tracker, hub)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(cfg, jwt, handlers),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: 0, // websocket connections outlive any write deadline
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(
		slog.New(logging.NewSlogHandler()),
		supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout},
	)
	tree.AddRealtimeService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("server stopped")
	return nil
}
