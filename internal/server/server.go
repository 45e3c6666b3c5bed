// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It connects handlers, middleware and
// routes, and owns the background work that lives as long as the server:
//
//   - the Refresher, re-merging the external snippet list on an interval
//   - the file Watcher, triggering a refresh when the snippet file changes
//
// DEPENDENCY FLOW:
//
//	app.App (store, source, SnippetService) → panel.Controller → handlers
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snippet-box/internal/app"
	"github.com/sakif/snippet-box/internal/auth"
	"github.com/sakif/snippet-box/internal/clipboard"
	"github.com/sakif/snippet-box/internal/handler"
	"github.com/sakif/snippet-box/internal/middleware"
	"github.com/sakif/snippet-box/internal/panel"
	"github.com/sakif/snippet-box/internal/service"
)

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router    *chi.Mux
	app       *app.App
	logger    *slog.Logger
	ctl       *panel.Controller
	refresher *service.Refresher
	tokens    *auth.TokenService
}

// New builds the router over a. Authentication is enabled when
// a.Config.Auth.Secret is set.
func New(a *app.App, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		app:    a,
		logger: logger,
		ctl:    panel.NewController(context.Background(), a.Snippets, &clipboard.Recorder{}, logger),
	}
	s.refresher = service.NewRefresher(a.Snippets, a.Config.Source.Interval, logger)

	if secret := a.Config.Auth.Secret; secret != "" {
		tokens, err := auth.NewTokenService(secret)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.tokens = tokens
	} else {
		logger.Warn("auth.secret not set, the API is unauthenticated")
	}

	s.setupRoutes()
	return s, nil
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Controller returns the panel controller every request shares.
func (s *Server) Controller() *panel.Controller { return s.ctl }

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /health                     → liveness probe
//	GET    /metrics                    → prometheus metrics
//	GET    /api/snippets               → list (?q= filters on title or code)
//	POST   /api/snippets               → add
//	POST   /api/snippets/refresh       → merge the external list
//	PUT    /api/snippets/{id}/title    → rename
//	PUT    /api/snippets/{id}/code     → save code
//	DELETE /api/snippets/{id}          → delete (?confirm=true)
//	GET    /api/panel                  → panel state (?search=)
//	POST   /api/panel/toggle           → show / hide
//	PUT    /api/panel/width            → store width
//	GET    /api/palette                → palette state
//	POST   /api/palette/{open,close,toggle,move,activate}
//	PUT    /api/palette/query
//
// Middleware runs in registration order: RequestID, RealIP, Recoverer,
// Metrics, Logger.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Metrics(s.app.Metrics))
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", s.app.Metrics.Handler())

	snippetHandler := handler.NewSnippetHandler(s.ctl, s.app.Snippets, s.logger)
	panelHandler := handler.NewPanelHandler(s.ctl, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		if s.tokens != nil {
			r.Use(auth.RequireToken(s.tokens))
		}

		r.Get("/snippets", snippetHandler.HandleList)
		r.Post("/snippets", snippetHandler.HandleCreate)
		r.Post("/snippets/refresh", snippetHandler.HandleRefresh)
		r.Put("/snippets/{id}/title", snippetHandler.HandleUpdateTitle)
		r.Put("/snippets/{id}/code", snippetHandler.HandleUpdateCode)
		r.Delete("/snippets/{id}", snippetHandler.HandleDelete)

		r.Get("/panel", panelHandler.HandleGetPanel)
		r.Post("/panel/toggle", panelHandler.HandleTogglePanel)
		r.Put("/panel/width", panelHandler.HandleSetWidth)

		r.Get("/palette", panelHandler.HandleGetPalette)
		r.Post("/palette/open", panelHandler.HandleOpenPalette)
		r.Post("/palette/close", panelHandler.HandleClosePalette)
		r.Post("/palette/toggle", panelHandler.HandleTogglePalette)
		r.Put("/palette/query", panelHandler.HandleSetQuery)
		r.Post("/palette/move", panelHandler.HandleMove)
		r.Post("/palette/activate", panelHandler.HandleActivate)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is canceled.
//
// SHUTDOWN ORDER:
//  1. stop accepting connections and drain in-flight requests (30s)
//  2. stop the watcher and the refresher
//  3. close the store (see app.App.Close, called by the owner of a)
func (s *Server) Run(ctx context.Context) error {
	port := s.app.Config.Server.Port
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	bgCtx, cancelBg := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.refresher.Start(bgCtx)
	}()
	defer func() {
		cancelBg()
		wg.Wait()
	}()

	watcher, err := s.app.WatchFile(s.refresher.Trigger)
	if err != nil {
		s.logger.Warn("snippet file will not be watched", slog.String("error", err.Error()))
	}
	if watcher != nil {
		defer watcher.Stop()
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", port)),
			slog.String("store", s.app.Config.Store.Driver),
			slog.String("source", s.app.Source.Origin().Name),
			slog.Bool("auth", s.tokens != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
