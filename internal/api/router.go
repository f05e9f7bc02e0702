// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/nwgate/codex-gateway/internal/api/handlers"
	"github.com/nwgate/codex-gateway/internal/api/middleware"
	"github.com/nwgate/codex-gateway/internal/directory"
	"github.com/nwgate/codex-gateway/internal/engine"
	"github.com/nwgate/codex-gateway/internal/gwevents"
	"github.com/nwgate/codex-gateway/internal/journal"
	"github.com/nwgate/codex-gateway/internal/ptyreg"
	"github.com/nwgate/codex-gateway/internal/tailer"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host    string
	Port    int
	TLSCert string // Path to TLS certificate file
	TLSKey  string // Path to TLS private key file
}

// Dependencies holds all dependencies for the gateway's HTTP/WS surface
// (spec §6 External Interfaces).
type Dependencies struct {
	Store       *journal.Store
	Lister      *directory.Lister
	Engine      *engine.Engine
	PTYRegistry *ptyreg.Registry
	Tailers     *tailer.Registry
	EventBus    *gwevents.MemoryBus
}

// NewRouter builds the gateway's HTTP router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)

	sessionHandler := handlers.NewSessionHandler(deps.Store, deps.Lister, deps.Engine)
	streamHandler := handlers.NewStreamHandler(deps.Store, deps.Tailers)
	terminalHandler := handlers.NewTerminalHandler(deps.PTYRegistry)
	eventHandler := handlers.NewEventHandler(deps.EventBus)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/sessions", sessionHandler.List).Methods("GET")
	api.HandleFunc("/session/start", sessionHandler.Start).Methods("POST")
	api.HandleFunc("/sessions/{id}/messages", sessionHandler.SubmitMessage).Methods("POST")
	api.HandleFunc("/sessions/{id}/cancel", sessionHandler.Cancel).Methods("POST")
	api.HandleFunc("/sessions/{id}/terminal", terminalHandler.WebSocket).Methods("GET")

	api.HandleFunc("/chat-stream", streamHandler.Chat).Methods("GET")
	api.HandleFunc("/chat-stream/stats", streamHandler.Stats).Methods("GET")

	// Debug event surface: read-only visibility into the internal bus, not
	// part of the session/turn contract (spec §2 component F).
	api.HandleFunc("/events", eventHandler.History).Methods("GET")
	api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")

	return r
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
	deps   Dependencies
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
		deps:   deps,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server.
// If TLS is configured (tls_cert and tls_key), uses HTTPS.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	if tlsEnabled {
		certPath := expandPath(s.cfg.TLSCert)
		keyPath := expandPath(s.cfg.TLSKey)
		log.Printf("API server listening on https://%s (TLS enabled)", addr)
		return s.server.ListenAndServeTLS(certPath, keyPath)
	}

	log.Printf("API server listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.deps.PTYRegistry != nil {
		s.deps.PTYRegistry.Close()
	}
	if s.deps.Tailers != nil {
		s.deps.Tailers.Close()
	}

	if s.server == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
