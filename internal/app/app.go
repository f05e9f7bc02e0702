// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires the gateway's components together into a running
// process: load config, build the journal store, event bus, exec-turn
// engine, PTY registry, tailer registry, and directory lister, then serve
// them over internal/api until a shutdown signal arrives.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nwgate/codex-gateway/internal/api"
	"github.com/nwgate/codex-gateway/internal/config"
	"github.com/nwgate/codex-gateway/internal/directory"
	"github.com/nwgate/codex-gateway/internal/engine"
	"github.com/nwgate/codex-gateway/internal/gwevents"
	"github.com/nwgate/codex-gateway/internal/journal"
	"github.com/nwgate/codex-gateway/internal/ptyreg"
	"github.com/nwgate/codex-gateway/internal/tailer"
)

// App is the main application container.
type App struct {
	mu sync.RWMutex

	configPath string
	version    string
	config     *config.Config

	bus       *gwevents.MemoryBus
	store     *journal.Store
	lister    *directory.Lister
	eng       *engine.Engine
	ptys      *ptyreg.Registry
	tailers   *tailer.Registry
	apiServer *api.Server

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Version    string
}

// New loads configuration and constructs an App. Initialize must be called
// before Start; Run calls Initialize itself.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		done:       make(chan struct{}),
	}

	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	validator := config.NewValidator()
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app.config = cfg
	return app, nil
}

// Initialize wires the gateway's components together (spec §2 System
// Overview, components A-F).
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	app.bus = gwevents.NewMemoryBus(gwevents.BusConfig{
		HistoryMaxEvents: 1000,
		HistoryMaxAge:    time.Hour,
	})

	store, err := journal.NewStore(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("initialize journal store: %w", err)
	}
	app.store = store

	app.eng = engine.New(store, app.bus, engine.Config{
		Bin:            cfg.ExecBin,
		ApprovalPolicy: cfg.ApprovalPolicy,
		SandboxMode:    cfg.SandboxMode,
		DefaultModel:   cfg.DefaultModel,
		ModelChoices:   cfg.ModelChoices,
	})

	app.lister = directory.NewLister(store, app.eng.IsActive)

	app.ptys = ptyreg.New(ptyreg.Config{
		Workdir:      cfg.Workdir,
		HistoryLimit: cfg.HistoryLimit,
		SessionTTL:   time.Duration(cfg.SessionTTLMs) * time.Millisecond,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutMs) * time.Millisecond,
	}, app.bus)

	app.tailers = tailer.NewRegistry(tailer.Config{
		HeartbeatInterval:   time.Duration(cfg.HeartbeatIntervalMs) * time.Millisecond,
		IdleTimeout:         time.Duration(cfg.TailerIdleTimeoutMs) * time.Millisecond,
	}, app.bus, app.eng.SessionMeta)

	app.apiServer = api.NewServer(api.ServerConfig{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, api.Dependencies{
		Store:       store,
		Lister:      app.lister,
		Engine:      app.eng,
		PTYRegistry: app.ptys,
		Tailers:     app.tailers,
		EventBus:    app.bus,
	})

	return nil
}

// Start launches the API server in the background.
func (app *App) Start(ctx context.Context) error {
	go func() {
		log.Printf("codex-gateway listening on %s:%d", app.config.Server.Host, app.config.Server.Port)
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()
	return nil
}

// Run initializes, starts, and blocks until a shutdown signal arrives.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	case <-app.done:
		log.Printf("Shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	if app.bus != nil {
		app.bus.Close()
	}

	log.Println("Shutdown complete")
	return nil
}

// Stop signals the app to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}
