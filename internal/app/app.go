package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"furniture-dashboard/internal/apiclient"
	"furniture-dashboard/internal/config"
	"furniture-dashboard/internal/event"
	"furniture-dashboard/internal/router"
	"furniture-dashboard/internal/websocket"
	"furniture-dashboard/internal/workspace"
)

type App struct {
	server       *http.Server
	logger       *slog.Logger
	cleanupFuncs []func()
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	upstream := cfg.Upstream()

	bus := event.NewBus()
	hub := websocket.NewHub(bus, logger)

	registry := workspace.NewRegistry(workspace.Options{
		API:           upstream,
		Transport:     apiclient.NewTransport(upstream),
		Breaker:       apiclient.NewBreaker("upstream", upstream, logger),
		GracePeriod:   cfg.CacheGracePeriod,
		IdleTTL:       cfg.WorkspaceIdleTTL,
		SweepInterval: cfg.WorkspaceSweepInterval,
		Max:           cfg.WorkspaceMax,
		CookieSecure:  cfg.CookieSecure,
		Bus:           bus,
		Logger:        logger,
	})

	appRouter := router.New(cfg, registry, hub, router.DefaultHandlers(cfg.StaticDir), logger)

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	go hub.Run(backgroundCtx)
	go registry.StartSweepTicker(backgroundCtx)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	logger.Info("dashboard configured", "api_base_url", cfg.APIBaseURL, "cache_grace_period", cfg.CacheGracePeriod)

	return &App{
		server: server,
		logger: logger,
		cleanupFuncs: []func(){
			func() {
				backgroundCancel()
			},
			func() {
				registry.Close()
			},
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			a.logger.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.logger.Info("server stopped")
	return nil
}
