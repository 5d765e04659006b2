// Command mockapi serves an in-memory inventory API for local development.
package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"furniture-dashboard/internal/logger"
	"furniture-dashboard/internal/mockapi"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(logger.NewPrettyHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(log)

	var cfg mockapi.Config
	if err := env.Parse(&cfg); err != nil {
		log.Error("failed to parse environment", "error", err)
		os.Exit(1)
	}

	api, err := mockapi.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize mock API", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("mock API listening", "addr", server.Addr, "seed_email", mockapi.SeedEmail)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("mock API failed", "error", err)
		os.Exit(1)
	}
}
