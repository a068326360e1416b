package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ezkiller2517/arkzkh-app/internal/config"
	"github.com/ezkiller2517/arkzkh-app/internal/server"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v storage=%s scorer=%v",
		cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Storage.Type, cfg.Scorer.URL != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.New(ctx, cfg, server.Options{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}
	if err := app.Run(ctx); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
	logger.Infof("shut down cleanly")
}
