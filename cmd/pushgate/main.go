package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ocx/pushgate/internal/config"
	"github.com/ocx/pushgate/internal/monitoring"
	"github.com/ocx/pushgate/internal/push"
	"github.com/ocx/pushgate/internal/push/factory"
	"github.com/ocx/pushgate/internal/xmppgw"
)

func main() {
	// Best-effort .env load for local development
	_ = godotenv.Load()
	setupLogging()

	settingsPath := "./settings.json"
	if len(os.Args) > 1 {
		settingsPath = os.Args[1]
	}
	slog.Info("loading config file", "path", settingsPath)

	cfg, err := config.Load(settingsPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	slog.Debug("config loaded", "modules", len(cfg.PushModules))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	registry, err := push.NewRegistry(cfg.PushModules, factory.Adapter(ctx), metrics)
	if err != nil {
		log.Fatalf("Failed to build push modules: %v", err)
	}
	defer registry.Close()

	var ops *monitoring.Server
	if cfg.OpsServer.ListenAddress != "" {
		ops = monitoring.NewServer(cfg.OpsServer.ListenAddress, registry, prometheus.DefaultGatherer)
		ops.Start()
	}

	gateway := xmppgw.New(cfg.Component, cfg.Timeout.XMPPConnectionError.Std(), registry)

	// Shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		cancel()
		gateway.Stop()
	}()

	if err := gateway.Run(ctx); err != nil {
		slog.Error("component gateway failed", "error", err)
	}

	if ops != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			slog.Error("ops server shutdown failed", "error", err)
		}
	}
}

// setupLogging installs the default slog handler; the level comes from
// LOG_LEVEL (debug, info, warn, error).
func setupLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
