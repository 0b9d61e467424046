package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/harvester/api"
	"github.com/use-agent/harvester/api/handler"
	"github.com/use-agent/harvester/app"
	"github.com/use-agent/harvester/browser"
	"github.com/use-agent/harvester/config"
	"github.com/use-agent/harvester/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	slog.SetDefault(app.NewLogger(cfg.Log, os.Stdout))
	slog.Info("harvester starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"batchSize", cfg.Harvest.BatchSize,
		"stateBackend", cfg.State.Backend,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("auth enabled but HARVEST_API_KEYS is empty, API is open")
	}

	// ── 3. Launch browser and assemble the pipeline ─────────────────
	a, err := app.Launch(cfg)
	if err != nil {
		slog.Error("failed to initialise harvester", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// ── 4. Webhook observer ─────────────────────────────────────────
	if cfg.Webhook.URL != "" {
		n := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
		go n.Watch(ctx, a.Store)
		slog.Info("webhook notifier enabled", "url", cfg.Webhook.URL)
	}

	// ── 5. Setup router ─────────────────────────────────────────────
	var pages handler.PageCounter
	if b, ok := a.Host.(*browser.Browser); ok {
		pages = b
	}
	router := api.NewRouter(a.Orchestrator, pages, cfg, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())
	stop()

	// Give in-flight requests 5 seconds to complete. stop() has already
	// ended open event streams.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// a.Close() runs via defer and kills Chrome unless it is remote.
	slog.Info("harvester stopped")
}
