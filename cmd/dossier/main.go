package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/dossier/api"
	"github.com/use-agent/dossier/auth"
	"github.com/use-agent/dossier/browser"
	"github.com/use-agent/dossier/config"
	"github.com/use-agent/dossier/crawl"
	"github.com/use-agent/dossier/report"
	"github.com/use-agent/dossier/store"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("dossier starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"poolSize", cfg.Browser.PoolSize,
		"site", cfg.Site.BaseURL,
	)

	// ── 3. Initialise data store ────────────────────────────────────
	st, err := store.New(cfg.Store.DataDir)
	if err != nil {
		slog.Error("failed to initialise store", "error", err)
		os.Exit(1)
	}

	// ── 4. Initialise browser pool ──────────────────────────────────
	pool := browser.NewPool(cfg.Browser)
	defer pool.CloseAll()

	// ── 5. Initialise authenticator and fetcher ─────────────────────
	authenticator, err := auth.New(cfg.Site, cfg.Crawl.NavigationTimeout)
	if err != nil {
		slog.Error("failed to initialise authenticator", "error", err)
		os.Exit(1)
	}

	fetcher := crawl.NewBrowserFetcher(pool, authenticator, cfg.Site, cfg.Crawl.RequestsPerSecond)

	// ── 6. Initialise crawl runner ──────────────────────────────────
	domains := crawl.DefaultDomains(cfg.Crawl)

	// Assign through a concrete check so an unconfigured webhook stays a
	// nil interface rather than a typed-nil pointer.
	var notifier crawl.Notifier
	if wh := report.NewWebhook(cfg.Webhook); wh != nil {
		notifier = wh
	}
	runner := crawl.NewRunner(cfg.Crawl, st, fetcher, domains, notifier)

	daemonCtx, stopDaemon := context.WithCancel(context.Background())
	defer stopDaemon()
	go runner.RunDaemon(daemonCtx)
	slog.Info("crawl daemon started",
		"tickInterval", cfg.Crawl.TickInterval,
		"passTimeout", cfg.Crawl.PassTimeout,
		"domains", len(domains),
	)

	// ── 7. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(pool, runner, cfg, startTime)

	// ── 8. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	stopDaemon()

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// pool.CloseAll() runs via defer — closes every pooled browser.
	slog.Info("dossier stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
