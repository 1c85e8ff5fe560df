package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/reviewgallery/internal/config"
	"github.com/JonMunkholm/reviewgallery/internal/core"
	"github.com/JonMunkholm/reviewgallery/internal/csvfeed"
	"github.com/JonMunkholm/reviewgallery/internal/logging"
	"github.com/JonMunkholm/reviewgallery/internal/sheetscript"
	"github.com/JonMunkholm/reviewgallery/internal/shopify"
	"github.com/JonMunkholm/reviewgallery/internal/store"
	"github.com/JonMunkholm/reviewgallery/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"db_max_conns", cfg.Database.MaxConns,
		"metafield_mirror", cfg.Shopify.MirrorEnabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	policy := store.PolicyFromConfig(cfg.Retry)

	st, err := store.Open(ctx, cfg.Database, policy)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to database", "driver", cfg.Database.Driver)

	var mirror core.Mirror
	if cfg.Shopify.MirrorEnabled() {
		mirror = shopify.NewMirror(shopify.New(cfg.Shopify), cfg.Shopify.Namespace)
	} else {
		slog.Warn("SHOPIFY_ADMIN_TOKEN not set, metafield mirror disabled")
	}

	service := core.NewService(
		st,
		csvfeed.NewFetcher(cfg.Fetch, nil),
		mirror,
		sheetscript.New(cfg.Script, nil),
	)

	service.LimitSyncs(cfg.Sync.MaxConcurrent, cfg.Sync.MaxWait)

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests, then let running syncs finish
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if status := service.SyncStatus(); status.Active > 0 {
			slog.Info("waiting for syncs to complete", "active", status.Active)
			if err := service.WaitForSyncs(shutdownCtx); err != nil {
				slog.Warn("syncs did not complete in time", "error", err)
			}
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("server stopped")
}
