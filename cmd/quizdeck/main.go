package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/quizdeck/internal/config"
	"github.com/conorfennell/quizdeck/internal/deckstore"
	"github.com/conorfennell/quizdeck/internal/importer"
	"github.com/conorfennell/quizdeck/internal/storage"
	"github.com/conorfennell/quizdeck/internal/web"
)

func main() {
	// 1. Load configuration from flags, file and environment
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("Failed to load config", "error", err)
		os.Exit(2)
	}
	slog.SetDefault(cfg.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open the deck store
	decks, err := deckstore.Open(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to open deck store", "error", err)
		os.Exit(1)
	}

	// 3. One-shot import mode
	if cfg.Import != "" {
		report, err := importer.Run(ctx, cfg.Import, cfg.ReposDir, decks)
		if err != nil {
			slog.Error("Import failed", "source", cfg.Import, "error", err)
			os.Exit(1)
		}
		for _, e := range report.Errors {
			slog.Warn("Import problem", "error", e)
		}
		return
	}

	// 4. Open the session database
	db, err := storage.Open(cfg.DB)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Database opened successfully", "path", cfg.DB)

	if cfg.SessionTTL > 0 {
		go pruneSessions(ctx, db, cfg.SessionTTL)
	}

	// 5. Serve
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: web.NewServer(decks, db, web.Options{
			Seed:        cfg.Seed,
			CORSOrigins: cfg.CORSOrigins,
			Logger:      slog.Default(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Listening", "addr", cfg.Addr, "decks", decks.Dir())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

// pruneSessions drops idle sessions once at startup and then hourly.
func pruneSessions(ctx context.Context, db *storage.DB, ttl time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := db.DeleteSessionsBefore(ctx, time.Now().Add(-ttl))
		if err != nil {
			slog.Warn("Failed to prune sessions", "error", err)
		} else if n > 0 {
			slog.Info("Pruned idle sessions", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
