package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/walletlink/service/config"
	"github.com/brojonat/walletlink/service/events"
	"github.com/brojonat/walletlink/service/ledger"
	"github.com/brojonat/walletlink/service/metrics"
	"github.com/brojonat/walletlink/service/server"
	"github.com/brojonat/walletlink/service/session"
	"github.com/brojonat/walletlink/service/signer"
	"github.com/brojonat/walletlink/service/store"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting walletlink",
		"addr", cfg.ServerAddr,
		"cluster", cfg.Cluster,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Persisted session record
	st, err := store.Open(store.Options{Dir: cfg.SessionStoreDir}, logger)
	if err != nil {
		logger.Error("failed to open session store", "dir", cfg.SessionStoreDir, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Note: For premium RPC endpoints, include API key in the URL
	lg := ledger.NewClient(ledger.NewRPCClient(cfg.SolanaRPCURL), cfg.SolanaRPCURL, m, logger).
		WithConfirmPolicy(cfg.ConfirmTimeout, cfg.ConfirmPollInterval)
	logger.Info("initialized ledger client", "url", cfg.SolanaRPCURL, "commitment", cfg.Commitment)

	sg := signer.NewGateway(signer.NewNATSTransport(cfg.SignerNATSURL, cfg.SignerSubject, logger), cfg.SignerTimeout, m, logger)
	logger.Info("initialized signer gateway", "nats_url", cfg.SignerNATSURL, "subject", cfg.SignerSubject)

	sess := session.New(sg, lg, st, session.ConfigFrom(cfg), m, logger)

	if cfg.EventsNATSURL != "" {
		pub, err := events.NewPublisher(cfg.EventsNATSURL, logger)
		if err != nil {
			logger.Error("failed to connect activity publisher", "nats_url", cfg.EventsNATSURL, "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		sess.WithPublisher(pub)
		logger.Info("publishing activity events", "nats_url", cfg.EventsNATSURL)
	}
	defer sess.Close()

	if err := sess.RestoreFromCache(ctx); err != nil {
		// Not fatal: the user can connect again.
		logger.Warn("failed to restore session", "error", err)
	}

	httpServer := server.New(cfg.ServerAddr, sess, m, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		return
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Closing the session first cancels confirmation waits, so in-flight
		// transfer handlers return instead of holding Shutdown open.
		sess.Close()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
