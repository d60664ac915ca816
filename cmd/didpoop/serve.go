// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/didpoop/didpoop/internal/auth"
	"github.com/didpoop/didpoop/internal/config"
	"github.com/didpoop/didpoop/internal/graph"
	"github.com/didpoop/didpoop/internal/logging"
	"github.com/didpoop/didpoop/internal/observability"
	"github.com/didpoop/didpoop/internal/postgres"
	"github.com/didpoop/didpoop/internal/server"
	"github.com/didpoop/didpoop/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the didpoop API server",
		Long: `Start the HTTP server exposing the GraphQL API, the status
endpoint, and (separately) metrics and health probes.`,
		RunE: runServe,
	}

	cmd.Flags().String("host", "localhost", "host to listen on")
	cmd.Flags().Int("port", 3030, "port to listen on")
	cmd.Flags().String("metrics-addr", "localhost:9090", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "json", "log format (json or text)")
	cmd.Flags().Bool("secure-cookie", true, "set the Secure attribute on auth cookies")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("didpoop", cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger := slog.Default()

	if !cfg.SecureCookie {
		logger.Warn("*** SECURE COOKIE IS DISABLED ***")
	}

	ctx := cmd.Context()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConnections)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database", "max_connections", cfg.DatabaseMaxConnections)

	storage := postgres.NewStorage(pool)
	authService := auth.NewService(
		storage.Users,
		storage.Tokens,
		[]byte(cfg.SigningKey),
		time.Duration(cfg.AuthExpirationSeconds)*time.Second,
		cfg.Cookie(),
	)
	executor := graph.NewExecutor(graph.NewResolver(authService, storage))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		obsErrCh, obsErr := obsServer.Start()
		if obsErr != nil {
			return obsErr
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metrics = obsServer.Metrics()
	}

	srv := server.New(server.Options{
		Addr:       cfg.Addr(),
		Version:    cfg.Version,
		CookieName: cfg.CookieName,
		Auth:       authService,
		Store:      storage,
		Executor:   executor,
		Metrics:    metrics,
		Logger:     logger,
	})
	errCh, err := srv.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, errCh, "http")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("didpoop ready",
		"version", cfg.Version,
		"addr", cfg.Addr(),
		"real_host", cfg.RealHost(),
	)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("failed to stop server cleanly", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("failed to stop observability server cleanly", "error", err)
		}
	}
	return nil
}

// monitorServerErrors cancels the run context when a server's error
// channel reports a failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
