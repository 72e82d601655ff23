package main

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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httphandler "github.com/ericfisherdev/miniappq/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/miniappq/internal/adapter/driving/web"
	"github.com/ericfisherdev/miniappq/internal/application"
	"github.com/ericfisherdev/miniappq/internal/config"
)

// refreshBurst is how many refresh requests may arrive back to back before the
// MINIAPPQ_REFRESH_RPS budget applies.
const refreshBurst = 2

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Generate queries for every session and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"sessions_dir", cfg.SessionsDir,
		"bots", cfg.Bots,
		"on_error", cfg.OnError,
		"refresh_interval", cfg.RefreshInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database, reset schema and wire the pipeline.
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// 4. Create query service.
	querySvc := application.NewQueryService(
		a.batch,
		a.queries,
		a.identities,
		a.proxies,
		cfg.Bots,
		cfg.RefreshInterval,
	)

	// 5. Register API and landing page routes.
	limiter := httphandler.NewRefreshLimiter(cfg.RefreshRPS, refreshBurst, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, httphandler.NewHandler(querySvc, limiter, slog.Default()))
	webhandler.RegisterRoutes(mux, webhandler.NewHandler(cfg.Bots, slog.Default()))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.ApplyMiddleware(mux, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No WriteTimeout: a refresh blocks for as long as Telegram flood waits last.
		IdleTimeout: 120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// 6. Startup generation, then refresh loop. A fatal error cancels gctx.
	g.Go(func() error {
		return querySvc.Start(gctx)
	})

	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// 7. Wait for shutdown signal or a fatal error, then drain.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	slog.Info("miniappq started", "listen_addr", cfg.ListenAddr, "bots", cfg.Bots)

	err = g.Wait()
	slog.Info("shutdown complete")
	return err
}
