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
)

func main() {
	ctx := context.Background()
	app, cleanup, err := BuildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := app.Config

	slog.Info("starting tourneykit server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter)
	slog.Debug("effective configuration", "config", cfg.String())

	if err := bootstrapSuperAdmin(ctx, app); err != nil {
		slog.Error("startup failed", "error", err)
		cleanup()
		os.Exit(1)
	}

	srv := app.Server
	errCh := make(chan error, 2)

	go func() {
		slog.Info("server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if ms := app.MetricsServer.Server; ms != nil {
		go func() {
			slog.Info("metrics listening", "address", ms.Addr, "path", cfg.Metrics.Path)
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	exitCode := 0
	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String(), "timeout", cfg.Server.ShutdownTimeout)
	case err := <-errCh:
		slog.Error("server failed", "error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
		exitCode = 1
	}
	if ms := app.MetricsServer.Server; ms != nil {
		if err := ms.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during metrics shutdown", "error", err)
		}
	}

	slog.Info("server stopped")
	if exitCode != 0 {
		cancel()
		cleanup()
		os.Exit(exitCode)
	}
}
