// Package server runs the creative analysis HTTP service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tendant/creative-analysis/pkg/creative/api"
	"github.com/tendant/creative-analysis/pkg/creative/config"
)

// ShutdownTimeout bounds the graceful drain of in-flight deliveries.
const ShutdownTimeout = 30 * time.Second

// Run builds the analyzer from cfg and serves the API until ctx is done.
func Run(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rt, err := cfg.BuildAnalyzer(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build analyzer: %w", err)
	}
	defer rt.Close()

	handler := api.NewAnalysisHandler(rt.Analyzer, rt.Ready, logger)
	var routerOpts []api.RouterOption
	if rt.Registry != nil {
		routerOpts = append(routerOpts, api.WithRegistry(rt.Registry))
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           api.NewRouter(handler, routerOpts...),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Creative analysis server starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"database", cfg.DatabaseType,
			"storage", cfg.Storage.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exiting")
	return nil
}
