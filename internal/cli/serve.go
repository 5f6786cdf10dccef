package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mindtree/internal/app"
	"mindtree/internal/auth"
	"mindtree/internal/config"
	"mindtree/internal/logger"
)

const serveLongDesc string = `Run the mindtree HTTP API. Settings come from mindtree.toml, MINDTREE_* environment
variables and the flags below, flags winning.`

const serveShortDesc string = "Run the HTTP API"

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.NewLogger(cfg.Debug)
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}

	cmd.Flags().StringP("addr", "l", ":8787", "Address for the API server to listen on")

	return cmd
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("shutdown cleanup", zap.Error(err))
		}
	}()

	if err := rt.service.Bootstrap(ctx); err != nil {
		log.Warn("bootstrap error (will retry on next restart)", zap.Error(err))
	}

	guard := auth.NewGuard(cfg.WriteTokenHash)
	if guard.Enabled() {
		log.Info("write guard enabled")
	}

	httpServer := app.NewHTTPServer(rt.service, cfg.CORSOrigin, guard, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("mindtree API listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
