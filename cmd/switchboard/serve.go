package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/switchboard/config"
	sbhttp "github.com/sagarc03/switchboard/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Start the server with the native listener (default) or inside
net/http behind a chi router (--listener http).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (default: 127.0.0.1, env: SWITCHBOARD_SERVER_HOST)")
	serveCmd.Flags().Int("port", 0, "listen port (default: 8000, env: SWITCHBOARD_SERVER_PORT)")
	serveCmd.Flags().String("listener", "", "listener: native, http (env: SWITCHBOARD_SERVER_LISTENER)")
	serveCmd.Flags().String("base-directory", "", "content base directory (env: SWITCHBOARD_CONTENT_BASE_DIRECTORY)")
	serveCmd.Flags().String("access-mode", "", "access mode: default-permit, default-deny (env: SWITCHBOARD_ACCESS_MODE)")
	serveCmd.Flags().String("auth-mode", "", "auth mode: none, basic, presigned, any (env: SWITCHBOARD_AUTH_MODE)")
	serveCmd.Flags().Bool("metrics", false, "expose Prometheus metrics (env: SWITCHBOARD_METRICS_ENABLED)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer func() { _ = a.server.Close() }()

	ctx := cmd.Context()
	if cfg.Server.Listener == "http" {
		return serveHTTP(ctx, cfg, a)
	}
	return serveNative(ctx, cfg, a)
}

func serveNative(ctx context.Context, cfg *config.Config, a *app) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "err", err)
	}
	return <-errCh
}

func serveHTTP(ctx context.Context, cfg *config.Config, a *app) error {
	routerCfg := sbhttp.RouterConfig{
		TrustProxy: cfg.Server.TrustProxy,
		HealthPath: healthPath,
		Logger:     slog.Default(),
	}
	if a.metrics != nil {
		routerCfg.MetricsPath = cfg.Metrics.Path
		routerCfg.Metrics = a.metrics.HTTPHandler()
	}

	server := &http.Server{
		Addr:         a.server.Settings.Addr(),
		Handler:      sbhttp.NewRouter(a.server, routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	server.SetKeepAlivesEnabled(cfg.Server.KeepAlive)

	go func() {
		<-ctx.Done()

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
	}()

	slog.Info("starting server", "addr", server.Addr, "listener", "http")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
