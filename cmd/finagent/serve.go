package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/http"
)

var (
	serveHost string
	servePort int
)

// serveCmd starts the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run, memory and stats API over HTTP",
	Long: `Start the HTTP server. Endpoints:

  POST /api/v1/runs          {"query": "NVIDIA"}
  GET  /api/v1/memory
  POST /api/v1/memory/reset  {"confirm": true}
  GET  /api/v1/stats?format=text|markdown|json
  GET  /health
  GET  /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
}

// runServe starts the server and blocks until SIGINT or SIGTERM.
func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, appOptions{needsAgent: true, registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return err
	}
	defer a.close(ctx)

	host, port := a.cfg.Server.Host, a.cfg.Server.Port
	if serveHost != "" {
		host = serveHost
	}
	if servePort != 0 {
		port = servePort
	}

	logger := a.logger.Underlying().Named("http")
	srv, err := httpserver.NewServer(a.orch, logger, &httpserver.Config{Host: host, Port: port})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("server shutdown complete")
	return nil
}
