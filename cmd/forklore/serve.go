package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ersonp/forklore-core/internal/infrastructure/httpapi"
	"github.com/ersonp/forklore-core/internal/infrastructure/observability"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Serves the REST API with Prometheus metrics on /metrics until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func runServe(ctx context.Context, addr string) error {
	return withInternalDeps(ctx, func(d *internalDeps) error {
		cfg := d.Config
		logger := newLogger(os.Stdout, cfg.Log)
		slog.SetDefault(logger)

		shutdownTracer, err := observability.InitTracer(ctx, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		defer shutdownTracer(context.Background())

		if addr == "" {
			addr = cfg.Server.Addr
		}

		gin.SetMode(gin.ReleaseMode)
		router := httpapi.NewRouter(d.Services, httpapi.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Metrics:     d.metrics,
			Gatherer:    d.registry,
		})

		server := &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.InfoContext(ctx, "forklore listening",
				"addr", addr,
				"search", d.Services.Search != nil,
				"assist", d.Services.Assist != nil,
			)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("serving http: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		slog.InfoContext(ctx, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})
}
