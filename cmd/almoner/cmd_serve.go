package main

import (
	"expvar"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ohana-garden/almoner/internal/api"
	"github.com/ohana-garden/almoner/internal/schema"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			g, err := newGraph(ctx, logger)
			if err != nil {
				return fmt.Errorf("serve: connecting to graph engine: %w", err)
			}
			defer func() { _ = g.Close(ctx) }()

			reg := schema.NewRegistry(logger)
			if err := reg.DeclareIndexes(ctx, g); err != nil {
				return fmt.Errorf("serve: declaring schema: %w", err)
			}

			st := newStore(g, reg, logger)
			res := newResolver(logger)
			eng := newEngine(st, res, logger)

			srv := api.NewServer(st, eng, res, graphPinger{q: g}, logger, cfg.API.AuthToken)

			if cfg.API.AuthToken == "" {
				logger.Warn("HTTP API: auth is DISABLED; set ALMONER_API_AUTH_TOKEN or api.auth_token for production use")
			}

			mux := http.NewServeMux()
			mux.Handle("/", srv.Handler())
			mux.Handle("GET /debug/vars", expvar.Handler())

			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP API server starting", "addr", cfg.API.ListenAddr)
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
					errCh <- fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
			case startErr := <-errCh:
				if startErr != nil {
					return startErr
				}
				return nil
			}

			const shutdownTimeout = 10 * time.Second
			if shutdownErr := api.Shutdown(httpSrv, shutdownTimeout); shutdownErr != nil {
				return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
			}

			// Drain the errCh in case ListenAndServe returned after Shutdown.
			if startErr := <-errCh; startErr != nil {
				return startErr
			}

			return nil
		},
	}
	return cmd
}
