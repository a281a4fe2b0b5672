// Package server exposes the agent over HTTP: the metrics scrape endpoint
// and a health check. The handler chain is assembled once at startup; every
// request runs through panic recovery, request-id tagging, access logging
// and a per-request timeout before reaching a handler.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ironhearth/anvil/internal/config"
)

// Renderer produces one metrics exposition, refreshing the probes first if
// their snapshots have gone stale.
type Renderer interface {
	Render(ctx context.Context) ([]byte, error)
}

// Server is the agent's HTTP front. It owns the listener lifecycle; the
// scrape semantics live behind the Renderer.
type Server struct {
	logger *zap.Logger
	srv    *http.Server
}

// New builds the server with its full middleware chain. The timeout wraps
// each request in cfg.Timeout; a scrape that overruns it gets a 503 while
// any in-flight probe refreshes finish in the background and land in the
// probes' snapshots for the next scrape.
func New(cfg config.HTTPConfig, renderer Renderer, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", metricsHandler(renderer, logger))
	mux.HandleFunc("/health", healthHandler(time.Now()))

	var handler http.Handler = mux
	handler = http.TimeoutHandler(handler, cfg.Timeout.Duration, "request timed out\n")
	handler = withAccessLog(handler, logger)
	handler = withRequestID(handler)
	handler = withRecovery(handler, logger)

	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:              cfg.Listen,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to the shutdown grace period before returning.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
