// Package status serves the game server's HTTP side channel: a liveness
// probe, a JSON snapshot and Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyberinferno/go-gameserver/logger"
	"github.com/cyberinferno/go-gameserver/server"
)

// Source provides the snapshot served on /status.
type Source interface {
	Snapshot() server.Snapshot
	State() server.State
}

// NewRouter builds the status routes.
//
// Routes:
//   - GET /healthz: 200 "ok" while the server is running, 503 otherwise
//   - GET /status: the server snapshot as JSON
//   - GET /metrics: Prometheus exposition of gatherer
//
// Parameters:
//   - src: The server to report on
//   - gatherer: Registry holding the server metrics
//
// Returns:
//   - The router
func NewRouter(src Source, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if src.State() != server.Running {
			http.Error(w, src.State().String(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(src.Snapshot())
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// Serve runs an HTTP server for handler on addr until ctx is cancelled.
//
// Parameters:
//   - ctx: Cancelling ctx shuts the HTTP server down
//   - addr: Listen address
//   - handler: Usually the result of NewRouter
//   - log: Logger
//
// Returns:
//   - nil after a clean shutdown, or the listen error
func Serve(ctx context.Context, addr string, handler http.Handler, log logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("status server started", logger.F("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info("status server stopped")
	return nil
}
