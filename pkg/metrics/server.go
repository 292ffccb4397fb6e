package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the Prometheus scrape endpoint alongside a trivial
// liveness probe. It runs separately from the obd-web API so metrics
// can be enabled on any binary that owns an Engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds a server listening on addr. The logger may be nil.
func NewServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	for _, p := range []string{"/health", "/healthz"} {
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			io.WriteString(w, "ok\n")
		})
	}

	return &Server{
		logger: logger,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}
}

// Start begins serving in a background goroutine and returns immediately.
func (s *Server) Start() {
	s.logger.Info("metrics listener starting", "addr", s.httpServer.Addr)

	go func() {
		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics listener stopped", "error", err)
		}
	}()
}

// Shutdown stops the listener, waiting for in-flight scrapes up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
