// Package gateway exposes the conversation engine over a websocket channel.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/parley/internal/observability"
	"github.com/haasonsaas/parley/internal/sessions"
)

// Server hosts the websocket endpoint, a health banner, and metrics.
type Server struct {
	addr           string
	allowedOrigins map[string]bool
	store          *sessions.Store
	logger         *slog.Logger
	metrics        *observability.Metrics

	// Keepalive timing, overridable in tests.
	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration

	httpServer *http.Server
}

// ServerConfig configures the gateway server.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	Store          *sessions.Store
	Logger         *slog.Logger
	Metrics        *observability.Metrics
}

// NewServer creates the gateway server.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var origins map[string]bool
	if len(cfg.AllowedOrigins) > 0 {
		origins = make(map[string]bool, len(cfg.AllowedOrigins))
		for _, origin := range cfg.AllowedOrigins {
			origins[origin] = true
		}
	}
	return &Server{
		addr:           cfg.Addr,
		allowedOrigins: origins,
		store:          cfg.Store,
		logger:         logger.With("component", "gateway"),
		metrics:        cfg.Metrics,
		pingInterval:   wsPingInterval,
		pongWait:       wsPongWait,
		writeWait:      wsWriteWait,
	}
}

// Handler returns the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("parley gateway\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/ws", s.newWSHandler())
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.allowedOrigins == nil {
		return true
	}
	return s.allowedOrigins[r.Header.Get("Origin")]
}
