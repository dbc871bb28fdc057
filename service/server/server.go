package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/brojonat/walletlink/service/metrics"
	"github.com/brojonat/walletlink/service/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session is the wallet session the API exposes.
type Session interface {
	Snapshot() session.Snapshot
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	RefreshBalance(ctx context.Context) error
	RequestAirdrop(ctx context.Context) (*session.TransferResult, error)
	SendTransfer(ctx context.Context, recipient, amount string) (*session.TransferResult, error)
	SetDraft(recipient, amount string) error
	SendDraft(ctx context.Context) (*session.TransferResult, error)
	ReceiveQR(size int) ([]byte, error)
	Subscribe(buffer int) (<-chan session.Snapshot, func())
}

// Server is the local HTTP API in front of the wallet session.
type Server struct {
	addr    string
	session Session
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server

	// done is closed on Shutdown so open streams end.
	done     chan struct{}
	doneOnce sync.Once
}

// New creates the API server. metrics is optional; without it /metrics is not
// served and requests are not measured.
func New(addr string, sess Session, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		session: sess,
		metrics: m,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /api/v1/session", handleGetSession(s.session))
	s.route(mux, "POST /api/v1/session/connect", handleConnect(s.session, s.logger))
	s.route(mux, "POST /api/v1/session/disconnect", handleDisconnect(s.session, s.logger))
	s.route(mux, "POST /api/v1/session/balance", handleRefreshBalance(s.session, s.logger))
	s.route(mux, "POST /api/v1/session/airdrop", handleAirdrop(s.session, s.logger))
	s.route(mux, "PUT /api/v1/session/draft", handleSetDraft(s.session, s.logger))
	s.route(mux, "POST /api/v1/session/draft/send", handleSendDraft(s.session, s.logger))
	s.route(mux, "GET /api/v1/session/qr", handleReceiveQR(s.session, s.logger))
	s.route(mux, "POST /api/v1/transfers", handleSendTransfer(s.session, s.logger))
	s.route(mux, "GET /api/v1/stream/session", handleStreamSession(s.session, s.done, s.metrics, s.logger))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// route registers h under pattern, measured under the pattern's path.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.Handler) {
	if s.metrics != nil {
		h = metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h)
	}
	mux.Handle(pattern, h)
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: transfers wait on the user in the signer and on
		// ledger confirmation, and the session stream is long-lived.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.doneOnce.Do(func() { close(s.done) })
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
