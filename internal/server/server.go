// Package server exposes the ledger over HTTP: a signed operation
// ingress, read endpoints, a websocket event feed and the usual
// health, status and metrics surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"token-ledger/internal/events"
	"token-ledger/internal/ledger"
	"token-ledger/internal/observability"
	"token-ledger/internal/oplog"
)

// Options configures a Server.
type Options struct {
	// Ledger is the operation facade. Required.
	Ledger *ledger.Ledger

	// Bus enables the /ws/events feed when set.
	Bus *events.Bus

	// OpLog receives every accepted operation when set.
	OpLog *oplog.Writer

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Server routes HTTP traffic to the ledger.
type Server struct {
	ledger  *ledger.Ledger
	bus     *events.Bus
	oplog   *oplog.Writer
	logger  *log.Logger
	mux     *http.ServeMux
	started time.Time
}

// New validates opts and builds the route table.
func New(opts Options) (*Server, error) {
	if opts.Ledger == nil {
		return nil, errors.New("server: Ledger is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Server{
		ledger:  opts.Ledger,
		bus:     opts.Bus,
		oplog:   opts.OpLog,
		logger:  opts.Logger,
		started: time.Now(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/operations", s.instrument("/v1/operations", s.handleOperation))
	mux.HandleFunc("GET /v1/tokens", s.instrument("/v1/tokens", s.handleTokens))
	mux.HandleFunc("GET /v1/tokens/{id}", s.instrument("/v1/tokens/{id}", s.handleToken))
	mux.HandleFunc("GET /v1/tokens/{id}/balances", s.instrument("/v1/tokens/{id}/balances", s.handleBalances))
	mux.HandleFunc("GET /v1/tokens/{id}/balances/{account}", s.instrument("/v1/tokens/{id}/balances/{account}", s.handleBalance))
	mux.HandleFunc("GET /v1/tokens/{id}/allowances/{owner}/{spender}", s.instrument("/v1/tokens/{id}/allowances", s.handleAllowance))
	mux.HandleFunc("GET /v1/events", s.instrument("/v1/events", s.handleEvents))
	if s.bus != nil {
		mux.HandleFunc("GET /ws/events", s.handleEventFeed)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	s.mux = mux
}

// Handler returns the route table for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("[server] shutdown: %v", err)
		}
	}()

	s.logger.Printf("[server] listening on %s", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}

// instrument wraps a handler with request metrics for one route.
func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		observability.RecordRequest(route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	}
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
