// Package server implements the flowchart REST API on top of a
// store.FlowchartStore.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flowpad/flowpad/store"
)

const (
	// DefaultPrefix is where the API is mounted, matching the client's
	// default base URL.
	DefaultPrefix = "/api"

	maxBodyBytes    = 10 << 20
	shutdownTimeout = 5 * time.Second
)

type Server struct {
	store  store.FlowchartStore
	log    zerolog.Logger
	prefix string
	now    func() time.Time
	newID  func() string
	ready  func(addr string)

	// mu serializes read-modify-write updates so two partial updates to the
	// same flowchart cannot lose each other's fields.
	mu sync.Mutex
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithPrefix mounts the API under prefix instead of /api. Use "" for the root.
func WithPrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = prefix
	}
}

// WithClock overrides time.Now for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithReadyHook registers fn to be called with the bound address once
// ListenAndServe accepts connections.
func WithReadyHook(fn func(addr string)) Option {
	return func(s *Server) {
		s.ready = fn
	}
}

func New(st store.FlowchartStore, opts ...Option) *Server {
	s := &Server{
		store:  st,
		log:    zerolog.Nop(),
		prefix: DefaultPrefix,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	p := s.prefix

	mux.HandleFunc("GET "+p+"/flowcharts/{$}", s.handleList)
	mux.HandleFunc("POST "+p+"/flowcharts/{$}", s.handleCreate)
	mux.HandleFunc("GET "+p+"/flowcharts/{id}/{$}", s.handleGet)
	mux.HandleFunc("PUT "+p+"/flowcharts/{id}/{$}", s.handleUpdate)
	mux.HandleFunc("PATCH "+p+"/flowcharts/{id}/{$}", s.handleUpdate)
	mux.HandleFunc("DELETE "+p+"/flowcharts/{id}/{$}", s.handleDelete)
	mux.HandleFunc("GET "+p+"/flowcharts/{id}/validate_graph/{$}", s.handleValidateGraph)
	mux.HandleFunc("GET "+p+"/flowcharts/{id}/outgoing_edges/{$}", s.handleOutgoingEdges)
	mux.HandleFunc("GET "+p+"/flowcharts/{id}/connected_nodes/{$}", s.handleConnectedNodes)

	return s.logRequests(mux)
}

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts
// down gracefully. A failure to bind is returned before anything is served.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	bound := ln.Addr().String()
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", bound).Str("prefix", s.prefix).Msg("flowchart api listening")
		errCh <- srv.Serve(ln)
	}()
	if s.ready != nil {
		s.ready(bound)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	s.log.Info().Msg("flowchart api stopped")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ev := s.log.Debug()
		if rec.status >= 500 {
			ev = s.log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
