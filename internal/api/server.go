// Package api exposes the item store and dispatcher over JSON/HTTP and
// provides a client for the same surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nhle/swipemail/internal/dispatch"
	"github.com/nhle/swipemail/internal/rate"
	"github.com/nhle/swipemail/internal/source"
	"github.com/nhle/swipemail/internal/source/email"
	"github.com/nhle/swipemail/internal/store"
)

const (
	// rateWait is how long a request may wait for a limiter token.
	rateWait = 250 * time.Millisecond

	defaultRequestTimeout = 10 * time.Second
	shutdownTimeout       = 5 * time.Second
)

// SourceFactory builds a mailbox source from IMAP settings.
type SourceFactory func(cfg email.Config) source.Source

func defaultSourceFactory(cfg email.Config) source.Source {
	return email.NewAdapter(cfg)
}

// Server serves the REST surface.
type Server struct {
	store      store.Store
	dispatcher *dispatch.Dispatcher
	limiter    rate.Limiter
	logger     *slog.Logger
	timeout    time.Duration
	newSource  SourceFactory
	handler    http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter sets the request limiter. Requests are unlimited by default.
func WithLimiter(l rate.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRequestTimeout bounds the work done for each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithSourceFactory replaces how /email endpoints reach a mailbox.
func WithSourceFactory(f SourceFactory) Option {
	return func(s *Server) { s.newSource = f }
}

// NewServer builds a Server over st and d.
func NewServer(st store.Store, d *dispatch.Dispatcher, opts ...Option) *Server {
	s := &Server{
		store:      st,
		dispatcher: d,
		limiter:    rate.Unlimited{},
		logger:     slog.Default(),
		timeout:    defaultRequestTimeout,
		newSource:  defaultSourceFactory,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeout <= 0 {
		s.timeout = defaultRequestTimeout
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items", s.handleListItems)
	mux.HandleFunc("GET /items/{id}", s.handleGetItem)
	mux.HandleFunc("PATCH /items/{id}/status", s.handleUpdateStatus)
	mux.HandleFunc("POST /items/{id}/undo", s.handleUndo)
	mux.HandleFunc("DELETE /items/{id}", s.handleDeleteItem)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /activities", s.handleActivities)
	mux.HandleFunc("GET /email/providers", s.handleProviders)
	mux.HandleFunc("POST /email/test", s.handleEmailTest)
	mux.HandleFunc("POST /email/fetch", s.handleEmailFetch)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.handler = s.logRequests(s.limit(s.withTimeout(mux)))
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}
