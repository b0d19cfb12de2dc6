// Package api serves the operator read API: address lookup, sync status,
// paginated listings, the failure queue and the retry trigger.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/indexing/recovery"
	"github.com/vietddude/addrindex/internal/infra/storage"
)

// StatusProvider reports the sync state.
type StatusProvider interface {
	Status(ctx context.Context) (domain.SyncStatus, error)
}

// Retrier replays the failure queue.
type Retrier interface {
	Retry(ctx context.Context) (recovery.Result, error)
}

// ServerOpts holds the dependencies of the API server.
type ServerOpts struct {
	Logger    *slog.Logger
	Port      int
	Addresses storage.AddressRepository
	Failures  storage.FailedBlockRepository
	Status    StatusProvider
	Retrier   Retrier

	// Health checks backing services; nil reports healthy.
	Health func(ctx context.Context) error
}

// API server
type Server struct {
	r      chi.Router
	log    *slog.Logger
	opts   ServerOpts
	server *http.Server
}

// NewServer creates the API server with its routes loaded.
func NewServer(opts ServerOpts) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		log:  opts.Logger.With("component", "api"),
		opts: opts,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start listens until Stop is called.
func (s *Server) Start() error {
	s.log.Info("API server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Turns server into http server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

// Returns JSON response to the API user. HTTP status code
// and data must be provided
func JSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}

// Returns an error to the API user
func ERROR(w http.ResponseWriter, statusCode int, err error) {
	JSON(w, statusCode, map[string]string{"error": err.Error()})
}
