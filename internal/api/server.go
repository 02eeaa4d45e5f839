package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-scenes/internal/automation"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ExecutionLister reads recorded executions. *automation.SQLiteRepository
// satisfies it.
type ExecutionLister interface {
	ListExecutions(ctx context.Context, selector string, limit int) ([]automation.SceneExecution, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Logger     *logging.Logger
	Engine     *automation.Engine
	Executions ExecutionLister

	// Health is reported by /api/v1/health; nil means always healthy.
	Health func(ctx context.Context) error

	Version string
}

// Server is the HTTP API server of the scene engine.
type Server struct {
	deps   Deps
	logger *logging.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("scene engine is required")
	}
	if deps.Executions == nil {
		return nil, fmt.Errorf("execution lister is required")
	}

	return &Server{deps: deps, logger: deps.Logger}, nil
}

// Start binds the listen address and serves requests in the background.
// Binding errors (port in use, bad address) are returned directly.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	ln, err := net.Listen("tcp", s.deps.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.deps.Address, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.deps.ReadTimeout,
		ReadHeaderTimeout: s.deps.ReadTimeout,
		WriteTimeout:      s.deps.WriteTimeout,
		IdleTimeout:       s.deps.IdleTimeout,
	}

	srv := s.server
	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", serveErr)
		}
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}
