package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const defaultShutdownTimeout = 10 * time.Second

// ServerOpts contains configuration options for creating a [Server].
type ServerOpts struct {
	Addr            string
	Hub             *Hub
	Origins         []string
	ShutdownTimeout time.Duration
	Logger          *log.Logger
}

// Server binds a [Hub] to HTTP: the websocket stream on "/" and a health probe on "/health".
type Server struct {
	addr            string
	hub             *Hub
	router          *BasicRouter
	shutdownTimeout time.Duration
	logger          *log.Logger
}

// NewServer creates a [Server] and registers its routes.
func NewServer(opts ServerOpts) (*Server, error) {
	if opts.Hub == nil {
		return nil, fmt.Errorf("%w: hub", shared.ErrMissingArgument)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	router := NewBasicRouter()
	router.Use(RequestLogger(shared.WithLogger(opts.Logger, "component", "http")))
	router.Handle(http.MethodGet, "/health", http.HandlerFunc(HealthHandler))
	router.Handler(NewStreamHandler(opts.Hub, opts.Origins, opts.Logger))

	return &Server{
		addr:            opts.Addr,
		hub:             opts.Hub,
		router:          router,
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          opts.Logger,
	}, nil
}

// Handler returns the routed handler, for mounting in tests or another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes every subscription and
// shuts the HTTP server down within the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errs <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errs:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutdown signal received, stopping")
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
