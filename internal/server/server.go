package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/zsiec/theater/internal/config"
	"github.com/zsiec/theater/internal/errors"
	"github.com/zsiec/theater/internal/health"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/playback"
)

// Engine is the playback side of the status API. Commands are queued for
// the tick goroutine; they fail when the queue is full.
type Engine interface {
	Status() (playback.Status, bool)
	ApplyOffset(deltaMs int) error
	TogglePreview() error
	DeleteConfig() error
}

// Server is the local status API.
type Server struct {
	config       *config.ServerConfig
	router       *mux.Router
	httpServer   *http.Server
	logger       logger.Logger
	healthMgr    *health.Manager
	errorHandler *errors.ErrorHandler
	engine       Engine
	limiter      *rate.Limiter
}

// New creates the server and its routes. healthMgr may already carry
// checkers.
func New(cfg *config.ServerConfig, l logger.Logger, healthMgr *health.Manager, engine Engine) *Server {
	if l == nil {
		l = logger.NewNullLogger()
	}
	l = logger.WithComponent(l, "server")
	if healthMgr == nil {
		healthMgr = health.NewManager(l)
	}

	s := &Server{
		config:       cfg,
		router:       mux.NewRouter(),
		logger:       l,
		healthMgr:    healthMgr,
		errorHandler: errors.NewErrorHandler(l),
		engine:       engine,
		limiter:      rate.NewLimiter(rate.Limit(commandRate), commandBurst),
	}
	s.setupRoutes()
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.ListenAddr, strconv.Itoa(s.config.Port))
}

// Start serves until ctx is done, then shuts down within the configured
// shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go s.healthMgr.StartPeriodicChecks(ctx, 30*time.Second)

	s.logger.WithField("addr", ln.Addr().String()).Info("Starting status server")
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down status server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("Status server shutdown complete")
	return nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggerMiddleware)
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods("GET")
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods("GET")

	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	commands := api.NewRoute().Subrouter()
	commands.Use(s.rateLimitMiddleware)
	commands.HandleFunc("/offset", s.handleOffset).Methods("POST")
	commands.HandleFunc("/preview/toggle", s.handleTogglePreview).Methods("POST")
	commands.HandleFunc("/config", s.handleDeleteConfig).Methods("DELETE")

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
}

// RegisterRoutes adds route handlers to the router.
func (s *Server) RegisterRoutes(registerFunc func(*mux.Router)) {
	registerFunc(s.router)
}

// GetRouter returns the router for testing.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
