// Package app hosts the encore HTTP surface: JSON views for the catalog,
// concert and profile pages, the fan action API, the chat WebSocket, and
// optionally the MCP endpoint and a gRPC health listener.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	platformgrpc "github.com/louisbranch/encore/internal/platform/grpc"
	"github.com/louisbranch/encore/internal/platform/timeouts"
)

// HealthService is the gRPC health service name reported while serving.
const HealthService = "encore.companion"

// Config defines the listeners.
type Config struct {
	HTTPAddr string
	// HealthAddr enables the gRPC health listener when set.
	HealthAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the HTTP listener and the optional health listener.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	health          *platformgrpc.HealthServer
	logger          *log.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds a server for deps.
func NewServer(config Config, deps Deps) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	handler, err := NewHandler(deps)
	if err != nil {
		return nil, err
	}

	var health *platformgrpc.HealthServer
	if addr := strings.TrimSpace(config.HealthAddr); addr != "" {
		health, err = platformgrpc.NewHealthServer(addr, HealthService)
		if err != nil {
			return nil, fmt.Errorf("start health listener: %w", err)
		}
		health.SetServing(HealthService, false)
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           handler,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
		health: health,
		logger: deps.Logger,
	}, nil
}

// Addr returns the bound HTTP address once listening, else the configured
// one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpAddr
}

// HealthAddr returns the gRPC health listener address, if enabled.
func (s *Server) HealthAddr() string {
	return s.health.Addr()
}

// ListenAndServe runs the listeners until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("encore server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	listener, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpAddr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	healthErr := make(chan error, 1)
	if s.health != nil {
		go func() {
			healthErr <- s.health.Serve(healthCtx)
		}()
		s.health.SetServing(HealthService, true)
	}

	serveErr := make(chan error, 1)
	s.logger.Printf("encore server listening on %s", listener.Addr())
	go func() {
		serveErr <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.health.SetServing(HealthService, false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		stopHealth()
		if s.health != nil {
			if herr := <-healthErr; herr != nil {
				s.logger.Printf("health listener stopped: err=%v", herr)
			}
		}
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case err := <-healthErr:
		_ = s.httpServer.Close()
		if err == nil {
			err = errors.New("health listener exited")
		}
		return fmt.Errorf("serve health: %w", err)
	}
}

// Close releases listeners.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if err := s.httpServer.Close(); err != nil {
		s.logger.Printf("close http server: %v", err)
	}
	s.health.Close()
}
