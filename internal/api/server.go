package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carcrawl/carcrawl/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// Server hosts the monitoring API.
type Server struct {
	srv *http.Server
	log logger.Interface
}

// NewServer builds the router and the HTTP server around it.
func NewServer(p Params) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              p.Addr,
			Handler:           SetupRouter(p),
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: p.Logger,
	}
}

// Start serves requests until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.log.Info("Starting API server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Stopping API server")
	return s.srv.Shutdown(ctx)
}
