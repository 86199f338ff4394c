// Package server is the HTTP and WebSocket front end of the cluster.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"agentcluster/internal/campaign"
	"agentcluster/internal/logging"
)

// Cluster is the orchestrator surface served over HTTP.
type Cluster interface {
	Start(requirement string) error
	Stop()
	SubmitIntent(prompt string) error
	Snapshot() campaign.Snapshot
	Subscribe(ctx context.Context) <-chan campaign.Snapshot
}

// Config holds the server dependencies.
type Config struct {
	Addr         string
	Cluster      Cluster
	MCPHandler   http.Handler // mounted at /mcp when non-nil
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	cluster    Cluster
	version    string
}

// New creates a server with every route registered.
func New(cfg Config) *Server {
	s := &Server{cluster: cfg.Cluster, version: cfg.Version}

	mux := http.NewServeMux()

	// Commands.
	mux.HandleFunc("POST /v1/build", s.handleStartBuild)
	mux.HandleFunc("POST /v1/build/stop", s.handleStopBuild)
	mux.HandleFunc("POST /v1/intent", s.handleSubmitIntent)

	// Observation.
	mux.HandleFunc("GET /v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /v1/servers", s.handleServers)
	mux.HandleFunc("GET /v1/stream", s.handleStream)

	if cfg.MCPHandler != nil {
		mux.Handle("/mcp", cfg.MCPHandler)
	}

	mux.HandleFunc("GET /health", s.handleHealth)

	var handler http.Handler = mux
	handler = recoveryMiddleware(handler)
	handler = loggingMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	logging.Server("HTTP server listening on %s", l.Addr())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Server("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
