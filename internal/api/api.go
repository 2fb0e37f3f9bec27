// Package api provides HTTP handlers and the main API server logic for ClaimPipe.
//
// It exposes RESTful endpoints for submitting, processing, and inspecting
// healthcare claims, including the fraud analysis and agent audit trails
// produced by the workflow engine.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/exceptions"
	"github.com/MedLedger/ClaimPipe/internal/fraud"
	"github.com/MedLedger/ClaimPipe/internal/store"
	"github.com/MedLedger/ClaimPipe/internal/workflow"
)

// Server configuration constants
const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown on context cancellation.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultReadHeaderTimeout guards against slow-header attacks.
	DefaultReadHeaderTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option configures API server creation.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server serves the ClaimPipe HTTP API.
type Server struct {
	st         store.Store
	engine     *workflow.Engine
	fraud      *fraud.Service
	exceptions *exceptions.Service
	addr       string
}

// NewServer creates an API server wired to the given components.
func NewServer(st store.Store, engine *workflow.Engine, fraudSvc *fraud.Service, exceptionSvc *exceptions.Service, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		st:         st,
		engine:     engine,
		fraud:      fraudSvc,
		exceptions: exceptionSvc,
		addr:       cfg.Addr,
	}
}

// Handler builds the route table for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /claims/submit", s.submitClaimHandler)
	mux.HandleFunc("GET /claims", s.listClaimsHandler)
	mux.HandleFunc("GET /claims/{id}", s.claimDetailHandler)
	mux.HandleFunc("POST /claims/{id}/process", s.processClaimHandler)
	mux.HandleFunc("GET /claims/{id}/fraud-analysis", s.fraudAnalysisHandler)
	mux.HandleFunc("POST /claims/{id}/handle-exception", s.handleExceptionHandler)
	mux.HandleFunc("GET /claims/{id}/agent-timeline", s.agentTimelineHandler)
	mux.HandleFunc("GET /claims/{id}/agent-reasoning", s.agentReasoningHandler)
	mux.HandleFunc("GET /claims/{id}/tool-usage", s.toolUsageHandler)
	mux.HandleFunc("GET /dashboard/metrics", s.dashboardMetricsHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: ClaimPipe API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}
