// Package api exposes the investigation engine over a chi REST surface.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/finsec/fraudlens/internal/alert"
	"github.com/finsec/fraudlens/internal/detect"
	"github.com/finsec/fraudlens/internal/domain"
	"github.com/finsec/fraudlens/internal/investigate"
	"github.com/finsec/fraudlens/internal/ring"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, store domain.GraphStore, cache domain.Cache,
	facade *investigate.Facade, rings *ring.Service, alerts *alert.Service,
	detector *detect.Engine, version string) *Server {
	handler := NewHandler(store, cache, facade, rings, alerts, detector, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Investigation surface
	router.Get("/dashboard", handler.Dashboard)
	router.Get("/investigate/{type}/{id}", handler.Investigate)
	router.Post("/detect", handler.Detect)
	router.Get("/path", handler.ConnectionPath)
	router.Get("/search", handler.Search)
	router.Post("/reports", handler.CreateReport)

	// Entities
	router.Get("/accounts/high-risk", handler.HighRiskAccounts)
	router.Get("/transactions/flagged", handler.FlaggedTransactions)
	router.Post("/transactions", handler.IngestTransaction)
	router.Get("/transactions/{id}", handler.GetTransaction)
	router.Get("/infrastructure/{kind}", handler.SharedInfrastructure)

	// Rings and alerts
	router.Get("/rings", handler.ListRings)
	router.Get("/rings/{id}", handler.GetRing)
	router.Post("/rings/{id}/status", handler.UpdateRingStatus)
	router.Get("/alerts", handler.ListAlerts)
	router.Post("/alerts/{id}/resolve", handler.ResolveAlert)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
