// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mint-engine/internal/job"
	"github.com/mint-engine/internal/ledger"
	"github.com/mint-engine/internal/models"
	"github.com/mint-engine/internal/types"
)

// Service interfaces for dependency injection and testing

// JobServiceInterface defines the interface for job submission and status
type JobServiceInterface interface {
	Submit(ctx context.Context, input *job.SubmitInput) (*job.SubmitResult, error)
	Status(ctx context.Context, jobID string) (*job.StatusResult, error)
}

// LedgerServiceInterface defines the interface for ledger ingestion and queries
type LedgerServiceInterface interface {
	IngestTransfer(ctx context.Context, input *ledger.TransferInput) error
	IngestMint(ctx context.Context, input *ledger.MintInput) error
	Leaderboard(ctx context.Context, n int) ([]types.HolderCount, error)
	Mint(ctx context.Context, tokenID uint64) (*models.MintRecord, error)
	TotalMints(ctx context.Context) (int64, error)
}

// HealthChecker reports store connectivity for the health endpoint
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router        *mux.Router
	httpServer    *http.Server
	jobService    JobServiceInterface
	ledgerService LedgerServiceInterface
	dbChecker     HealthChecker
	cacheChecker  HealthChecker
	config        *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	jobService JobServiceInterface,
	ledgerService LedgerServiceInterface,
	dbChecker HealthChecker,
	cacheChecker HealthChecker,
) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		jobService:    jobService,
		ledgerService: ledgerService,
		dbChecker:     dbChecker,
		cacheChecker:  cacheChecker,
		config:        config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSec)

	// Middleware order matters
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Job endpoints
	api.HandleFunc("/jobs", s.handleSubmitJob).Methods("POST")
	api.HandleFunc("/jobs/{id}", s.handleJobStatus).Methods("GET")

	// Webhook ingestion endpoints
	api.HandleFunc("/webhooks/transfer", s.handleIngestTransfer).Methods("POST")
	api.HandleFunc("/webhooks/mint", s.handleIngestMint).Methods("POST")

	// Collection queries
	api.HandleFunc("/tokens/{id}", s.handleTokenMint).Methods("GET")
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
}

// Start begins serving requests
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// handleHealth reports store connectivity
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if s.dbChecker != nil {
		if err := s.dbChecker.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["postgres"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if s.cacheChecker != nil {
		if err := s.cacheChecker.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, code, status)
}
