package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/alertledger/internal/config"
	"github.com/dgallion1/alertledger/internal/kvstore"
	"github.com/dgallion1/alertledger/internal/ledger"
	"github.com/dgallion1/alertledger/internal/pipeline"
)

// Submitter accepts jobs for asynchronous processing.
type Submitter interface {
	Submit(job *pipeline.Job) error
	GetJob(id string) *pipeline.Job
	QueueDepth() int
}

// Registry manages account mappings and the document dedup index.
type Registry interface {
	MapAccount(ctx context.Context, suffix, ledgerAccountID string) error
	ResolveAccount(ctx context.Context, suffix string) (string, error)
	LookupDocument(ctx context.Context, sha256Hex string) (*kvstore.DocumentRecord, error)
	ForgetDocument(ctx context.Context, sha256Hex string) error
}

// Server is the HTTP API server for alertledger.
type Server struct {
	router  chi.Router
	jobs    Submitter
	stats   *ledger.LatencyStats
	kv      Registry
	log     *slog.Logger
	cfg     config.Config
	started time.Time
}

// NewServer creates and configures the HTTP server.
func NewServer(jobs Submitter, stats *ledger.LatencyStats, kv Registry, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		jobs:    jobs,
		stats:   stats,
		kv:      kv,
		log:     log,
		cfg:     cfg,
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/ingest", s.handleIngest)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)

		r.Post("/api/extract", s.handleExtract)
		r.Get("/api/layouts", s.handleLayouts)
		r.Get("/api/stats/ledger", s.handleLedgerStats)

		r.Put("/api/accounts/{suffix}", s.handlePutAccount)
		r.Get("/api/accounts/{suffix}", s.handleGetAccount)
		r.Get("/api/documents/{hash}", s.handleGetDocument)
		r.Delete("/api/documents/{hash}", s.handleForgetDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.jobs.QueueDepth(),
		"uptime_s":    int64(time.Since(s.started).Seconds()),
	})
}
