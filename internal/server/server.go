// Package server provides the HTTP API for docsift.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/blob"
	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/export"
	"github.com/docsift/docsift/internal/extract"
	"github.com/docsift/docsift/internal/queue"
	"github.com/docsift/docsift/internal/search"
	"github.com/docsift/docsift/internal/store"
)

// Server is the HTTP server for the docsift API.
type Server struct {
	store      store.Store
	blobs      *blob.DiskStore
	broker     queue.Broker
	searchIdx  *search.Index
	exporter   *export.Service
	extractor  *extract.Extractor
	jobTimeout time.Duration
	config     *config.ServerConfig
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	st store.Store,
	blobs *blob.DiskStore,
	broker queue.Broker,
	searchIdx *search.Index,
	exporter *export.Service,
	extractor *extract.Extractor,
	jobTimeout time.Duration,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:      st,
		blobs:      blobs,
		broker:     broker,
		searchIdx:  searchIdx,
		exporter:   exporter,
		extractor:  extractor,
		jobTimeout: jobTimeout,
		config:     cfg,
		logger:     logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.tenantMiddleware)

		r.Post("/documents", s.handleUpload)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/export/json", s.handleExportJSON)
		r.Get("/documents/export/csv", s.handleExportCSV)
		r.Get("/documents/export/xlsx", s.handleExportXLSX)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Get("/documents/{id}/download", s.handleDownload)
		r.Get("/search", s.handleSearch)
		r.Get("/status", s.handleStatus)
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
