// Package server provides the HTTP API for kioku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/history"
	"github.com/hyperjump/kioku/internal/indexer"
	"github.com/hyperjump/kioku/internal/search"
	"github.com/hyperjump/kioku/internal/storage"
)

// requestTimeout bounds every request, including ingestion.
const requestTimeout = 60 * time.Second

// Server is the HTTP server for the kioku API.
type Server struct {
	engine  *search.Engine
	indexer *indexer.Indexer
	history *history.Service
	storage storage.Storage
	config  *config.Config
	logger  *zap.Logger
	router  chi.Router
	server  *http.Server
}

// NewServer creates a server with the given dependencies and builds its routes.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	hist *history.Service,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		engine:  engine,
		indexer: idx,
		history: hist,
		storage: store,
		config:  cfg,
		logger:  logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the router, for embedding in tests or another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Post("/collections", s.handleCreateCollection)
		r.Get("/collections", s.handleListCollections)
		r.Route("/collections/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetCollection)
			r.Delete("/", s.handleDropCollection)
			r.Post("/ingest_file", s.handleIngestFile)
			r.Get("/documents", s.handleListDocuments)
			r.Get("/documents/{id}", s.handleGetDocument)
			r.Put("/documents/{id}", s.handleUpdateDocument)
			r.Delete("/documents/{id}", s.handleDeleteDocument)
		})
		r.Post("/documents", s.handleAddDocument)
		r.Post("/query", s.handleQuery)

		r.Get("/conversations", s.handleListConversations)
		r.Post("/conversations/bulk_delete", s.handleBulkDeleteConversations)
		r.Route("/conversations/{id}", func(r chi.Router) {
			r.Get("/", s.handleListMessages)
			r.Patch("/", s.handleUpdateConversationTitle)
			r.Delete("/", s.handleDeleteConversation)
			r.Get("/export", s.handleExportConversation)
			r.Get("/context", s.handleConversationContext)
		})
		r.Post("/messages", s.handleAddMessage)
		r.Post("/similarity_search", s.handleSimilaritySearch)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("storage", s.storage.Driver()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
