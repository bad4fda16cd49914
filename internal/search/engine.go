// Package search answers nearest-neighbour queries over collections and chat history.
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/models"
)

var errNoEmbedder = errors.New("no embedding provider configured")

// VectorSearcher is the storage surface the engine queries.
type VectorSearcher interface {
	SearchDocuments(ctx context.Context, collection string, query []float32, k int) ([]*models.DocumentMatch, error)
	SearchMessages(ctx context.Context, query []float32, k int, conversationID *int64) ([]*models.MessageMatch, error)
}

// Engine runs similarity queries, embedding query text when no vector is given.
type Engine struct {
	store    VectorSearcher
	embedder embedding.Embedder
	config   *config.SearchConfig
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for query debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(store VectorSearcher, embedder embedding.Embedder, cfg *config.SearchConfig, opts ...EngineOption) *Engine {
	e := &Engine{store: store, embedder: embedder, config: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// QueryCollection returns the top_k documents of a collection closest to the query.
// top_k defaults to the configured value and is clamped to [1, max_top_k].
func (e *Engine) QueryCollection(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	k := models.ClampTopK(req.TopK, e.config.DefaultTopK, e.config.MaxTopK)
	vec, err := e.queryVector(ctx, req.QueryText, req.QueryEmbedding)
	if err != nil {
		return nil, err
	}
	matches, err := e.store.SearchDocuments(ctx, req.CollectionName, vec, k)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	if e.logger != nil {
		e.logger.Debug("search collection query",
			zap.String("collection", req.CollectionName), zap.Int("top_k", k),
			zap.Int("results", len(matches)), zap.Duration("took", elapsed))
	}
	return &models.QueryResponse{
		Collection: req.CollectionName,
		Results:    matches,
		QueryTime:  elapsed.Milliseconds(),
	}, nil
}

// SearchMessages returns the chat messages closest to the query, optionally
// scoped to one conversation.
func (e *Engine) SearchMessages(ctx context.Context, req *models.MessageSearchRequest) (*models.MessageSearchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	k := models.ClampTopK(req.TopK, e.config.HistoryDefaultTopK, e.config.MaxTopK)
	vec, err := e.queryVector(ctx, req.QueryText, req.QueryEmbedding)
	if err != nil {
		return nil, err
	}
	matches, err := e.store.SearchMessages(ctx, vec, k, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if e.logger != nil {
		e.logger.Debug("search message query", zap.Int("top_k", k), zap.Int("results", len(matches)))
	}
	return &models.MessageSearchResponse{Results: matches, Count: len(matches)}, nil
}

// queryVector prefers query text, embedded through the provider, over a supplied vector.
func (e *Engine) queryVector(ctx context.Context, text string, vec []float32) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return vec, nil
	}
	if e.embedder == nil {
		return nil, apperr.Wrap(apperr.ModelUnavailable, errNoEmbedder, "cannot embed query text")
	}
	out, err := e.embedder.Embed(ctx, text)
	if err != nil {
		if apperr.HasKind(err) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.ModelUnavailable, err, "failed to embed query")
	}
	return out, nil
}
