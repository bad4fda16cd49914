package embedding

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/kioku/internal/apperr"
	"go.uber.org/zap"
)

// Loader constructs the underlying embedder. It is called at most once.
type Loader func() (Embedder, error)

// LazyEmbedder defers model loading until first use and reports load or
// inference failures as ModelUnavailable. A failed load is not retried.
type LazyEmbedder struct {
	load       Loader
	dimensions int
	logger     *zap.Logger

	once   sync.Once
	inner  Embedder
	err    error
	loaded atomic.Bool
}

// LazyOption configures a LazyEmbedder.
type LazyOption func(*LazyEmbedder)

// WithLogger sets a logger for load events.
func WithLogger(l *zap.Logger) LazyOption {
	return func(e *LazyEmbedder) { e.logger = l }
}

// NewLazyEmbedder returns an embedder that calls load on first use.
// dimensions is the configured vector size; loaded models must match it.
func NewLazyEmbedder(load Loader, dimensions int, opts ...LazyOption) *LazyEmbedder {
	e := &LazyEmbedder{load: load, dimensions: dimensions}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load forces model initialization. It is safe to call concurrently and repeatedly.
func (e *LazyEmbedder) Load() error {
	e.once.Do(func() {
		inner, err := e.load()
		if err != nil {
			e.err = apperr.Wrap(apperr.ModelUnavailable, err, "embedding model failed to load")
			if e.logger != nil {
				e.logger.Error("embedding model load failed", zap.Error(err))
			}
			return
		}
		if d := inner.Dimensions(); d != e.dimensions {
			_ = inner.Close()
			e.err = apperr.Wrap(apperr.ModelUnavailable,
				fmt.Errorf("model dimension %d does not match configured %d", d, e.dimensions),
				"embedding model failed to load")
			return
		}
		e.inner = inner
		e.loaded.Store(true)
		if e.logger != nil {
			e.logger.Info("embedding model loaded", zap.Int("dimensions", e.dimensions))
		}
	})
	return e.err
}

// Embed loads the model if needed and embeds text.
func (e *LazyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.Load(); err != nil {
		return nil, err
	}
	emb, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, modelErr(err)
	}
	if err := checkDimensions(emb, e.dimensions); err != nil {
		return nil, err
	}
	return emb, nil
}

// EmbedBatch loads the model if needed and embeds every text.
func (e *LazyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.Load(); err != nil {
		return nil, err
	}
	embs, err := e.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, modelErr(err)
	}
	for _, emb := range embs {
		if err := checkDimensions(emb, e.dimensions); err != nil {
			return nil, err
		}
	}
	return embs, nil
}

// Dimensions returns the configured dimension without loading the model.
func (e *LazyEmbedder) Dimensions() int {
	return e.dimensions
}

// Loaded reports whether the model has been loaded successfully.
func (e *LazyEmbedder) Loaded() bool {
	return e.loaded.Load()
}

// Close releases the underlying model if it was loaded.
func (e *LazyEmbedder) Close() error {
	if e.loaded.Load() {
		return e.inner.Close()
	}
	return nil
}

func modelErr(err error) error {
	if apperr.HasKind(err) {
		return err
	}
	return apperr.Wrap(apperr.ModelUnavailable, err, "embedding failed")
}
