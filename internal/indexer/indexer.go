package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
)

// Indexer turns files and text into embedded documents inside collections.
type Indexer struct {
	store     storage.CollectionStore
	embedder  embedding.Embedder
	extractor *extract.Extractor
	chunker   *Chunker
	logger    *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file ingested, document deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer. extractor may be nil, in which case a default one is used.
// cfg supplies the chunk window used when a caller passes a non-positive size.
func NewIndexer(
	store storage.CollectionStore,
	embedder embedding.Embedder,
	extractor *extract.Extractor,
	cfg *config.ChunkingConfig,
	opts ...IndexerOption,
) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		chunker:   NewChunker(cfg.ChunkSize, cfg.Overlap),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Chunker returns the indexer's default chunker.
func (idx *Indexer) Chunker() *Chunker { return idx.chunker }

// IngestFile decodes content by the extension of filename, chunks it, embeds
// every chunk and inserts them in one transaction. Nothing is written unless
// every step succeeds. A non-positive chunkSize selects the configured size; overlap
// is kept and clamped against it.
func (idx *Indexer) IngestFile(ctx context.Context, collection, filename string, content []byte, chunkSize, overlap int) (*models.IngestResult, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, apperr.Validationf("file name is required")
	}
	coll, err := idx.store.GetCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !extract.Supported(filename) {
		return nil, fmt.Errorf("%w: %s (supported: %s)", extract.ErrUnsupportedFileType,
			filename, strings.Join(extract.SupportedExtensions(), ", "))
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer ingesting file",
			zap.String("collection", coll.Name), zap.String("file", filename), zap.Int("bytes", len(content)))
	}
	text, err := idx.extractor.ExtractFile(filename, content)
	if err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = idx.chunker.Size()
	}
	chunks, err := Chunk(text, chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	embeddings, err := idx.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	docs := make([]*models.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = &models.Document{Content: ch, Source: filename, Embedding: embeddings[i]}
	}
	ids, err := idx.store.InsertDocuments(ctx, coll.Name, docs)
	if err != nil {
		return nil, err
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer file ingested",
			zap.String("collection", coll.Name), zap.String("file", filename), zap.Int("chunks", len(ids)))
	}
	return &models.IngestResult{
		Collection: coll.Name,
		File:       filename,
		Chunks:     len(chunks),
		Inserted:   len(ids),
		IDs:        ids,
	}, nil
}

// IngestPath reads a file from disk and ingests it.
func (idx *Indexer) IngestPath(ctx context.Context, collection, path string, chunkSize, overlap int) (*models.IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Validationf("file not found: %s", path)
		}
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, apperr.Validationf("not a regular file: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return idx.IngestFile(ctx, collection, filepath.Base(path), content, chunkSize, overlap)
}

// IngestDirectory walks dir and ingests every regular file with a supported
// extension. It stops at the first failure and returns the results so far.
func (idx *Indexer) IngestDirectory(ctx context.Context, collection, dir string, chunkSize, overlap int) ([]*models.IngestResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, apperr.Validationf("not a directory: %s", dir)
	}
	var results []*models.IngestResult
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !extract.Supported(path) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := idx.IngestPath(ctx, collection, path, chunkSize, overlap)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, res)
		return nil
	})
	return results, err
}

// AddDocument embeds content and stores it as a single document.
func (idx *Indexer) AddDocument(ctx context.Context, collection, content string) (int64, error) {
	if strings.TrimSpace(collection) == "" || strings.TrimSpace(content) == "" {
		return 0, apperr.Validationf("collection_name and content are required")
	}
	coll, err := idx.store.GetCollection(ctx, collection)
	if err != nil {
		return 0, err
	}
	embeddings, err := idx.embed(ctx, []string{content})
	if err != nil {
		return 0, err
	}
	ids, err := idx.store.InsertDocuments(ctx, coll.Name, []*models.Document{{Content: content, Embedding: embeddings[0]}})
	if err != nil {
		return 0, err
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer document added", zap.String("collection", coll.Name), zap.Int64("id", ids[0]))
	}
	return ids[0], nil
}

// UpdateDocument re-embeds content and replaces the document in place.
func (idx *Indexer) UpdateDocument(ctx context.Context, collection string, id int64, content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.Validationf("content is required")
	}
	if _, err := idx.store.GetCollection(ctx, collection); err != nil {
		return err
	}
	embeddings, err := idx.embed(ctx, []string{content})
	if err != nil {
		return err
	}
	if err := idx.store.UpdateDocument(ctx, collection, id, content, embeddings[0]); err != nil {
		return err
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer document updated", zap.String("collection", collection), zap.Int64("id", id))
	}
	return nil
}

// DeleteDocument removes a document from a collection.
func (idx *Indexer) DeleteDocument(ctx context.Context, collection string, id int64) error {
	if idx.logger != nil {
		idx.logger.Debug("indexer deleting document", zap.String("collection", collection), zap.Int64("id", id))
	}
	return idx.store.DeleteDocument(ctx, collection, id)
}

// embed runs a batch through the embedder, classifying provider failures.
func (idx *Indexer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if apperr.HasKind(err) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.ModelUnavailable, err, "failed to generate embeddings")
	}
	if len(embeddings) != len(texts) {
		return nil, apperr.Wrap(apperr.ModelUnavailable,
			fmt.Errorf("got %d embeddings for %d texts", len(embeddings), len(texts)), "failed to generate embeddings")
	}
	return embeddings, nil
}
