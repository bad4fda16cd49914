// Package status builds the health report shared by the HTTP API and the CLI.
package status

import (
	"context"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
)

// Collect pings the store and gathers collection and conversation counts.
// Disk usage is only reported for sqlite, where the database is local files.
func Collect(ctx context.Context, store storage.Storage, cfg *config.Config) (*models.Status, error) {
	if err := store.Ping(ctx); err != nil {
		return nil, err
	}
	colls, err := store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	conversations, err := store.CountConversations(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(colls))
	for i, c := range colls {
		names[i] = c.Name
	}
	st := &models.Status{
		Status:          "ok",
		Storage:         store.Driver(),
		Collections:     names,
		CollectionCount: len(colls),
		Conversations:   conversations,
		Config: &models.StatusConfig{
			EmbeddingProvider:   cfg.Embedding.Provider,
			EmbeddingDimensions: store.Dimensions(),
			ChunkSize:           cfg.Chunking.ChunkSize,
			ChunkOverlap:        cfg.Chunking.Overlap,
			DefaultTopK:         cfg.Search.DefaultTopK,
			MaxTopK:             cfg.Search.MaxTopK,
			EmbedMessages:       cfg.History.EmbedMessages,
		},
	}
	if store.Driver() == config.DriverSQLite {
		st.Config.DatabasePath = cfg.Storage.DatabasePath
		if n, err := storage.DiskUsageBytes(storage.SQLiteFiles(cfg.Storage.DatabasePath)...); err == nil {
			st.DiskUsageBytes = &n
		}
	}
	return st, nil
}
