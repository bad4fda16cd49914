package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/vector"
)

const benchDims = 384

func benchVector(i int) []float32 {
	v := make([]float32, benchDims)
	v[0] = float32(i) / 1000
	v[1+i%(benchDims-1)] = 1
	return v
}

func BenchmarkSQLiteSearchDocuments(b *testing.B) {
	store, err := NewSQLiteStorage(filepath.Join(b.TempDir(), "bench.db"), benchDims)
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	if _, err := store.CreateCollection(ctx, "bench"); err != nil {
		b.Fatal(err)
	}
	docs := make([]*models.Document, 1000)
	for i := range docs {
		docs[i] = &models.Document{Content: fmt.Sprintf("document %d", i), Embedding: benchVector(i)}
	}
	if _, err := store.InsertDocuments(ctx, "bench", docs); err != nil {
		b.Fatal(err)
	}
	query := benchVector(500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.SearchDocuments(ctx, "bench", query, 10); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCosineDistanceBlob(b *testing.B) {
	x := vector.EncodeEmbedding(benchVector(1))
	y := vector.EncodeEmbedding(benchVector(2))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cosineDistanceBlob(x, y)
	}
}
