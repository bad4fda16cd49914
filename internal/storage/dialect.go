package storage

import (
	"github.com/hyperjump/kioku/internal/apperr"
)

// dialect captures the SQL differences between backends. Queries are written
// with ? placeholders and rebound per dialect.
type dialect interface {
	name() string
	rebind(query string) string
	// schema returns the statements creating the catalog and history tables.
	schema(dims int) []string
	// createCollectionTable returns the DDL for one collection table (already quoted).
	createCollectionTable(table string, dims int) []string
	// embeddingParam is the placeholder used when binding an embedding.
	embeddingParam() string
	// embeddingArg converts a vector to a driver value. A nil vector binds NULL.
	embeddingArg(vec []float32) interface{}
	// distanceExpr is a cosine distance between column and one bound embedding.
	distanceExpr(column string) string
	decodeEmbedding(raw []byte) ([]float32, error)
	// classify maps a driver error to a kind when it recognizes it.
	classify(err error) (apperr.Kind, bool)
}
