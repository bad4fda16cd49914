package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/hyperjump/kioku/internal/apperr"
)

// PostgreSQL error codes mapped to kinds.
const (
	pqUniqueViolation = "23505"
	pqDuplicateTable  = "42P07"
	pqUndefinedTable  = "42P01"
	pqConnectionClass = "08"
	pqShutdownClass   = "57"
)

// NewPostgresStorage connects to PostgreSQL with the pgvector extension and initializes the schema.
func NewPostgresStorage(dsn string, dims int, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, err, "failed to open database")
	}
	return open(db, postgresDialect{}, dims, opts...)
}

type postgresDialect struct{}

func (postgresDialect) name() string { return "postgres" }

func (postgresDialect) rebind(query string) string { return rebindDollar(query) }

func (postgresDialect) schema(dims int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			table_name TEXT NOT NULL UNIQUE,
			dimensions INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			title TEXT
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chat_messages (
			id BIGSERIAL PRIMARY KEY,
			conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender TEXT NOT NULL,
			message TEXT NOT NULL,
			model_name TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			embedding vector(%d)
		)`, dims),
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation ON chat_messages(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at)`,
	}
}

func (postgresDialect) createCollectionTable(table string, dims int) []string {
	return []string{fmt.Sprintf(`CREATE TABLE %s (
		id BIGSERIAL PRIMARY KEY,
		content TEXT NOT NULL,
		embedding vector(%d),
		source TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`, table, dims)}
}

func (postgresDialect) embeddingParam() string { return "?::vector" }

func (postgresDialect) embeddingArg(vec []float32) interface{} {
	if vec == nil {
		return nil
	}
	return pgvector.NewVector(vec)
}

func (postgresDialect) distanceExpr(column string) string {
	return column + " <=> ?::vector"
}

func (postgresDialect) decodeEmbedding(raw []byte) ([]float32, error) {
	if raw == nil {
		return nil, nil
	}
	var v pgvector.Vector
	if err := v.Scan(raw); err != nil {
		return nil, fmt.Errorf("failed to parse vector: %w", err)
	}
	return v.Slice(), nil
}

func (postgresDialect) classify(err error) (apperr.Kind, bool) {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return 0, false
	}
	switch {
	case pe.Code == pqUniqueViolation, pe.Code == pqDuplicateTable:
		return apperr.AlreadyExists, true
	case pe.Code == pqUndefinedTable:
		return apperr.NotFound, true
	case pe.Code.Class() == pqConnectionClass, pe.Code.Class() == pqShutdownClass:
		return apperr.StorageUnavailable, true
	}
	return 0, false
}
