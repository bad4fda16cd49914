package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/vector"
)

// sqliteDriverName is go-sqlite3 with vec_cosine_distance registered on every connection.
const sqliteDriverName = "sqlite3_kioku"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("vec_cosine_distance", cosineDistanceBlob, true)
		},
	})
}

// cosineDistanceBlob is the SQL function over two little-endian float32 BLOBs.
func cosineDistanceBlob(a, b []byte) (float64, error) {
	va, err := vector.DecodeEmbedding(a)
	if err != nil {
		return 0, err
	}
	vb, err := vector.DecodeEmbedding(b)
	if err != nil {
		return 0, err
	}
	return vector.CosineDistance(va, vb)
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string, dims int, opts ...Option) (*SQLStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperr.Wrap(apperr.StorageUnavailable, err, "failed to create database directory")
		}
	}
	db, err := sql.Open(sqliteDriverName, sqliteDSN(dbPath))
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, err, "failed to open database")
	}
	return open(db, sqliteDialect{}, dims, opts...)
}

func sqliteDSN(path string) string {
	q := url.Values{}
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	return "file:" + path + "?" + q.Encode()
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) schema(int) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			table_name TEXT NOT NULL UNIQUE,
			dimensions INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TIMESTAMP NOT NULL,
			title TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender TEXT NOT NULL,
			message TEXT NOT NULL,
			model_name TEXT,
			created_at TIMESTAMP NOT NULL,
			embedding BLOB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation ON chat_messages(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at)`,
	}
}

func (sqliteDialect) createCollectionTable(table string, _ int) []string {
	return []string{fmt.Sprintf(`CREATE TABLE %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		embedding BLOB,
		source TEXT,
		created_at TIMESTAMP NOT NULL
	)`, table)}
}

func (sqliteDialect) embeddingParam() string { return "?" }

func (sqliteDialect) embeddingArg(vec []float32) interface{} {
	if vec == nil {
		return nil
	}
	return vector.EncodeEmbedding(vec)
}

func (sqliteDialect) distanceExpr(column string) string {
	return "vec_cosine_distance(" + column + ", ?)"
}

func (sqliteDialect) decodeEmbedding(raw []byte) ([]float32, error) {
	return vector.DecodeEmbedding(raw)
}

func (sqliteDialect) classify(err error) (apperr.Kind, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return 0, false
	}
	switch se.Code {
	case sqlite3.ErrCantOpen, sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr:
		return apperr.StorageUnavailable, true
	case sqlite3.ErrConstraint:
		if se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return apperr.AlreadyExists, true
		}
	case sqlite3.ErrError:
		msg := se.Error()
		switch {
		case strings.Contains(msg, "no such table"):
			return apperr.NotFound, true
		case strings.Contains(msg, "already exists"):
			return apperr.AlreadyExists, true
		}
	}
	return 0, false
}
