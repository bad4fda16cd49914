package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/apperr"
)

// SQLStore implements Storage over database/sql for any supported dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	dims    int
	logger  *zap.Logger // optional; when set, logs debug events
}

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithLogger sets a logger for debug output (collections created, transactions rolled back, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLStore) { s.logger = l }
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func open(db *sql.DB, d dialect, dims int, opts ...Option) (*SQLStore, error) {
	if dims <= 0 {
		_ = db.Close()
		return nil, apperr.Validationf("embedding dimensions must be positive, got %d", dims)
	}
	s := &SQLStore{db: db, dialect: d, dims: dims}
	for _, opt := range opts {
		opt(s)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.StorageUnavailable, err, "failed to connect to "+d.name())
	}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema(s.dims) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return s.classify(err, "initialize schema")
		}
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, err, "database unreachable")
	}
	return nil
}

// Dimensions returns the configured embedding dimension.
func (s *SQLStore) Dimensions() int { return s.dims }

// Driver returns the dialect name.
func (s *SQLStore) Driver() string { return s.dialect.name() }

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) bind(query string) string {
	return s.dialect.rebind(query)
}

// withTx runs fn in a transaction. The transaction is always rolled back unless
// fn succeeds and the commit does; unclassified failures become TransactionFailure.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.classify(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		if s.logger != nil {
			s.logger.Debug("storage transaction rolled back", zap.Error(err))
		}
		if apperr.HasKind(err) {
			return err
		}
		return apperr.Wrap(apperr.TransactionFailure, err, "transaction rolled back")
	}
	if err := tx.Commit(); err != nil {
		if classified := s.classify(err, "commit transaction"); apperr.HasKind(classified) {
			return classified
		}
		return apperr.Wrap(apperr.TransactionFailure, err, "failed to commit transaction")
	}
	return nil
}

// classify attaches a kind to driver errors it recognizes. Anything else is
// wrapped with the failed action and left unclassified.
func (s *SQLStore) classify(err error, action string) error {
	if err == nil || apperr.HasKind(err) {
		return err
	}
	if kind, ok := s.dialect.classify(err); ok {
		return apperr.Wrap(kind, err, "failed to "+action)
	}
	if isConnError(err) {
		return apperr.Wrap(apperr.StorageUnavailable, err, "failed to "+action)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func isConnError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
