package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kioku/internal/apperr"
)

func TestPostgresDialect_SQL(t *testing.T) {
	d := postgresDialect{}
	ddl := d.createCollectionTable(quoteIdent("rag_docs"), 384)
	if len(ddl) != 1 || !strings.Contains(ddl[0], "embedding vector(384)") || !strings.Contains(ddl[0], "BIGSERIAL") {
		t.Errorf("collection DDL = %v", ddl)
	}
	schema := strings.Join(d.schema(384), "\n")
	if !strings.Contains(schema, "CREATE EXTENSION IF NOT EXISTS vector") {
		t.Error("schema must enable pgvector")
	}
	q := d.rebind(`SELECT id, ` + d.distanceExpr("embedding") + ` AS distance FROM t WHERE conversation_id = ? LIMIT ?`)
	if q != `SELECT id, embedding <=> $1::vector AS distance FROM t WHERE conversation_id = $2 LIMIT $3` {
		t.Errorf("rebound search = %s", q)
	}
	if d.embeddingArg(nil) != nil {
		t.Error("nil embedding must bind NULL")
	}
}

func TestPostgresDialect_DecodeEmbedding(t *testing.T) {
	d := postgresDialect{}
	v, err := d.decodeEmbedding([]byte("[1,2.5,-3]"))
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 || v[1] != 2.5 || v[2] != -3 {
		t.Errorf("decoded = %v", v)
	}
	if v, err := d.decodeEmbedding(nil); v != nil || err != nil {
		t.Errorf("NULL should decode to nil, got %v, %v", v, err)
	}
}

func TestDialectClassify(t *testing.T) {
	pg := postgresDialect{}
	lite := sqliteDialect{}
	tests := []struct {
		name string
		d    dialect
		err  error
		want apperr.Kind
		ok   bool
	}{
		{"pg unique", pg, &pq.Error{Code: "23505"}, apperr.AlreadyExists, true},
		{"pg duplicate table", pg, &pq.Error{Code: "42P07"}, apperr.AlreadyExists, true},
		{"pg undefined table", pg, fmt.Errorf("wrapped: %w", &pq.Error{Code: "42P01"}), apperr.NotFound, true},
		{"pg connection failure", pg, &pq.Error{Code: "08006"}, apperr.StorageUnavailable, true},
		{"pg syntax", pg, &pq.Error{Code: "42601"}, 0, false},
		{"sqlite cantopen", lite, sqlite3.Error{Code: sqlite3.ErrCantOpen}, apperr.StorageUnavailable, true},
		{"sqlite unique", lite, sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, apperr.AlreadyExists, true},
		{"plain error", lite, errors.New("boom"), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := tt.d.classify(tt.err)
			if ok != tt.ok || (ok && kind != tt.want) {
				t.Errorf("classify = %v, %v; want %v, %v", kind, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestStoreClassify(t *testing.T) {
	s := &SQLStore{dialect: sqliteDialect{}}
	if err := s.classify(driver.ErrBadConn, "query"); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("bad conn: %v", err)
	}
	if err := s.classify(&net.OpError{Op: "dial", Err: errors.New("refused")}, "query"); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("net error: %v", err)
	}
	plain := s.classify(errors.New("boom"), "query")
	if apperr.HasKind(plain) || plain.Error() != "failed to query: boom" {
		t.Errorf("plain error = %v", plain)
	}
	nf := apperr.NotFoundf("x")
	if s.classify(nf, "query") != error(nf) {
		t.Error("classified errors must pass through unchanged")
	}
	if s.classify(nil, "query") != nil {
		t.Error("nil stays nil")
	}
	if apperr.KindOf(s.classify(context.DeadlineExceeded, "query")) != apperr.StorageUnavailable {
		t.Error("deadline should surface as storage unavailable")
	}
}
