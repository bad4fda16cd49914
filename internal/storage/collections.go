package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/vector"
)

// CreateCollection registers a collection and creates its table in one transaction.
func (s *SQLStore) CreateCollection(ctx context.Context, name string) (*models.Collection, error) {
	name, err := NormalizeCollectionName(name)
	if err != nil {
		return nil, err
	}
	coll := &models.Collection{Name: name, Dimensions: s.dims, CreatedAt: time.Now().UTC()}
	table := tableName(name)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, s.bind(`SELECT COUNT(*) FROM collections WHERE name = ?`), name).Scan(&n); err != nil {
			return s.classify(err, "check collection")
		}
		if n > 0 {
			return apperr.AlreadyExistsf("collection %q already exists", name)
		}
		for _, stmt := range s.dialect.createCollectionTable(quoteIdent(table), s.dims) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return s.classify(err, "create collection table")
			}
		}
		_, err := tx.ExecContext(ctx,
			s.bind(`INSERT INTO collections (name, table_name, dimensions, created_at) VALUES (?, ?, ?, ?)`),
			name, table, s.dims, coll.CreatedAt,
		)
		return s.classify(err, "register collection")
	})
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Debug("storage collection created", zap.String("name", name), zap.String("table", table))
	}
	return coll, nil
}

// ListCollections returns every registered collection ordered by name.
func (s *SQLStore) ListCollections(ctx context.Context) ([]*models.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, dimensions, created_at FROM collections ORDER BY name`)
	if err != nil {
		return nil, s.classify(err, "list collections")
	}
	defer rows.Close()
	colls := []*models.Collection{}
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(&c.Name, &c.Dimensions, &c.CreatedAt); err != nil {
			return nil, s.classify(err, "scan collection")
		}
		colls = append(colls, &c)
	}
	return colls, s.classify(rows.Err(), "list collections")
}

// GetCollection returns the catalog entry for name with its document count.
func (s *SQLStore) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	coll, err := s.lookupCollection(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	n, err := s.countRows(ctx, coll.Name)
	if err != nil {
		return nil, err
	}
	coll.DocumentCount = n
	return coll, nil
}

// DropCollection removes the catalog entry and the table in one transaction.
func (s *SQLStore) DropCollection(ctx context.Context, name string) error {
	name, err := NormalizeCollectionName(name)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		coll, err := s.lookupCollection(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM collections WHERE name = ?`), coll.Name); err != nil {
			return s.classify(err, "unregister collection")
		}
		_, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(tableName(coll.Name)))
		return s.classify(err, "drop collection table")
	})
	if err == nil && s.logger != nil {
		s.logger.Debug("storage collection dropped", zap.String("name", name))
	}
	return err
}

// lookupCollection normalizes name and reads its catalog entry.
func (s *SQLStore) lookupCollection(ctx context.Context, q querier, name string) (*models.Collection, error) {
	name, err := NormalizeCollectionName(name)
	if err != nil {
		return nil, err
	}
	var c models.Collection
	err = q.QueryRowContext(ctx,
		s.bind(`SELECT name, dimensions, created_at FROM collections WHERE name = ?`), name,
	).Scan(&c.Name, &c.Dimensions, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("collection %q not found", name)
	}
	if err != nil {
		return nil, s.classify(err, "look up collection")
	}
	return &c, nil
}

func (s *SQLStore) countRows(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdent(tableName(collection))).Scan(&n)
	if err != nil {
		return 0, s.classify(err, "count documents")
	}
	return n, nil
}

// InsertDocuments stores docs in one transaction and returns their new ids in order.
// Each document needs non-blank content and an embedding of the collection's dimension.
func (s *SQLStore) InsertDocuments(ctx context.Context, collection string, docs []*models.Document) ([]int64, error) {
	if len(docs) == 0 {
		return nil, apperr.Validationf("no documents to insert")
	}
	coll, err := s.lookupCollection(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	for i, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			return nil, apperr.Validationf("document %d: content is required", i)
		}
		if err := vector.ValidateDimension(doc.Embedding, coll.Dimensions); err != nil {
			return nil, err
		}
	}
	query := s.bind(fmt.Sprintf(
		`INSERT INTO %s (content, embedding, source, created_at) VALUES (?, %s, ?, ?) RETURNING id`,
		quoteIdent(tableName(coll.Name)), s.dialect.embeddingParam(),
	))
	ids := make([]int64, len(docs))
	now := time.Now().UTC()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return s.classify(err, "prepare insert")
		}
		defer stmt.Close()
		for i, doc := range docs {
			if err := stmt.QueryRowContext(ctx,
				doc.Content, s.dialect.embeddingArg(doc.Embedding), nullString(doc.Source), now,
			).Scan(&ids[i]); err != nil {
				return s.classify(err, "insert document")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, doc := range docs {
		doc.ID = ids[i]
		doc.CreatedAt = now
	}
	return ids, nil
}

// UpdateDocument replaces the content and embedding of a document, keeping its id.
func (s *SQLStore) UpdateDocument(ctx context.Context, collection string, id int64, content string, embedding []float32) error {
	if strings.TrimSpace(content) == "" {
		return apperr.Validationf("content is required")
	}
	coll, err := s.lookupCollection(ctx, s.db, collection)
	if err != nil {
		return err
	}
	if err := vector.ValidateDimension(embedding, coll.Dimensions); err != nil {
		return err
	}
	query := s.bind(fmt.Sprintf(
		`UPDATE %s SET content = ?, embedding = %s WHERE id = ? RETURNING id`,
		quoteIdent(tableName(coll.Name)), s.dialect.embeddingParam(),
	))
	var got int64
	err = s.db.QueryRowContext(ctx, query, content, s.dialect.embeddingArg(embedding), id).Scan(&got)
	if err == sql.ErrNoRows {
		return apperr.NotFoundf("document %d not found in collection %q", id, coll.Name)
	}
	return s.classify(err, "update document")
}

// DeleteDocument removes one document.
func (s *SQLStore) DeleteDocument(ctx context.Context, collection string, id int64) error {
	coll, err := s.lookupCollection(ctx, s.db, collection)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		s.bind(`DELETE FROM `+quoteIdent(tableName(coll.Name))+` WHERE id = ?`), id)
	if err != nil {
		return s.classify(err, "delete document")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFoundf("document %d not found in collection %q", id, coll.Name)
	}
	return nil
}

// GetDocument returns a document including its embedding.
func (s *SQLStore) GetDocument(ctx context.Context, collection string, id int64) (*models.Document, error) {
	coll, err := s.lookupCollection(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	var (
		doc    models.Document
		raw    []byte
		source sql.NullString
	)
	err = s.db.QueryRowContext(ctx,
		s.bind(`SELECT id, content, embedding, source, created_at FROM `+quoteIdent(tableName(coll.Name))+` WHERE id = ?`), id,
	).Scan(&doc.ID, &doc.Content, &raw, &source, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("document %d not found in collection %q", id, coll.Name)
	}
	if err != nil {
		return nil, s.classify(err, "get document")
	}
	doc.Source = source.String
	if doc.Embedding, err = s.dialect.decodeEmbedding(raw); err != nil {
		return nil, fmt.Errorf("failed to decode embedding of document %d: %w", id, err)
	}
	return &doc, nil
}

// ListDocuments returns a page of documents, newest id first, without embeddings.
func (s *SQLStore) ListDocuments(ctx context.Context, collection string, limit, offset int) ([]*models.Document, error) {
	coll, err := s.lookupCollection(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT id, content, source, created_at FROM `+quoteIdent(tableName(coll.Name))+` ORDER BY id DESC LIMIT ? OFFSET ?`),
		limit, offset,
	)
	if err != nil {
		return nil, s.classify(err, "list documents")
	}
	defer rows.Close()
	docs := []*models.Document{}
	for rows.Next() {
		var (
			doc    models.Document
			source sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &source, &doc.CreatedAt); err != nil {
			return nil, s.classify(err, "scan document")
		}
		doc.Source = source.String
		docs = append(docs, &doc)
	}
	return docs, s.classify(rows.Err(), "list documents")
}

// CountDocuments returns the number of documents in a collection.
func (s *SQLStore) CountDocuments(ctx context.Context, collection string) (int64, error) {
	coll, err := s.lookupCollection(ctx, s.db, collection)
	if err != nil {
		return 0, err
	}
	return s.countRows(ctx, coll.Name)
}

// SearchDocuments returns the k documents nearest to query by cosine distance,
// breaking ties by ascending id. Rows without an embedding are skipped.
func (s *SQLStore) SearchDocuments(ctx context.Context, collection string, query []float32, k int) ([]*models.DocumentMatch, error) {
	coll, err := s.lookupCollection(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	if err := vector.ValidateDimension(query, coll.Dimensions); err != nil {
		return nil, err
	}
	q := s.bind(fmt.Sprintf(
		`SELECT id, content, source, %s AS distance FROM %s WHERE embedding IS NOT NULL ORDER BY distance ASC, id ASC LIMIT ?`,
		s.dialect.distanceExpr("embedding"), quoteIdent(tableName(coll.Name)),
	))
	rows, err := s.db.QueryContext(ctx, q, s.dialect.embeddingArg(query), k)
	if err != nil {
		return nil, s.classify(err, "search documents")
	}
	defer rows.Close()
	matches := []*models.DocumentMatch{}
	for rows.Next() {
		var (
			m        models.DocumentMatch
			source   sql.NullString
			distance float64
		)
		if err := rows.Scan(&m.ID, &m.Content, &source, &distance); err != nil {
			return nil, s.classify(err, "scan match")
		}
		m.Source = source.String
		m.Similarity = vector.SimilarityFromDistance(distance)
		matches = append(matches, &m)
	}
	return matches, s.classify(rows.Err(), "search documents")
}
