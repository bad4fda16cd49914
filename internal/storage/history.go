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

const messageColumns = `id, conversation_id, sender, message, model_name, created_at`

// CountConversations returns the number of conversations.
func (s *SQLStore) CountConversations(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		return 0, s.classify(err, "count conversations")
	}
	return n, nil
}

// ListConversations returns a page of conversations, newest first.
func (s *SQLStore) ListConversations(ctx context.Context, limit, offset int, includeCounts bool) ([]*models.Conversation, error) {
	count := "NULL"
	if includeCounts {
		count = `(SELECT COUNT(*) FROM chat_messages m WHERE m.conversation_id = c.id)`
	}
	rows, err := s.db.QueryContext(ctx, s.bind(
		`SELECT c.id, c.created_at, c.title, `+count+` FROM conversations c
		 ORDER BY c.created_at DESC, c.id DESC LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, s.classify(err, "list conversations")
	}
	defer rows.Close()
	convs := []*models.Conversation{}
	for rows.Next() {
		var (
			c     models.Conversation
			title sql.NullString
			n     sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.CreatedAt, &title, &n); err != nil {
			return nil, s.classify(err, "scan conversation")
		}
		c.Title = stringPtr(title)
		if includeCounts {
			v := n.Int64
			c.MessageCount = &v
		}
		convs = append(convs, &c)
	}
	return convs, s.classify(rows.Err(), "list conversations")
}

// GetConversation returns one conversation.
func (s *SQLStore) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	return s.getConversation(ctx, s.db, id)
}

func (s *SQLStore) getConversation(ctx context.Context, q querier, id int64) (*models.Conversation, error) {
	var (
		c     models.Conversation
		title sql.NullString
	)
	err := q.QueryRowContext(ctx, s.bind(`SELECT id, created_at, title FROM conversations WHERE id = ?`), id).
		Scan(&c.ID, &c.CreatedAt, &title)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("conversation %d not found", id)
	}
	if err != nil {
		return nil, s.classify(err, "get conversation")
	}
	c.Title = stringPtr(title)
	return &c, nil
}

// UpdateConversationTitle sets a trimmed, non-blank title.
func (s *SQLStore) UpdateConversationTitle(ctx context.Context, id int64, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validationf("title is required")
	}
	res, err := s.db.ExecContext(ctx, s.bind(`UPDATE conversations SET title = ? WHERE id = ?`), title, id)
	if err != nil {
		return nil, s.classify(err, "update conversation title")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, apperr.NotFoundf("conversation %d not found", id)
	}
	return s.GetConversation(ctx, id)
}

// DeleteConversation removes a conversation and its messages in one transaction.
func (s *SQLStore) DeleteConversation(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		deleted, err := s.deleteConversationTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return apperr.NotFoundf("conversation %d not found", id)
		}
		return nil
	})
}

func (s *SQLStore) deleteConversationTx(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM chat_messages WHERE conversation_id = ?`), id); err != nil {
		return false, s.classify(err, "delete messages")
	}
	res, err := tx.ExecContext(ctx, s.bind(`DELETE FROM conversations WHERE id = ?`), id)
	if err != nil {
		return false, s.classify(err, "delete conversation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.classify(err, "delete conversation")
	}
	return n > 0, nil
}

// BulkDeleteConversations deletes the given conversations in one transaction.
// Duplicate ids are collapsed, keeping first-seen order.
func (s *SQLStore) BulkDeleteConversations(ctx context.Context, ids []int64) (*models.BulkDeleteResult, error) {
	if len(ids) == 0 {
		return nil, apperr.Validationf("conversation_ids must be a non-empty list")
	}
	result := &models.BulkDeleteResult{
		Requested: dedupeIDs(ids),
		Deleted:   []int64{},
		NotFound:  []int64{},
		Errors:    []string{},
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range result.Requested {
			deleted, err := s.deleteConversationTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if deleted {
				result.Deleted = append(result.Deleted, id)
			} else {
				result.NotFound = append(result.NotFound, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Debug("storage conversations deleted",
			zap.Int("requested", len(result.Requested)), zap.Int("deleted", len(result.Deleted)))
	}
	return result, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// AddMessage stores a message, creating its conversation first when none is given.
// Both writes happen in one transaction.
func (s *SQLStore) AddMessage(ctx context.Context, in *models.MessageInput) (*models.Message, *models.Conversation, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}
	if in.Embedding != nil {
		if err := vector.ValidateDimension(in.Embedding, s.dims); err != nil {
			return nil, nil, err
		}
	}
	now := time.Now().UTC()
	msg := &models.Message{
		Sender:    in.Sender,
		Message:   in.Message,
		ModelName: in.ModelName,
		CreatedAt: now,
		Embedding: in.Embedding,
	}
	var conv *models.Conversation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if id := in.TargetConversation(); id != 0 {
			if conv, err = s.getConversation(ctx, tx, id); err != nil {
				return err
			}
		} else {
			conv = &models.Conversation{CreatedAt: now, Title: in.NewTitle()}
			err = tx.QueryRowContext(ctx,
				s.bind(`INSERT INTO conversations (created_at, title) VALUES (?, ?) RETURNING id`),
				conv.CreatedAt, nullStringPtr(conv.Title),
			).Scan(&conv.ID)
			if err != nil {
				return s.classify(err, "create conversation")
			}
		}
		msg.ConversationID = conv.ID
		err = tx.QueryRowContext(ctx, s.bind(fmt.Sprintf(
			`INSERT INTO chat_messages (conversation_id, sender, message, model_name, created_at, embedding)
			 VALUES (?, ?, ?, ?, ?, %s) RETURNING id`, s.dialect.embeddingParam())),
			msg.ConversationID, msg.Sender, msg.Message, nullStringPtr(msg.ModelName), msg.CreatedAt,
			s.dialect.embeddingArg(msg.Embedding),
		).Scan(&msg.ID)
		return s.classify(err, "insert message")
	})
	if err != nil {
		return nil, nil, err
	}
	return msg, conv, nil
}

// CountMessages returns the number of messages in a conversation.
func (s *SQLStore) CountMessages(ctx context.Context, conversationID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		s.bind(`SELECT COUNT(*) FROM chat_messages WHERE conversation_id = ?`), conversationID).Scan(&n)
	if err != nil {
		return 0, s.classify(err, "count messages")
	}
	return n, nil
}

// ListMessages returns a page of a conversation's messages in chronological order.
// limit < 0 returns every message.
func (s *SQLStore) ListMessages(ctx context.Context, conversationID int64, limit, offset int, includeEmbeddings bool) ([]*models.Message, error) {
	embCol := "NULL"
	if includeEmbeddings {
		embCol = "embedding"
	}
	query := `SELECT ` + messageColumns + `, ` + embCol + ` FROM chat_messages
		WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`
	args := []interface{}{conversationID}
	if limit >= 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, s.classify(err, "list messages")
	}
	return s.scanMessages(rows)
}

// ContextMessages returns the latest limit messages of a conversation, oldest first.
// Unless includeSystem is set only user and ai messages are considered.
func (s *SQLStore) ContextMessages(ctx context.Context, conversationID int64, limit int, includeSystem bool) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + `, NULL FROM chat_messages WHERE conversation_id = ?`
	args := []interface{}{conversationID}
	if !includeSystem {
		query += ` AND sender IN (?, ?)`
		args = append(args, "user", "ai")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, s.classify(err, "load context messages")
	}
	msgs, err := s.scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLStore) scanMessages(rows *sql.Rows) ([]*models.Message, error) {
	defer rows.Close()
	msgs := []*models.Message{}
	for rows.Next() {
		var (
			m     models.Message
			model sql.NullString
			raw   []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Message, &model, &m.CreatedAt, &raw); err != nil {
			return nil, s.classify(err, "scan message")
		}
		m.ModelName = stringPtr(model)
		emb, err := s.dialect.decodeEmbedding(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding of message %d: %w", m.ID, err)
		}
		m.Embedding = emb
		msgs = append(msgs, &m)
	}
	return msgs, s.classify(rows.Err(), "read messages")
}

// SearchMessages returns the k messages nearest to query, optionally restricted
// to one conversation. The restriction is applied before the limit.
func (s *SQLStore) SearchMessages(ctx context.Context, query []float32, k int, conversationID *int64) ([]*models.MessageMatch, error) {
	if err := vector.ValidateDimension(query, s.dims); err != nil {
		return nil, err
	}
	q := `SELECT ` + messageColumns + `, ` + s.dialect.distanceExpr("embedding") + ` AS distance
		FROM chat_messages WHERE embedding IS NOT NULL`
	args := []interface{}{s.dialect.embeddingArg(query)}
	if conversationID != nil {
		q += ` AND conversation_id = ?`
		args = append(args, *conversationID)
	}
	q += ` ORDER BY distance ASC, id ASC LIMIT ?`
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, s.bind(q), args...)
	if err != nil {
		return nil, s.classify(err, "search messages")
	}
	defer rows.Close()
	matches := []*models.MessageMatch{}
	for rows.Next() {
		var (
			m        models.MessageMatch
			model    sql.NullString
			distance float64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Message, &model, &m.CreatedAt, &distance); err != nil {
			return nil, s.classify(err, "scan message match")
		}
		m.ModelName = stringPtr(model)
		m.Similarity = vector.SimilarityFromDistance(distance)
		matches = append(matches, &m)
	}
	return matches, s.classify(rows.Err(), "search messages")
}
