// Package history serves chat history: conversations, messages, context windows and exports.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
)

// Service wraps a HistoryStore with pagination, context formatting and optional
// message embedding.
type Service struct {
	store    storage.HistoryStore
	embedder embedding.Embedder
	config   *config.HistoryConfig
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEmbedder sets the provider used to embed messages that arrive without a
// vector when history.embed_messages is enabled.
func WithEmbedder(e embedding.Embedder) Option {
	return func(s *Service) { s.embedder = e }
}

// NewService creates a history service.
func NewService(store storage.HistoryStore, cfg *config.HistoryConfig, opts ...Option) *Service {
	s := &Service{store: store, config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pagination parses page and page_size query values with the configured bounds.
func (s *Service) Pagination(page, pageSize string) models.Pagination {
	return models.ParsePagination(page, pageSize, s.config.DefaultPageSize, s.config.MaxPageSize)
}

// ListConversations returns one page of conversations, newest first.
func (s *Service) ListConversations(ctx context.Context, p models.Pagination, includeCounts bool) (*models.ConversationPage, error) {
	total, err := s.store.CountConversations(ctx)
	if err != nil {
		return nil, err
	}
	convs, err := s.store.ListConversations(ctx, p.PageSize, p.Offset(), includeCounts)
	if err != nil {
		return nil, err
	}
	return &models.ConversationPage{PageInfo: p.Info(total), Conversations: convs}, nil
}

// ListMessages returns one page of a conversation's messages, oldest first.
func (s *Service) ListMessages(ctx context.Context, id int64, p models.Pagination, includeEmbeddings bool) (*models.MessagePage, error) {
	if _, err := s.store.GetConversation(ctx, id); err != nil {
		return nil, err
	}
	total, err := s.store.CountMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, id, p.PageSize, p.Offset(), includeEmbeddings)
	if err != nil {
		return nil, err
	}
	return &models.MessagePage{ConversationID: id, PageInfo: p.Info(total), Messages: msgs}, nil
}

// Export returns a conversation with all of its messages.
func (s *Service) Export(ctx context.Context, id int64) (*models.ConversationExport, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, id, -1, 0, false)
	if err != nil {
		return nil, err
	}
	return &models.ConversationExport{
		Conversation: conv,
		Messages:     msgs,
		ExportedAt:   time.Now().UTC(),
	}, nil
}

// UpdateTitle renames a conversation.
func (s *Service) UpdateTitle(ctx context.Context, id int64, in *models.TitleUpdate) (*models.Conversation, error) {
	if in == nil || in.Title == nil {
		return nil, apperr.Validationf("title is required")
	}
	return s.store.UpdateConversationTitle(ctx, id, *in.Title)
}

// Delete removes a conversation and its messages.
func (s *Service) Delete(ctx context.Context, id int64) (*models.ConversationDeleted, error) {
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Debug("history conversation deleted", zap.Int64("conversation_id", id))
	}
	return &models.ConversationDeleted{Deleted: true, ConversationID: id}, nil
}

// BulkDelete removes several conversations in one transaction.
func (s *Service) BulkDelete(ctx context.Context, in *models.BulkDeleteInput) (*models.BulkDeleteResult, error) {
	if in == nil || len(in.ConversationIDs) == 0 {
		return nil, apperr.Validationf("conversation_ids must be a non-empty list")
	}
	return s.store.BulkDeleteConversations(ctx, in.ConversationIDs)
}

// AddMessage stores a message, creating a conversation when none is referenced.
func (s *Service) AddMessage(ctx context.Context, in *models.MessageInput) (*models.MessageCreated, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Embedding == nil && s.config.EmbedMessages && s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, in.Message)
		if err != nil {
			if !apperr.HasKind(err) {
				err = apperr.Wrap(apperr.ModelUnavailable, err, "failed to embed message")
			}
			return nil, err
		}
		in.Embedding = vec
	}
	msg, conv, err := s.store.AddMessage(ctx, in)
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Debug("history message added",
			zap.Int64("id", msg.ID), zap.Int64("conversation_id", conv.ID), zap.Bool("embedded", msg.Embedding != nil))
	}
	return &models.MessageCreated{
		ID:                msg.ID,
		ConversationID:    conv.ID,
		Message:           msg.Message,
		Sender:            msg.Sender,
		ModelName:         msg.ModelName,
		CreatedAt:         msg.CreatedAt,
		ConversationTitle: conv.Title,
	}, nil
}

// Context returns the latest messages of a conversation formatted for an agent.
// limit defaults to history.context_limit and is clamped to [1, history.max_context_limit].
func (s *Service) Context(ctx context.Context, id int64, limit *int, includeSystem bool) (*models.ContextWindow, error) {
	if _, err := s.store.GetConversation(ctx, id); err != nil {
		return nil, err
	}
	n := models.ClampTopK(limit, s.config.ContextLimit, s.config.MaxContextLimit)
	msgs, err := s.store.ContextMessages(ctx, id, n, includeSystem)
	if err != nil {
		return nil, err
	}
	window := &models.ContextWindow{
		ConversationID: id,
		Context:        make([]*models.ContextMessage, len(msgs)),
		MessageCount:   len(msgs),
		Truncated:      len(msgs) == n,
	}
	for i, m := range msgs {
		window.Context[i] = &models.ContextMessage{
			Role:      Role(m.Sender),
			Content:   m.Message,
			Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return window, nil
}

// Role maps a sender to a chat role: "user" stays user, everything else is the assistant.
func Role(sender string) string {
	if sender == "user" {
		return "user"
	}
	return "assistant"
}
