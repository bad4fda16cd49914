// Package storage defines the persistence interfaces for collections and chat history
// and implements them on SQLite and PostgreSQL.
package storage

import (
	"context"

	"github.com/hyperjump/kioku/internal/models"
)

// CollectionStore manages named document collections and their embeddings.
type CollectionStore interface {
	CreateCollection(ctx context.Context, name string) (*models.Collection, error)
	ListCollections(ctx context.Context) ([]*models.Collection, error)
	GetCollection(ctx context.Context, name string) (*models.Collection, error)
	DropCollection(ctx context.Context, name string) error

	// Document operations
	InsertDocuments(ctx context.Context, collection string, docs []*models.Document) ([]int64, error)
	UpdateDocument(ctx context.Context, collection string, id int64, content string, embedding []float32) error
	DeleteDocument(ctx context.Context, collection string, id int64) error
	GetDocument(ctx context.Context, collection string, id int64) (*models.Document, error)
	ListDocuments(ctx context.Context, collection string, limit, offset int) ([]*models.Document, error)
	CountDocuments(ctx context.Context, collection string) (int64, error)

	// SearchDocuments returns the k nearest documents by cosine distance.
	SearchDocuments(ctx context.Context, collection string, query []float32, k int) ([]*models.DocumentMatch, error)
}

// HistoryStore persists conversations and their messages.
type HistoryStore interface {
	CountConversations(ctx context.Context) (int64, error)
	ListConversations(ctx context.Context, limit, offset int, includeCounts bool) ([]*models.Conversation, error)
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id int64, title string) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id int64) error
	BulkDeleteConversations(ctx context.Context, ids []int64) (*models.BulkDeleteResult, error)

	// AddMessage attaches msg to an existing conversation, or creates one when
	// msg.ConversationID is unset. It returns the stored message and the conversation.
	AddMessage(ctx context.Context, msg *models.MessageInput) (*models.Message, *models.Conversation, error)
	CountMessages(ctx context.Context, conversationID int64) (int64, error)
	ListMessages(ctx context.Context, conversationID int64, limit, offset int, includeEmbeddings bool) ([]*models.Message, error)
	// ContextMessages returns the most recent limit messages in chronological order.
	ContextMessages(ctx context.Context, conversationID int64, limit int, includeSystem bool) ([]*models.Message, error)
	SearchMessages(ctx context.Context, query []float32, k int, conversationID *int64) ([]*models.MessageMatch, error)
}

// Storage is the full persistence surface used by the server and CLI.
type Storage interface {
	CollectionStore
	HistoryStore

	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Dimensions is the embedding dimension every stored vector must have.
	Dimensions() int
	// Driver names the backend ("sqlite" or "postgres").
	Driver() string
	Close() error
}
