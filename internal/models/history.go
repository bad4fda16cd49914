package models

import (
	"strings"
	"time"

	"github.com/hyperjump/kioku/internal/apperr"
)

// Conversation groups chat messages. MessageCount is only set when requested.
type Conversation struct {
	ID           int64     `json:"id" db:"id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	Title        *string   `json:"title" db:"title"`
	MessageCount *int64    `json:"message_count,omitempty" db:"-"`
}

// Message is one chat message. Embedding is omitted from JSON unless populated.
type Message struct {
	ID             int64     `json:"id" db:"id"`
	ConversationID int64     `json:"conversation_id" db:"conversation_id"`
	Sender         string    `json:"sender" db:"sender"`
	Message        string    `json:"message" db:"message"`
	ModelName      *string   `json:"model_name" db:"model_name"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	Embedding      []float32 `json:"embedding,omitempty" db:"embedding"`
}

// MessageInput is the body of POST /messages. A missing or zero ConversationID
// creates a new conversation titled ConversationTitle.
type MessageInput struct {
	Message           string    `json:"message"`
	Sender            string    `json:"sender"`
	ConversationID    *int64    `json:"conversation_id,omitempty"`
	ConversationTitle *string   `json:"conversation_title,omitempty"`
	ModelName         *string   `json:"model_name,omitempty"`
	Embedding         []float32 `json:"embedding,omitempty"`
}

// Validate checks required fields.
func (m *MessageInput) Validate() error {
	if m.Message == "" || m.Sender == "" {
		return apperr.Validationf("message and sender are required")
	}
	return nil
}

// TargetConversation returns the requested conversation id, or 0 to create one.
func (m *MessageInput) TargetConversation() int64 {
	if m.ConversationID == nil {
		return 0
	}
	return *m.ConversationID
}

// NewTitle returns the trimmed title for a new conversation, or nil when blank.
func (m *MessageInput) NewTitle() *string {
	if m.ConversationTitle == nil {
		return nil
	}
	t := strings.TrimSpace(*m.ConversationTitle)
	if t == "" {
		return nil
	}
	return &t
}

// MessageCreated is the 201 response for POST /messages.
type MessageCreated struct {
	ID                int64     `json:"id"`
	ConversationID    int64     `json:"conversation_id"`
	Message           string    `json:"message"`
	Sender            string    `json:"sender"`
	ModelName         *string   `json:"model_name"`
	CreatedAt         time.Time `json:"created_at"`
	ConversationTitle *string   `json:"conversation_title"`
}

// TitleUpdate is the body of PATCH /conversations/{id}.
type TitleUpdate struct {
	Title *string `json:"title"`
}

// ConversationPage is one page of the conversation listing.
type ConversationPage struct {
	PageInfo
	Conversations []*Conversation `json:"conversations"`
}

// MessagePage is one page of a conversation's messages.
type MessagePage struct {
	ConversationID int64 `json:"conversation_id"`
	PageInfo
	Messages []*Message `json:"messages"`
}

// ContextMessage is a message formatted for an agent's memory window.
type ContextMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ContextWindow is the response for GET /conversations/{id}/context.
type ContextWindow struct {
	ConversationID int64             `json:"conversation_id"`
	Context        []*ContextMessage `json:"context"`
	MessageCount   int               `json:"message_count"`
	Truncated      bool              `json:"truncated"`
}

// ConversationExport is the downloadable form of a whole conversation.
type ConversationExport struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []*Message    `json:"messages"`
	ExportedAt   time.Time     `json:"exported_at"`
}

// BulkDeleteInput is the body of POST /conversations/bulk_delete.
type BulkDeleteInput struct {
	ConversationIDs []int64 `json:"conversation_ids"`
}

// BulkDeleteResult reports which conversations were removed.
type BulkDeleteResult struct {
	Requested []int64  `json:"requested"`
	Deleted   []int64  `json:"deleted"`
	NotFound  []int64  `json:"not_found"`
	Errors    []string `json:"errors"`
}

// ConversationDeleted is the response for DELETE /conversations/{id}.
type ConversationDeleted struct {
	Deleted        bool  `json:"deleted"`
	ConversationID int64 `json:"conversation_id"`
}
