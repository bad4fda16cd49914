package models

import (
	"strings"

	"github.com/hyperjump/kioku/internal/apperr"
)

// QueryRequest asks for the nearest documents in one collection.
// Exactly one of QueryText or QueryEmbedding is used; text wins when both are set.
type QueryRequest struct {
	CollectionName string    `json:"collection_name"`
	QueryText      string    `json:"query_text,omitempty"`
	QueryEmbedding []float32 `json:"query_embedding,omitempty"`
	TopK           *int      `json:"top_k,omitempty"`
}

// Validate checks required fields. It does not touch TopK; see ClampTopK.
func (q *QueryRequest) Validate() error {
	if strings.TrimSpace(q.CollectionName) == "" {
		return apperr.Validationf("collection_name is required")
	}
	if strings.TrimSpace(q.QueryText) == "" && len(q.QueryEmbedding) == 0 {
		return apperr.Validationf("query_text or query_embedding is required")
	}
	return nil
}

// MessageSearchRequest is the body of POST /similarity_search.
type MessageSearchRequest struct {
	QueryEmbedding []float32 `json:"query_embedding,omitempty"`
	QueryText      string    `json:"query_text,omitempty"`
	TopK           *int      `json:"top_k,omitempty"`
	ConversationID *int64    `json:"conversation_id,omitempty"`
}

// Validate checks that a query vector or text is present.
func (q *MessageSearchRequest) Validate() error {
	if len(q.QueryEmbedding) == 0 && strings.TrimSpace(q.QueryText) == "" {
		return apperr.Validationf("query_embedding must be a non-empty list of numbers")
	}
	return nil
}

// ClampTopK returns def when k is unset, otherwise k limited to [1, max].
func ClampTopK(k *int, def, max int) int {
	v := def
	if k != nil {
		v = *k
	}
	if v < 1 {
		v = 1
	}
	if max > 0 && v > max {
		v = max
	}
	return v
}
