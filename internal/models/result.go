package models

import "time"

// DocumentMatch is a single collection query hit.
type DocumentMatch struct {
	ID         int64   `json:"id"`
	Content    string  `json:"content"`
	Source     string  `json:"source,omitempty"`
	Similarity float64 `json:"similarity"`
}

// QueryResponse is the response for a collection query.
type QueryResponse struct {
	Collection string           `json:"collection"`
	Results    []*DocumentMatch `json:"results"`
	QueryTime  int64            `json:"query_time_ms"`
}

// MessageMatch is a single chat history search hit.
type MessageMatch struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Message        string    `json:"message"`
	ModelName      *string   `json:"model_name"`
	CreatedAt      time.Time `json:"created_at"`
	Similarity     float64   `json:"similarity"`
}

// MessageSearchResponse is the response for POST /similarity_search.
type MessageSearchResponse struct {
	Results []*MessageMatch `json:"results"`
	Count   int             `json:"count"`
}
