// Package models defines core data structures for collections, documents, conversations and queries.
package models

import "time"

// Collection is a named container of documents backed by its own table.
type Collection struct {
	Name          string    `json:"name" db:"name"`
	Dimensions    int       `json:"dimensions" db:"dimensions"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	DocumentCount int64     `json:"document_count" db:"-"`
}

// Document is a stored chunk of text and its embedding.
type Document struct {
	ID        int64     `json:"id" db:"id"`
	Content   string    `json:"content" db:"content"`
	Source    string    `json:"source,omitempty" db:"source"`
	Embedding []float32 `json:"embedding,omitempty" db:"embedding"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DocumentInput is the body of POST /documents.
type DocumentInput struct {
	CollectionName string `json:"collection_name"`
	Content        string `json:"content"`
}

// DocumentUpdate is the body of PUT /collections/{name}/documents/{id}.
type DocumentUpdate struct {
	Content string `json:"content"`
}

// CollectionInput is the body of POST /collections.
type CollectionInput struct {
	Name string `json:"name"`
}

// IngestResult reports the outcome of loading one file into a collection.
type IngestResult struct {
	Collection string  `json:"collection"`
	File       string  `json:"file"`
	Chunks     int     `json:"chunks"`
	Inserted   int     `json:"inserted"`
	IDs        []int64 `json:"ids"`
}

// DocumentPage is one page of a collection listing.
type DocumentPage struct {
	Documents []*Document `json:"documents"`
	Count     int         `json:"count"`
	Limit     int         `json:"limit"`
	Offset    int         `json:"offset"`
}
