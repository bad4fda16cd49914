package models

// StatusConfig echoes the settings that shape indexing and search.
type StatusConfig struct {
	EmbeddingProvider   string `json:"embedding_provider"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	ChunkSize           int    `json:"chunk_size"`
	ChunkOverlap        int    `json:"chunk_overlap"`
	DefaultTopK         int    `json:"default_top_k"`
	MaxTopK             int    `json:"max_top_k"`
	EmbedMessages       bool   `json:"embed_messages"`
	DatabasePath        string `json:"database_path,omitempty"`
}

// Status is the response for GET /api/v1/status.
type Status struct {
	Status          string        `json:"status"`
	Storage         string        `json:"storage"`
	Collections     []string      `json:"collections"`
	CollectionCount int           `json:"collection_count"`
	Conversations   int64         `json:"conversations"`
	DiskUsageBytes  *int64        `json:"disk_usage_bytes,omitempty"`
	Config          *StatusConfig `json:"config,omitempty"`
}
