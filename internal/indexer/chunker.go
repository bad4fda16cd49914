// Package indexer provides text chunking and the ingestion pipeline into collections.
package indexer

import (
	"strings"

	"github.com/hyperjump/kioku/internal/apperr"
)

// DefaultChunkSize is used when a non-positive chunk size is requested.
const DefaultChunkSize = 800

var (
	// ErrEmptyContent is returned when the text is empty after normalization.
	ErrEmptyContent = apperr.Validationf("file appears to be empty or unreadable")
	// ErrNoChunksProduced is returned when every window trimmed to nothing.
	ErrNoChunksProduced = apperr.Validationf("no valid chunks produced from content")
)

// Chunker splits text into overlapping fixed-size character windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given default size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	chunkSize, chunkOverlap = EffectiveParams(chunkSize, chunkOverlap)
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Size returns the chunker's default window size.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the chunker's default overlap.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Chunk splits text using the chunker's defaults.
func (c *Chunker) Chunk(text string) ([]string, error) {
	return Chunk(text, c.chunkSize, c.chunkOverlap)
}

// EffectiveParams applies the edge-case policy: a non-positive size becomes
// DefaultChunkSize, a negative overlap becomes 0, and an overlap that would stop
// the window from advancing becomes size/4.
func EffectiveParams(chunkSize, overlap int) (int, int) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return chunkSize, overlap
}

// Chunk normalizes text and returns trimmed, non-empty windows of chunkSize runes.
// Consecutive windows start chunkSize-overlap runes apart, so each window repeats
// the last overlap runes of the previous one.
func Chunk(text string, chunkSize, overlap int) ([]string, error) {
	cleaned := Normalize(text)
	if cleaned == "" {
		return nil, ErrEmptyContent
	}
	chunkSize, overlap = EffectiveParams(chunkSize, overlap)

	runes := []rune(cleaned)
	length := len(runes)
	var chunks []string
	for start := 0; start < length; {
		end := start + chunkSize
		if end > length {
			end = length
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= length {
			break
		}
		start = end - overlap
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunksProduced
	}
	return chunks, nil
}
