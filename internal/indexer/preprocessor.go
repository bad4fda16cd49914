package indexer

import "strings"

// Normalize prepares decoded text for chunking: carriage returns become spaces
// and surrounding whitespace is trimmed.
func Normalize(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\r", " "))
}
