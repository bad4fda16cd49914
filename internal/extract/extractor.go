// Package extract decodes uploaded files into plain UTF-8 text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/kioku/internal/apperr"
)

// ErrUnsupportedFileType is returned for extensions with no decoder.
var ErrUnsupportedFileType = apperr.Validationf("unsupported file type")

type decodeFunc func(content []byte) (string, error)

var decoders = map[string]decodeFunc{
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractExcel,
}

// SupportedExtensions returns the accepted file extensions, sorted, with leading dots.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(decoders))
	for ext := range decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether the file name has a decodable extension.
func Supported(filename string) bool {
	_, ok := decoders[Ext(filename)]
	return ok
}

// Ext returns the lowercased extension of filename including the dot.
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Extractor decodes document bytes by extension.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and decodes it according to its extension.
func (e *Extractor) Extract(path string) (string, error) {
	if !Supported(path) {
		return "", unsupported(Ext(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, Ext(path))
}

// ExtractFile decodes content using the extension of filename.
func (e *Extractor) ExtractFile(filename string, content []byte) (string, error) {
	return e.ExtractBytes(content, Ext(filename))
}

// ExtractBytes decodes content for the given extension (with leading dot).
// Decoder failures are reported as validation errors because they stem from the upload.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	decode, ok := decoders[ext]
	if !ok {
		return "", unsupported(ext)
	}
	text, err := decode(content)
	if err != nil {
		return "", apperr.Wrap(apperr.Validation, err, fmt.Sprintf("could not decode %s file", ext))
	}
	return text, nil
}

func unsupported(ext string) error {
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFileType, ext, strings.Join(SupportedExtensions(), ", "))
}
