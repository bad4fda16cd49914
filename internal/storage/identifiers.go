package storage

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperjump/kioku/internal/apperr"
)

// collectionTablePrefix namespaces per-collection tables.
const collectionTablePrefix = "rag_"

var collectionNameRe = regexp.MustCompile(`^[a-z0-9_]{1,48}$`)

// NormalizeCollectionName trims, lowercases and replaces spaces with underscores,
// then checks the result against the identifier allow-list.
func NormalizeCollectionName(name string) (string, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	if n == "" {
		return "", apperr.Validationf("collection name is required")
	}
	if !collectionNameRe.MatchString(n) {
		return "", apperr.Validationf("invalid collection name %q: use 1-48 characters from a-z, 0-9 and _", name)
	}
	return n, nil
}

// tableName returns the physical table for a normalized collection name.
func tableName(collection string) string {
	return collectionTablePrefix + collection
}

// quoteIdent double-quotes an identifier. Names reaching here have already passed
// the allow-list, so the escape only guards against misuse.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// rebindDollar rewrites ? placeholders to $1..$n, skipping quoted literals and identifiers.
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
