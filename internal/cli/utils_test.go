package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kioku/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"text", "json"} {
		if f, err := ParseOutputFormat(s); err != nil || string(f) != s {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", s, f, err)
		}
	}
	if _, err := ParseOutputFormat("compact"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteQueryResults_JSON(t *testing.T) {
	response := &models.QueryResponse{
		Collection: "notes",
		QueryTime:  42,
		Results: []*models.DocumentMatch{
			{ID: 7, Content: "Content here", Similarity: 0.9},
		},
	}
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteQueryResults(json): %v", err)
	}
	var decoded models.QueryResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Collection != "notes" || decoded.QueryTime != 42 {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].ID != 7 {
		t.Errorf("decoded results = %+v", decoded.Results)
	}
}

func TestWriteQueryResults_text(t *testing.T) {
	response := &models.QueryResponse{
		Collection: "notes",
		QueryTime:  10,
		Results: []*models.DocumentMatch{
			{ID: 1, Content: "Short content", Source: "a.txt", Similarity: 0.5},
			{ID: 2, Content: strings.Repeat("x", 300), Similarity: 0.25},
		},
	}
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, response, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 2 results in notes", "10ms", "Rank: 1", "ID: 1", "Source: a.txt", "Short content", "Rank: 2"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
	if strings.Contains(out, strings.Repeat("x", 201)) {
		t.Error("long content should be truncated")
	}
}

func TestWriteCollections(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCollections(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no collections") {
		t.Errorf("empty listing = %q", buf.String())
	}
	buf.Reset()
	colls := []*models.Collection{{Name: "notes", DocumentCount: 3, CreatedAt: time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)}}
	if err := WriteCollections(&buf, colls, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "notes") || !strings.Contains(buf.String(), "3 documents") {
		t.Errorf("listing = %q", buf.String())
	}
}

func TestWriteIngestResults(t *testing.T) {
	var buf bytes.Buffer
	results := []*models.IngestResult{
		{Collection: "docs", File: "a.txt", Chunks: 2, Inserted: 2},
		{Collection: "docs", File: "b.md", Chunks: 1, Inserted: 1},
	}
	if err := WriteIngestResults(&buf, results, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Ingested 2 file(s), 3 chunk(s)") {
		t.Errorf("summary = %q", buf.String())
	}
}
