package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/kioku/internal/apperr"
)

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "hello world")
	b, _ := e.Embed(ctx, "hello world")
	c, _ := e.Embed(ctx, "something else")
	if len(a) != 16 {
		t.Fatalf("len = %d", len(a))
	}
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text must give the same vector")
		}
		norm += float64(a[i]) * float64(a[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("vector should be unit length, norm^2=%f", norm)
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Error("different text should give a different vector")
	}
	if NewMockEmbedder(0).Dimensions() != 384 {
		t.Error("default dimension should be 384")
	}
}

func TestLazyEmbedder_LoadsOnce(t *testing.T) {
	var loads int32
	e := NewLazyEmbedder(func() (Embedder, error) {
		atomic.AddInt32(&loads, 1)
		return NewMockEmbedder(8), nil
	}, 8)
	if e.Loaded() {
		t.Fatal("should not load before first use")
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Embed(context.Background(), "concurrent"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if loads != 1 {
		t.Errorf("loader called %d times", loads)
	}
	if !e.Loaded() {
		t.Error("should report loaded")
	}
}

func TestLazyEmbedder_LoadFailure(t *testing.T) {
	e := NewLazyEmbedder(func() (Embedder, error) {
		return nil, errors.New("model file missing")
	}, 8)
	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, apperr.ErrModelUnavailable) {
		t.Fatalf("expected ModelUnavailable, got %v", err)
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"x"}); !errors.Is(err, apperr.ErrModelUnavailable) {
		t.Errorf("batch: expected ModelUnavailable, got %v", err)
	}
	if e.Dimensions() != 8 {
		t.Error("Dimensions must not require loading")
	}
}

func TestLazyEmbedder_DimensionMismatch(t *testing.T) {
	e := NewLazyEmbedder(func() (Embedder, error) { return NewMockEmbedder(4), nil }, 8)
	if err := e.Load(); !errors.Is(err, apperr.ErrModelUnavailable) {
		t.Errorf("expected ModelUnavailable for mismatched model, got %v", err)
	}
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "all-minilm" {
			http.Error(w, "unknown model", http.StatusBadRequest)
			return
		}
		emb := make([]float64, 384)
		emb[len(req.Prompt)%384] = 1
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: emb})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL + "/"})
	if e.Dimensions() != 384 {
		t.Fatalf("Dimensions() = %d", e.Dimensions())
	}
	embs, err := e.EmbedBatch(context.Background(), []string{"a", "bb"})
	if err != nil {
		t.Fatal(err)
	}
	if embs[0][1] != 1 || embs[1][2] != 1 {
		t.Errorf("unexpected vectors")
	}

	wrong := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Dimensions: 10})
	if _, err := wrong.Embed(context.Background(), "a"); !errors.Is(err, apperr.ErrModelUnavailable) {
		t.Errorf("expected ModelUnavailable on dimension mismatch, got %v", err)
	}

	bad := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "nomic-embed-text"})
	if _, err := bad.Embed(context.Background(), "a"); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}
