package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/cli"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/models"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"refund policy", "-top-k", "3"},
			expected: []string{"-top-k", "3", "refund policy"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-collection", "notes", "refund policy"},
			expected: []string{"-collection", "notes", "refund policy"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"refund policy"},
			expected: []string{"refund policy"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-collection", "notes"},
			expected: []string{"-collection", "notes", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"refunds"}, "refunds"},
		{"multiple words", []string{"refund", "policy"}, "refund policy"},
		{"single quoted phrase", []string{"refund policy"}, "refund policy"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinQuery(tt.args); got != tt.expected {
				t.Errorf("joinQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "KIOKU_STORAGE_DRIVER", "KIOKU_DATABASE_PATH", "KIOKU_EMBEDDING_PROVIDER", "ALLOWED_ORIGINS", "KIOKU_DEBUG"} {
		t.Setenv(k, "")
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "./test.db"
embedding:
  provider: mock
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug || cfg.Embedding.Provider != config.ProviderMock {
		t.Errorf("unexpected config: debug=%v provider=%s", cfg.Debug, cfg.Embedding.Provider)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "kioku.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_defaultsAndEnv(t *testing.T) {
	if _, statErr := os.Stat(defaultConfigPath); statErr == nil {
		t.Skip("a system config exists at the default path")
	}
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://kioku@localhost/kioku")

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want defaults", resolved)
	}
	if cfg.Storage.Driver != config.DriverPostgres || cfg.Storage.DSN != "postgres://kioku@localhost/kioku" {
		t.Errorf("DATABASE_URL not applied: %+v", cfg.Storage)
	}
}

func TestLoadConfig_invalid(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("storage:\n  driver: mysql\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadConfig(configPath); err == nil {
		t.Error("expected validation error for unknown driver")
	}
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit path")
	}
}

func TestInitializeComponents(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "nested", "kioku.db")
	cfg.Embedding.Provider = config.ProviderMock
	cfg.Embedding.Dimensions = 8
	cfg.Embedding.CacheSize = 16

	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, ok := c.Embedder.(*embedding.CachedEmbedder); !ok {
		t.Errorf("embedder = %T, want cached", c.Embedder)
	}
	ctx := context.Background()
	if _, err := c.Storage.CreateCollection(ctx, "notes"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Indexer.AddDocument(ctx, "notes", "hello there"); err != nil {
		t.Fatal(err)
	}
	resp, err := c.Engine.QueryCollection(ctx, &models.QueryRequest{CollectionName: "notes", QueryText: "hello there"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("results = %d", len(resp.Results))
	}
}

func TestNewEmbedder_lazyONNX(t *testing.T) {
	cfg := &config.EmbeddingConfig{Provider: config.ProviderONNX, ModelPath: "/nonexistent.onnx", Dimensions: 384}
	e, err := newEmbedder(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("lazy onnx should not load at startup: %v", err)
	}
	lazy, ok := e.(*embedding.LazyEmbedder)
	if !ok {
		t.Fatalf("embedder = %T, want lazy", e)
	}
	if lazy.Loaded() || e.Dimensions() != 384 {
		t.Error("model should not be loaded before first use")
	}
}

func TestDecodeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/status" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok","storage":"sqlite","collections":["a"],"collection_count":1,"conversations":2}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"collection 'x' does not exist","kind":"not_found"}`))
	}))
	defer srv.Close()

	var st models.Status
	if err := getJSON(srv.URL+"/api/v1/status", &st); err != nil {
		t.Fatal(err)
	}
	if st.CollectionCount != 1 || st.Conversations != 2 {
		t.Errorf("status = %+v", st)
	}
	var qr models.QueryResponse
	err := postJSON(srv.URL+"/api/v1/query", &models.QueryRequest{CollectionName: "x", QueryText: "q"}, &qr)
	if err == nil || !strings.Contains(err.Error(), "not_found") || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("err = %v", err)
	}
}

func TestWriteStatus(t *testing.T) {
	n := int64(4096)
	st := &models.Status{
		Status: "ok", Storage: "sqlite", Collections: []string{"a", "b"}, CollectionCount: 2,
		DiskUsageBytes: &n,
		Config:         &models.StatusConfig{EmbeddingProvider: "mock", EmbeddingDimensions: 8, ChunkSize: 800},
	}
	var buf bytes.Buffer
	if err := writeStatus(&buf, st, cli.OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"sqlite", "a, b", "4096", "mock (8 dims)", "chunk_size:         800"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("status output missing %q:\n%s", sub, buf.String())
		}
	}
}
