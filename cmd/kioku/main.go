// Package main is the kioku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/cli"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/history"
	"github.com/hyperjump/kioku/internal/indexer"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/search"
	"github.com/hyperjump/kioku/internal/server"
	"github.com/hyperjump/kioku/internal/status"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kioku/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, ./config.yaml is
// preferred if it exists, and a missing default file means built-in defaults.
// Environment overrides are applied last. Returns the config and the path that
// was loaded ("" when running on defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, resolved, nil
}

func readConfig(path string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	if cwd, cwdErr := os.Getwd(); cwdErr == nil {
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return config.Default(), "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env file is normal; anything it sets is read by config.ApplyEnv.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "collections":
		runCollections()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds a logger and initializes components for a subcommand.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("embedding", cfg.Embedding.Provider),
	)
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.History,
		components.Storage,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	collection := fs.String("collection", "", "target collection (required)")
	create := fs.Bool("create", false, "create the collection if it does not exist")
	chunkSize := fs.Int("chunk-size", 0, "chunk size in characters (default from config)")
	overlap := fs.Int("overlap", -1, "chunk overlap in characters (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 || *collection == "" {
		fmt.Println("Usage: kioku ingest -collection <name> [flags] <file-or-directory>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if *create {
		if _, err := components.Storage.CreateCollection(ctx, *collection); err != nil && !errors.Is(err, apperr.ErrAlreadyExists) {
			fmt.Fprintf(os.Stderr, "Create collection failed: %v\n", err)
			os.Exit(1)
		}
	}
	size, ov := *chunkSize, *overlap
	if size <= 0 {
		size = cfg.Chunking.ChunkSize
	}
	if ov < 0 {
		ov = cfg.Chunking.Overlap
	}

	path := fs.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	var results []*models.IngestResult
	if info.IsDir() {
		results, err = components.Indexer.IngestDirectory(ctx, *collection, path, size, ov)
	} else {
		var res *models.IngestResult
		res, err = components.Indexer.IngestPath(ctx, *collection, path, size, ov)
		if res != nil {
			results = append(results, res)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteIngestResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// reorderArgs moves any flags (and their values) that appear after the
// positional arguments to the front, since flag.Parse stops at the first
// non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinQuery joins positional args so multi-word queries work with or without quotes.
func joinQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = query storage directly)")
	collection := fs.String("collection", "", "collection to query (required)")
	topK := fs.Int("top-k", 0, "number of results (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	text := joinQuery(fs.Args())
	if text == "" || *collection == "" {
		fmt.Println("Usage: kioku query -collection <name> [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	req := &models.QueryRequest{CollectionName: *collection, QueryText: text}
	if *topK > 0 {
		req.TopK = topK
	}

	var response *models.QueryResponse
	if *serverURL != "" {
		response = new(models.QueryResponse)
		err = postJSON(*serverURL+"/api/v1/query", req, response)
	} else {
		_, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		response, err = components.Engine.QueryCollection(context.Background(), req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteQueryResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runCollections() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: kioku collections <list|create|drop> [flags] [name]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("collections", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[3:]))
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()
	store := components.Storage

	switch sub {
	case "list":
		colls, err := store.ListCollections(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		for _, c := range colls {
			if c.DocumentCount, err = store.CountDocuments(ctx, c.Name); err != nil {
				fmt.Fprintf(os.Stderr, "Count failed for %s: %v\n", c.Name, err)
				os.Exit(1)
			}
		}
		if err := cli.WriteCollections(os.Stdout, colls, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "create":
		if fs.NArg() < 1 {
			fmt.Println("Usage: kioku collections create <name>")
			os.Exit(1)
		}
		c, err := store.CreateCollection(ctx, fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Create failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Collection '%s' created (%d dimensions)\n", c.Name, c.Dimensions)
	case "drop":
		if fs.NArg() < 1 {
			fmt.Println("Usage: kioku collections drop <name>")
			os.Exit(1)
		}
		if err := store.DropCollection(ctx, fs.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "Drop failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Collection '%s' dropped\n", fs.Arg(0))
	default:
		fmt.Printf("Unknown collections subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var st *models.Status
	if *serverURL != "" {
		st = new(models.Status)
		err = getJSON(*serverURL+"/api/v1/status", st)
	} else {
		cfg, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		st, err = status.Collect(context.Background(), components.Storage, cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := writeStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func writeStatus(w io.Writer, st *models.Status, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintf(w, "status:             %s\n", st.Status)
	fmt.Fprintf(w, "storage:            %s\n", st.Storage)
	fmt.Fprintf(w, "collections:        %d   # %s\n", st.CollectionCount, strings.Join(st.Collections, ", "))
	fmt.Fprintf(w, "conversations:      %d\n", st.Conversations)
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database and WAL files\n", *st.DiskUsageBytes)
	}
	if c := st.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "embedding:          %s (%d dims)\n", c.EmbeddingProvider, c.EmbeddingDimensions)
		fmt.Fprintf(w, "chunk_size:         %d\n", c.ChunkSize)
		fmt.Fprintf(w, "chunk_overlap:      %d\n", c.ChunkOverlap)
		fmt.Fprintf(w, "top_k:              %d (max %d)\n", c.DefaultTopK, c.MaxTopK)
		fmt.Fprintf(w, "embed_messages:     %t\n", c.EmbedMessages)
		if c.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", c.DatabasePath)
		}
	}
	return nil
}

// apiError is the error body returned by the server.
type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func postJSON(url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= http.StatusBadRequest {
		b, _ := io.ReadAll(resp.Body)
		var e apiError
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d (%s): %s", resp.StatusCode, e.Kind, e.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	Engine   *search.Engine
	Indexer  *indexer.Indexer
	History  *history.Service
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := openStorage(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	embedder, err := newEmbedder(&cfg.Embedding, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	engine := search.NewEngine(store, embedder, &cfg.Search, search.WithLogger(logger))
	idx := indexer.NewIndexer(store, embedder, nil, &cfg.Chunking, indexer.WithLogger(logger))
	hist := history.NewService(store, &cfg.History, history.WithEmbedder(embedder), history.WithLogger(logger))

	return &Components{
		Storage:  store,
		Embedder: embedder,
		Engine:   engine,
		Indexer:  idx,
		History:  hist,
	}, nil
}

func openStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	dims := cfg.Embedding.Dimensions
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return storage.NewPostgresStorage(cfg.Storage.DSN, dims, storage.WithLogger(logger))
	default:
		if dir := filepath.Dir(cfg.Storage.DatabasePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return storage.NewSQLiteStorage(cfg.Storage.DatabasePath, dims, storage.WithLogger(logger))
	}
}

// newEmbedder builds the configured provider. The ONNX model is wrapped in a
// LazyEmbedder so the server can start before the model is needed.
func newEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	var e embedding.Embedder
	switch cfg.Provider {
	case config.ProviderMock:
		e = embedding.NewMockEmbedder(cfg.Dimensions)
	case config.ProviderOllama:
		e = embedding.NewOllamaEmbedder(embedding.OllamaConfig{
			BaseURL:    cfg.OllamaURL,
			Model:      cfg.OllamaModel,
			Dimensions: cfg.Dimensions,
		})
	default:
		lazy := embedding.NewLazyEmbedder(func() (embedding.Embedder, error) {
			return loadONNX(cfg)
		}, cfg.Dimensions, embedding.WithLogger(logger))
		if !cfg.LazyLoadOrDefault() {
			if err := lazy.Load(); err != nil {
				return nil, err
			}
		}
		e = lazy
	}
	return embedding.NewCachedEmbedder(e, cfg.CacheSize), nil
}

func loadONNX(cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	opts := embedding.ONNXOptions{
		ModelPath:  cfg.ModelPath,
		Dimensions: cfg.Dimensions,
		MaxTokens:  cfg.MaxTokens,
		OutputName: cfg.OutputName,
		Pooling:    cfg.Pooling,
	}
	if cfg.VocabPath != "" {
		tok, err := embedding.LoadWordPieceTokenizer(cfg.VocabPath)
		if err != nil {
			return nil, err
		}
		opts.Tokenizer = tok
	}
	return embedding.NewONNXEmbedder(opts)
}

func printUsage() {
	fmt.Println(`kioku - RAG collections and chat history over SQLite or PostgreSQL

Usage:
  kioku server [flags]                              Start the HTTP server
  kioku ingest -collection <name> [flags] <path>    Chunk, embed and store a file or directory
  kioku query -collection <name> [flags] <query>    Find the nearest documents in a collection
  kioku collections <list|create|drop> [name]       Manage collections
  kioku status [flags]                              Show storage and configuration status
  kioku version                                     Show version
  kioku help                                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kioku/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --collection string  Target collection
  --create             Create the collection if it does not exist
  --chunk-size int     Chunk size in characters (default from config)
  --overlap int        Chunk overlap in characters (default from config)
  --output string      Output format: text or json

Query Flags:
  --collection string  Collection to query
  --server string      Server URL (default: http://localhost:8080). Use --server "" to query storage directly.
  --top-k int          Number of results (default from config)
  --output string      Output format: text or json

Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json

Environment:
  DATABASE_URL              PostgreSQL DSN; switches storage to postgres
  KIOKU_DATABASE_PATH       SQLite database file
  KIOKU_EMBEDDING_PROVIDER  onnx, ollama or mock
  ALLOWED_ORIGINS           Comma-separated CORS origins

Examples:
  kioku server
  kioku collections create notes
  kioku ingest -collection notes -create ./docs
  kioku query -collection notes "how do refunds work"
  kioku status --output json`)
}
