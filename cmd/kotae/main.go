// Package main is the kotae CLI entry point.
package main

import (
	"context"
	"encoding/json"
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

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/config"
	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/ingest"
	"github.com/kotaehq/kotae/internal/responder"
	"github.com/kotaehq/kotae/internal/retriever"
	"github.com/kotaehq/kotae/internal/server"
	"github.com/kotaehq/kotae/internal/storage"
	"github.com/kotaehq/kotae/internal/transcribe"
	"github.com/kotaehq/kotae/internal/watcher"
	"github.com/kotaehq/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
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
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
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
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`kotae - call-answering knowledge assistant

Usage:
  kotae server  [-config path] [-debug]           run the voice webhook and retrieval API server
  kotae ingest  [-config path] [-org name] [-docs dir]   build a collection's knowledge store
  kotae ask     [-config path] [-org name] [-k n] [-answer] <question>
  kotae status  [-config path] [-server url] [-output text|json]
  kotae version
  kotae help`)
}

// components bundles everything the server and direct-mode commands share.
type components struct {
	Embedder  embedding.Embedder
	Registry  *retriever.Registry
	Retriever *retriever.Retriever
	Pipeline  *ingest.Pipeline
	Calls     *storage.SQLiteStore
}

func (c *components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Calls != nil {
		_ = c.Calls.Close()
	}
}

// initializeComponents wires the embedder, registry, retriever, ingestion
// pipeline and call log. withCalls controls whether the call log database is
// opened; batch commands leave it closed.
func initializeComponents(cfg *config.Config, logger *zap.Logger, withCalls bool) (*components, error) {
	embedder, err := embedding.NewEmbedder(embedding.Options{
		Backend:    cfg.Embedding.Backend,
		Dimensions: cfg.Embedding.Dimensions,
		BaseURL:    cfg.Embedding.BaseURL,
		APIKeyEnv:  cfg.Embedding.APIKeyEnv,
		Model:      cfg.Embedding.Model,
		ModelPath:  cfg.Embedding.ModelPath,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
	})
	if err != nil {
		logger.Warn("embedding backend unavailable, falling back to mock",
			zap.String("backend", cfg.Embedding.Backend), zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	registry := retriever.NewRegistry(cfg.Storage.DataDir, embedder.Dimensions(), logger)
	c := &components{
		Embedder:  embedder,
		Registry:  registry,
		Retriever: retriever.NewRetriever(registry, embedder, logger),
		Pipeline:  ingest.NewPipeline(embedder, cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap, logger),
	}
	if withCalls {
		calls, err := storage.NewSQLiteStore(cfg.Storage.CallLogPath)
		if err != nil {
			_ = embedder.Close()
			return nil, fmt.Errorf("failed to open call log: %w", err)
		}
		c.Calls = calls
	}
	return c, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	comps, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	var transcriber server.Transcriber
	if t, err := transcribe.NewClient(transcribe.Options{
		BaseURL:   cfg.Speech.BaseURL,
		APIKeyEnv: cfg.Speech.APIKeyEnv,
		Model:     cfg.Speech.Model,
		Logger:    logger,
	}); err != nil {
		logger.Warn("transcription disabled", zap.Error(err))
	} else {
		transcriber = t
	}

	var respond server.Responder
	if rc, err := responder.NewClient(responder.Options{
		BaseURL:   cfg.Responder.BaseURL,
		APIKeyEnv: cfg.Responder.APIKeyEnv,
		Model:     cfg.Responder.Model,
		MaxTokens: cfg.Responder.MaxTokens,
		Logger:    logger,
	}); err != nil {
		logger.Warn("reply generation disabled, using fallback replies", zap.Error(err))
	} else {
		respond = rc
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Watch.Enabled && len(cfg.Watch.Orgs) > 0 {
		rebuilder := watcher.NewRebuilder(comps.Pipeline, comps.Registry, cfg, logger)
		dirs := make(map[string]string, len(cfg.Watch.Orgs))
		for _, org := range cfg.Watch.Orgs {
			dirs[org] = cfg.KnowledgeDir(org)
		}
		watchSvc = watcher.NewWatcher(dirs, func(org string) {
			if err := rebuilder.Rebuild(watchCtx, org); err != nil {
				logger.Warn("watch rebuild failed", zap.String("org", org), zap.Error(err))
			}
		}, logger)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(comps.Retriever, comps.Registry, comps.Calls, transcriber, respond, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	org := fs.String("org", "", "collection name (default from config)")
	docs := fs.String("docs", "", "source documents directory (default <data_dir>/<org>/knowledge)")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *org == "" {
		*org = cfg.Retrieval.DefaultOrg
	}
	docsDir := *docs
	if docsDir == "" {
		docsDir = cfg.KnowledgeDir(*org)
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	comps, err := initializeComponents(cfg, logger, false)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	res, err := comps.Pipeline.IngestDirectory(context.Background(), docsDir, cfg.StoreDir(*org))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %d chunks from %d files (%d skipped) into %s\n",
		len(res.Chunks), res.Files, res.Skipped, cfg.StoreDir(*org))
	if len(res.Chunks) == 0 {
		fmt.Fprintln(os.Stderr, "No chunks ingested")
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	org := fs.String("org", "", "collection name (default from config)")
	k := fs.Int("k", 0, "number of chunks to retrieve (default from config)")
	answer := fs.Bool("answer", false, "generate a spoken-style answer from the retrieved chunks")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *org == "" {
		*org = cfg.Retrieval.DefaultOrg
	}
	if *k <= 0 {
		*k = cfg.Retrieval.TopK
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	comps, err := initializeComponents(cfg, logger, false)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	ctx := context.Background()
	results, err := comps.Retriever.RetrieveChunks(ctx, *org, question, *k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Retrieval failed: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No matching knowledge found.")
		return
	}
	for i, res := range results {
		fmt.Printf("%d. [%s #%d, distance %.4f]\n   %s\n",
			i+1, res.Metadata.Source, res.Metadata.ChunkIndex, res.Distance,
			utils.Truncate(res.Chunk, 300))
	}

	if *answer {
		profile, err := config.LoadOrgProfile(cfg.Storage.DataDir, *org)
		if err != nil {
			profile = config.DefaultOrgProfile(*org)
		}
		rc, err := responder.NewClient(responder.Options{
			BaseURL:   cfg.Responder.BaseURL,
			APIKeyEnv: cfg.Responder.APIKeyEnv,
			Model:     cfg.Responder.Model,
			MaxTokens: cfg.Responder.MaxTokens,
			Logger:    logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Answer generation unavailable: %v\n", err)
			os.Exit(1)
		}
		chunks := make([]string, 0, len(results))
		for _, res := range results {
			chunks = append(chunks, res.Chunk)
		}
		fmt.Printf("\nAnswer: %s\n", rc.Respond(ctx, profile, question, chunks))
	}
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Orgs           map[string]int         `json:"orgs"`
	Calls          *int64                 `json:"calls,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read stores directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		res, err := statusDirect(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		for org, size := range status.Orgs {
			fmt.Printf("%-20s %d chunks\n", org+":", size)
		}
		if status.Calls != nil {
			fmt.Printf("calls handled:       %d\n", *status.Calls)
		}
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk usage bytes:    %d\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func statusDirect(configPath string) (*statusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	comps, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return nil, err
	}
	defer comps.Close()

	ctx := context.Background()
	status := &statusResponse{Orgs: map[string]int{}}
	seen := map[string]bool{}
	for _, org := range append([]string{cfg.Retrieval.DefaultOrg}, cfg.Watch.Orgs...) {
		if org == "" || seen[org] {
			continue
		}
		seen[org] = true
		store, err := comps.Registry.Store(org)
		if err != nil {
			return nil, err
		}
		status.Orgs[org] = store.Size()
	}
	calls, err := comps.Calls.CountCalls(ctx, "")
	if err == nil {
		status.Calls = &calls
	}
	diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DataDir, cfg.Storage.CallLogPath)
	if err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}
