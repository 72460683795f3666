// Package main is the docsift CLI entry point.
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
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/blob"
	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/entities"
	"github.com/docsift/docsift/internal/export"
	"github.com/docsift/docsift/internal/extract"
	"github.com/docsift/docsift/internal/ingest"
	"github.com/docsift/docsift/internal/pipeline"
	"github.com/docsift/docsift/internal/queue"
	"github.com/docsift/docsift/internal/search"
	"github.com/docsift/docsift/internal/server"
	"github.com/docsift/docsift/internal/store"
	"github.com/docsift/docsift/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docsift/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "docsift server" from the project dir uses the
// project's config (including debug).
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
	case "process":
		runProcess()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("docsift version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
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

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Queue.Workers; i++ {
		w := queue.NewWorker(components.Broker, components.Store, components.Blobs,
			components.Pipeline, components.SearchIndex, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(workerCtx); err != nil {
				logger.Error("worker stopped", zap.Error(err))
			}
		}()
	}
	logger.Info("workers started", zap.Int("count", cfg.Queue.Workers))

	var ingester *ingest.Ingester
	if cfg.Ingest.Directory != "" {
		ingester = ingest.NewIngester(
			cfg.Ingest.Directory,
			cfg.Ingest.TenantID,
			cfg.Ingest.Extensions,
			cfg.Queue.JobTimeout.Std(),
			components.Store,
			components.Blobs,
			components.Broker,
			logger,
		)
		if err := ingester.Start(workerCtx); err != nil {
			logger.Fatal("Failed to start ingest watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Store,
		components.Blobs,
		components.Broker,
		components.SearchIndex,
		components.Exporter,
		components.Extractor,
		cfg.Queue.JobTimeout.Std(),
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if ingester != nil {
		ingester.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	workerCancel()
	components.Broker.Close()
	wg.Wait()
}

// runProcess runs the extraction pipeline on one local file and prints the
// resulting metadata as JSON. No server or database is involved.
func runProcess() {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docsift process [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read %s: %v\n", path, err)
		os.Exit(1)
	}

	// Config is optional here; missing config falls back to defaults.
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	extractor := extract.New(extract.Config{
		TesseractBinary: cfg.Pipeline.TesseractBinary,
		TesseractLang:   cfg.Pipeline.TesseractLang,
	}, logger)
	var rec entities.Recognizer
	if recognizer := newRecognizer(cfg, logger); recognizer != nil {
		rec = recognizer
		defer recognizer.Close()
	}
	ents := entities.New(rec, logger)
	proc := pipeline.New(extractor, ents, logger)

	metadata, _ := proc.Process(path, filepath.Base(path))
	out, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render metadata: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	tenantID := fs.Int64("tenant", 1, "tenant id")
	_ = fs.Parse(os.Args[2:])

	req, err := http.NewRequest(http.MethodGet, *serverURL+"/api/v1/status", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-Tenant-ID", fmt.Sprintf("%d", *tenantID))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var pretty map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&pretty); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
}

// Components holds initialized services.
type Components struct {
	Store       *store.SQLiteStore
	Blobs       *blob.DiskStore
	Broker      *queue.MemoryBroker
	SearchIndex *search.Index
	Extractor   *extract.Extractor
	Recognizer  *entities.ONNXRecognizer
	Pipeline    *pipeline.Processor
	Exporter    *export.Service
}

func (c *Components) Close() {
	if c.SearchIndex != nil {
		_ = c.SearchIndex.Close()
	}
	if c.Recognizer != nil {
		_ = c.Recognizer.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// newRecognizer loads the ONNX NER model when configured; on any failure
// entity extraction falls back to patterns only.
func newRecognizer(cfg *config.Config, logger *zap.Logger) *entities.ONNXRecognizer {
	if cfg.Pipeline.NERModelPath == "" {
		return nil
	}
	recognizer, err := entities.NewONNXRecognizer(cfg.Pipeline.NERModelPath)
	if err != nil {
		logger.Warn("NER model unavailable, using pattern extraction only",
			zap.String("model_path", cfg.Pipeline.NERModelPath),
			zap.Error(err))
		return nil
	}
	return recognizer
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	blobs, err := blob.NewDiskStore(cfg.Storage.FilesPath)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	searchIdx, err := search.NewIndex(cfg.Storage.SearchIndexPath)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize search index: %w", err)
	}

	extractor := extract.New(extract.Config{
		TesseractBinary: cfg.Pipeline.TesseractBinary,
		TesseractLang:   cfg.Pipeline.TesseractLang,
	}, logger)

	recognizer := newRecognizer(cfg, logger)
	var rec entities.Recognizer
	if recognizer != nil {
		rec = recognizer
	}
	ents := entities.New(rec, logger)
	proc := pipeline.New(extractor, ents, logger)

	broker := queue.NewMemoryBroker(cfg.Queue.Size, logger)

	return &Components{
		Store:       st,
		Blobs:       blobs,
		Broker:      broker,
		SearchIndex: searchIdx,
		Extractor:   extractor,
		Recognizer:  recognizer,
		Pipeline:    proc,
		Exporter:    export.NewService(st),
	}, nil
}

func printUsage() {
	fmt.Println(`docsift - Multi-tenant document upload and metadata extraction service

Usage:
  docsift server [flags]           Start the HTTP API with in-process workers
  docsift process [flags] <file>   Run the extraction pipeline on a local file
  docsift status [flags]           Show document counts and backend availability
  docsift version                  Show version
  docsift help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/docsift/config.yaml)
  --debug            Enable debug logging

Process Flags:
  --config string    Config file path

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --tenant int       Tenant id for the request (default: 1)

Examples:
  docsift server
  docsift server --debug
  docsift process invoice.pdf
  docsift status --tenant 42`)
}
