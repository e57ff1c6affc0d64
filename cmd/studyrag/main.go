// Package main is the studyrag CLI entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/verseware/studyrag/internal/answer"
	"github.com/verseware/studyrag/internal/chunker"
	"github.com/verseware/studyrag/internal/cli"
	"github.com/verseware/studyrag/internal/config"
	"github.com/verseware/studyrag/internal/ingest"
	"github.com/verseware/studyrag/internal/library"
	"github.com/verseware/studyrag/internal/llm"
	"github.com/verseware/studyrag/internal/models"
	"github.com/verseware/studyrag/internal/retriever"
	"github.com/verseware/studyrag/internal/server"
	"github.com/verseware/studyrag/internal/vector"
	"github.com/verseware/studyrag/internal/watcher"
	"github.com/verseware/studyrag/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/studyrag/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "studyrag serve" from the project dir uses the
// project's config. Returns the config and the path actually loaded.
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
	// API keys commonly live in a local .env during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "ask":
		runAsk()
	case "chat":
		runChat()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "serve":
		runServe()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("studyrag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`studyrag - retrieval-augmented Q&A over a local study library

Usage:
  studyrag ask [flags] <question>     ask a single question
  studyrag chat [flags]               interactive question loop
  studyrag ingest [flags]             chunk, embed, and index the library
  studyrag status [flags]             show index counts and configuration
  studyrag serve [flags]              run the HTTP API
  studyrag watch [flags]              re-ingest documents as files change
  studyrag version                    print version
  studyrag help                       print this help

Run "studyrag <command> -h" for command flags.
`)
}

// components holds the wired application pieces that commands share.
type components struct {
	Config      *config.Config
	Logger      *zap.Logger
	Provider    llm.Provider
	Index       vector.Index
	Library     *library.Library
	Retriever   *retriever.Retriever
	Composer    *answer.Composer
	Coordinator *ingest.Coordinator
}

func (c *components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

func initializeComponents(cfg *config.Config, debug, repair bool) (*components, error) {
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	provider, err := llm.New(cfg.Provider, cfg.Retrieval, logger)
	if err != nil {
		return nil, err
	}

	var opts []vector.Option
	if repair {
		opts = append(opts, vector.WithRepair())
	}
	index, err := vector.Open(cfg.Storage.DatabasePath, cfg.Provider.Dimensions, opts...)
	if err != nil {
		if errors.Is(err, vector.ErrCorrupt) {
			return nil, fmt.Errorf("%w; run \"studyrag ingest -rebuild\" to rebuild it", err)
		}
		return nil, err
	}

	lib := library.New(cfg.Library, logger)
	ch, err := chunker.New(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	return &components{
		Config:    cfg,
		Logger:    logger,
		Provider:  provider,
		Index:     index,
		Library:   lib,
		Retriever: retriever.New(provider, index, cfg.Retrieval.TopK, logger),
		Composer:  answer.New(provider, logger),
		Coordinator: ingest.New(lib, ch, provider, index, cfg.Retrieval.Concurrency,
			ingest.WithLogger(logger)),
	}, nil
}

// askOnce runs one question through retrieval and composition, mapping the
// failure modes to distinct user-facing messages.
func askOnce(ctx context.Context, comp *components, question string, k int, format cli.OutputFormat) error {
	retrieved, err := comp.Retriever.Retrieve(ctx, question, k)
	if err != nil {
		switch {
		case errors.Is(err, retriever.ErrEmptyIndex):
			return errors.New("no documents ingested yet; run \"studyrag ingest\" first")
		case errors.Is(err, llm.ErrEmbedding):
			return fmt.Errorf("embedding service unavailable: %v", err)
		default:
			return err
		}
	}
	ans, err := comp.Composer.Compose(ctx, question, retrieved)
	if err != nil {
		if errors.Is(err, llm.ErrGeneration) {
			return fmt.Errorf("generation service unavailable: %v", err)
		}
		return err
	}
	return cli.WriteAnswer(os.Stdout, ans, format)
}

func parseFormat(s string) (cli.OutputFormat, error) {
	switch s {
	case "text":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("k", 0, "number of chunks to retrieve (0 = configured default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "Usage: studyrag ask [flags] <question>")
		os.Exit(1)
	}
	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	comp, err := initializeComponents(cfg, *debug, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()

	if err := askOnce(context.Background(), comp, question, *topK, format); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	comp, err := initializeComponents(cfg, *debug, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()

	fmt.Println("Ask a question about the study library. Type \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return
		}
		if err := askOnce(context.Background(), comp, question, 0, cli.OutputText); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	rebuild := fs.Bool("rebuild", false, "clear the index and re-ingest every document")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	comp, err := initializeComponents(cfg, *debug, *rebuild)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()

	report, err := comp.Coordinator.IngestAll(context.Background(), *rebuild)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	index, err := vector.Open(cfg.Storage.DatabasePath, cfg.Provider.Dimensions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open index: %v\n", err)
		os.Exit(1)
	}
	defer index.Close()

	ctx := context.Background()
	docs, err := index.CountDocuments(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count documents failed: %v\n", err)
		os.Exit(1)
	}
	chunks, err := index.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config:     %s\n", resolvedPath)
	fmt.Printf("Index:      %s\n", cfg.Storage.DatabasePath)
	fmt.Printf("Library:    %s\n", cfg.Library.PDFDir)
	fmt.Printf("Provider:   %s (embed %s, chat %s, %d dims)\n",
		cfg.Provider.Name, cfg.Provider.EmbeddingModel, cfg.Provider.ChatModel, cfg.Provider.Dimensions)
	fmt.Printf("Documents:  %d\n", docs)
	fmt.Printf("Chunks:     %d\n", chunks)
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watchLibrary := fs.Bool("watch", true, "re-ingest documents as library files change")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	comp, err := initializeComponents(cfg, *debug, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()
	logger := comp.Logger

	logger.Info("config loaded",
		zap.String("config_path", resolvedPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if *watchLibrary {
		w := watcher.New(cfg.Library.PDFDir, comp.Library.Allowed, func(sourceID string) {
			rep := comp.Coordinator.IngestOne(context.Background(), sourceID)
			if rep.Status == models.StatusFailed {
				logger.Warn("watch ingest failed", zap.String("source_id", sourceID), zap.String("reason", rep.Err))
			}
		}, watcher.WithLogger(logger))
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(comp.Retriever, comp.Composer, comp.Coordinator, comp.Index, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	comp, err := initializeComponents(cfg, *debug, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()
	logger := comp.Logger

	w := watcher.New(cfg.Library.PDFDir, comp.Library.Allowed, func(sourceID string) {
		rep := comp.Coordinator.IngestOne(context.Background(), sourceID)
		if rep.Status == models.StatusFailed {
			logger.Warn("watch ingest failed", zap.String("source_id", sourceID), zap.String("reason", rep.Err))
			return
		}
		logger.Info("document re-ingested", zap.String("source_id", sourceID), zap.Int("chunks", rep.Chunks))
	}, watcher.WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()
	fmt.Printf("Watching %s for changes. Press Ctrl-C to stop.\n", cfg.Library.PDFDir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}
