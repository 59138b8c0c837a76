// Package main is the semsearch CLI entry point.
package main

import (
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

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/cli"
	"github.com/hyperjump/semsearch/internal/config"
	"github.com/hyperjump/semsearch/internal/dataset"
	"github.com/hyperjump/semsearch/internal/search"
	"github.com/hyperjump/semsearch/internal/server"
	"github.com/hyperjump/semsearch/internal/vectorindex"
	"github.com/hyperjump/semsearch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/semsearch/config.yaml"

// envConfigSource is reported as the config path when no file was found.
const envConfigSource = "(environment)"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file falls back to defaults plus
// PINECONE_* environment variables. Returns the config and where it came from.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg, err := config.FromEnv()
			if err != nil {
				return nil, "", err
			}
			return cfg, envConfigSource, nil
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
	case "run":
		runRun()
	case "load":
		runLoad()
	case "query":
		runQuery()
	case "stats":
		runStats()
	case "import":
		runImport()
	case "serve":
		runServe()
	case "version", "--version", "-v":
		fmt.Printf("semsearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by every command.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, componentSet{encoder: true, snapshot: true, checkpoints: true})
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	if err := runPipeline(ctx, components, cfg, logger, os.Stdout); err != nil {
		logger.Error("run failed", zap.Error(err))
		components.Close()
		os.Exit(1)
	}
}

func runLoad() {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	output := fs.String("output", "text", "output format: text or json")
	resetCheckpoint := fs.Bool("reset-checkpoint", false, "forget the previous run's failed batch")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, componentSet{snapshot: true, checkpoints: true})
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	if *resetCheckpoint {
		if err := components.Checkpoints.Reset(ctx, cfg.Index.Name); err != nil {
			logger.Fatal("failed to reset checkpoint", zap.Error(err))
		}
	}
	idx, err := ensureIndex(ctx, components, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open index", zap.Error(err))
	}
	res, err := loadSnapshot(ctx, components, idx, cfg, logger)
	if res != nil {
		_ = cli.WriteLoadResult(os.Stdout, res, format)
	}
	if err != nil {
		logger.Error("load failed", zap.Error(err))
		components.Close()
		os.Exit(1)
	}
}

// printQueryUsage prints query subcommand usage.
func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: semsearch query [flags] <text>\n\n")
	fmt.Fprintf(fs.Output(), "Text is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
}

// buildQuery joins positional args so multi-word queries work with or without quotes.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after the query text to the front so flag.Parse
// sees them; the flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
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

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	topK := fs.Int("top-k", 0, "number of matches (default from config)")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	text := buildQuery(fs.Args())
	if text == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *topK <= 0 {
		*topK = cfg.Search.TopK
	}

	components, err := initializeComponents(cfg, logger, componentSet{encoder: true})
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	idx, err := components.Client.Index(ctx, cfg.Index.Name)
	if err != nil {
		logger.Fatal("failed to open index", zap.Error(err))
	}
	matches, err := search.NewSearcher(components.Encoder, idx, cfg.Search.MaxTopK, logger).Search(ctx, text, *topK)
	if err != nil {
		logger.Error("query failed", zap.Error(err))
		components.Close()
		os.Exit(1)
	}
	_ = cli.WriteMatches(os.Stdout, text, *topK, matches, format)
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, componentSet{})
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	idx, err := components.Client.Index(ctx, cfg.Index.Name)
	if err != nil {
		logger.Fatal("failed to open index", zap.Error(err))
	}
	stats, err := idx.DescribeStats(ctx)
	if err != nil {
		logger.Fatal("failed to describe index stats", zap.Error(err))
	}
	_ = cli.WriteStats(os.Stdout, cfg.Index.Name, stats, format)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	offset := fs.Int("offset", 0, "rows to skip before importing")
	limit := fs.Int("limit", 0, "maximum rows to import (0 = all)")
	replace := fs.Bool("replace", false, "clear the snapshot before importing")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: semsearch import [flags] <file.jsonl>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		logger.Fatal("failed to open import file", zap.Error(err))
	}
	defer f.Close()
	snap, err := dataset.OpenSnapshot(cfg.Storage.SnapshotPath)
	if err != nil {
		logger.Fatal("failed to open snapshot", zap.Error(err))
	}
	defer snap.Close()

	ctx, cancel := signalContext()
	defer cancel()
	if *replace {
		if err := snap.Reset(ctx); err != nil {
			logger.Fatal("failed to clear snapshot", zap.Error(err))
		}
	}
	n, err := dataset.ImportJSONL(ctx, f, snap, dataset.ImportOptions{
		Offset:    *offset,
		Limit:     *limit,
		Dimension: cfg.Index.Dimension,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("import failed", zap.Int("imported", n), zap.Error(err))
		snap.Close()
		os.Exit(1)
	}
	writeImportSummary(ctx, os.Stdout, logger, snap, cfg.Storage.SnapshotPath, n)
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	srv := server.NewServer(vectorindex.NewMemoryClient(), &cfg.Server, cfg.Storage.IndexDataPath, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("shutdown failed", zap.Error(err))
	}
}

func printUsage() {
	fmt.Println(`semsearch - bulk load a question corpus into a vector index and query it

Usage:
  semsearch run [flags]             Ensure the index, load it when empty, run the demo query
  semsearch load [flags]            Bulk load the snapshot, resuming from the index size
  semsearch query [flags] <text>    Query the index
  semsearch stats [flags]           Show index statistics
  semsearch import [flags] <file>   Build the snapshot from a JSONL file
  semsearch serve [flags]           Run a local in-memory index service
  semsearch version                 Show version
  semsearch help                    Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/semsearch/config.yaml)
  --debug            Enable debug logging

Load Flags:
  --output string        Output format: text or json (default: text)
  --reset-checkpoint     Forget the previous run's failed batch

Query Flags:
  --top-k int        Number of matches (default from config)
  --output string    Output format: text or json (default: text)

Import Flags:
  --offset int       Rows to skip before importing
  --limit int        Maximum rows to import (0 = all)
  --replace          Clear the snapshot before importing

Environment:
  PINECONE_API_KEY, PINECONE_ENVIRONMENT, PINECONE_CONTROLLER_URL override the config file.

Examples:
  semsearch import --offset 240000 --limit 80000 quora.jsonl
  semsearch run
  semsearch query --top-k 3 what countries are favorable to digital nomads?
  PINECONE_CONTROLLER_URL=http://localhost:8080 semsearch load`)
}
