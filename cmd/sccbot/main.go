// Command sccbot is an interactive terminal chatbot for the university's
// Shared Computing Cluster help desk. It answers questions by retrieving
// SCC documentation from a vector store through an agentic tool-calling
// loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hpc-help/sccbot/pkg/contextwindow"
	"github.com/hpc-help/sccbot/pkg/engine"
	"github.com/hpc-help/sccbot/pkg/providers/openai"
	"github.com/hpc-help/sccbot/pkg/retrieval"
	"github.com/hpc-help/sccbot/pkg/tokens"
	"github.com/hpc-help/sccbot/pkg/tools/toolbox"
	"github.com/hpc-help/sccbot/pkg/vectordb"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sccbot [flags]\n\nInteractive SCC help-desk chatbot.\n\nFlags:\n")
		flag.PrintDefaults()
	}

	configPath := flag.String("config", "sccbot.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	plain := flag.Bool("plain", false, "disable markdown rendering of responses")
	verbose := flag.Bool("verbose", false, "log provider and tool activity to stderr")
	flag.Parse()

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(*configPath, *plain, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, plain, verbose bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	eng, adapter, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}

	repl := newREPL(eng, os.Stdin, os.Stdout, plain)
	repl.usage = adapter
	return repl.run(ctx)
}

// buildEngine assembles the conversation engine from configuration: the
// OpenAI-compatible adapter, the Chroma-backed retrieval tool, the token
// estimator, and the context window trimmer. The adapter is returned too so
// the REPL can report session token totals.
func buildEngine(cfg engine.Config, logger *slog.Logger) (*engine.Engine, *openai.Adapter, error) {
	adapter := openai.New(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Model)
	if cfg.Provider.EmbedModel != "" {
		adapter.EmbedModel = cfg.Provider.EmbedModel
	}
	if cfg.Provider.Temperature > 0 {
		adapter.Temperature = cfg.Provider.Temperature
	}
	if cfg.Provider.TopP > 0 {
		adapter.TopP = cfg.Provider.TopP
	}
	if cfg.Provider.MaxTokens > 0 {
		adapter.MaxTokens = cfg.Provider.MaxTokens
	}

	store := vectordb.NewChroma(cfg.Chroma.BaseURL, cfg.Chroma.Collection, adapter, nil)
	tool := retrieval.New(store, retrieval.Config{
		QAResults:      cfg.Chat.QAResults,
		ArticleResults: cfg.Chat.ArticleResults,
	})

	est, err := buildEstimator(cfg.Context)
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(
		adapter,
		toolbox.New(tool.Definition()),
		contextwindow.New(est, cfg.Context.Budget),
		engine.Options{
			SystemPrompt:  cfg.Chat.SystemPrompt,
			MaxIterations: cfg.Chat.MaxIterations,
			Logger:        logger,
		},
	)
	return eng, adapter, nil
}

// buildEstimator picks the configured tiktoken encoding, falling back to the
// word-count heuristic when none is configured.
func buildEstimator(cfg engine.ContextConfig) (tokens.Estimator, error) {
	if cfg.Encoding == "" {
		return tokens.Heuristic{}, nil
	}
	est, err := tokens.NewTiktoken(cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", cfg.Encoding, err)
	}
	return est, nil
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
