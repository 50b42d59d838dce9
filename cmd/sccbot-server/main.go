// Command sccbot-server serves the SCC help-desk chatbot over HTTP:
// JWT-backed sessions, a chat endpoint with optional SSE streaming, and an
// SQLite event log of every conversation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hpc-help/sccbot/pkg/contextwindow"
	"github.com/hpc-help/sccbot/pkg/engine"
	"github.com/hpc-help/sccbot/pkg/eventlog"
	"github.com/hpc-help/sccbot/pkg/httpserver"
	"github.com/hpc-help/sccbot/pkg/providers/openai"
	"github.com/hpc-help/sccbot/pkg/retrieval"
	"github.com/hpc-help/sccbot/pkg/session"
	"github.com/hpc-help/sccbot/pkg/tokens"
	"github.com/hpc-help/sccbot/pkg/tools/toolbox"
	"github.com/hpc-help/sccbot/pkg/vectordb"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sccbot-server [flags]\n\nHTTP server for the SCC help-desk chatbot.\n\nFlags:\n")
		flag.PrintDefaults()
	}

	configPath := flag.String("config", "sccbot.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	flag.Parse()

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Server.SessionSecret == "" {
		return fmt.Errorf("server session_secret is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	events, closeEvents, err := openEvents(cfg.EventLog, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	eng, err := buildEngine(cfg, events, logger)
	if err != nil {
		return err
	}

	est, err := buildEstimator(cfg.Context)
	if err != nil {
		return err
	}

	handler := httpserver.New(httpserver.Config{
		Runner:    eng,
		Sessions:  session.New(cfg.Server.SessionSecret, 0),
		Events:    events,
		Estimator: est,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// openEvents opens the SQLite event log, or a no-op recorder when no path
// is configured.
func openEvents(cfg engine.EventLogConfig, logger *slog.Logger) (eventlog.Recorder, func(), error) {
	if cfg.Path == "" {
		logger.Warn("event logging disabled, no event_log.path configured")
		return eventlog.Nop{}, func() {}, nil
	}

	store, err := eventlog.Open(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// buildEngine assembles the conversation engine, wiring retrievals into the
// event log with sources only so full documents stay out of the log.
func buildEngine(cfg engine.Config, events eventlog.Recorder, logger *slog.Logger) (*engine.Engine, error) {
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
	tool.OnRetrieve = func(ctx context.Context, query string, res retrieval.Result) {
		chatID, ok := httpserver.ChatIDFromContext(ctx)
		if !ok {
			return
		}
		if err := eventlog.Retrieval(ctx, events, chatID, query, sourcesByKind(res)); err != nil {
			logger.Warn("event log write failed", "error", err)
		}
	}

	est, err := buildEstimator(cfg.Context)
	if err != nil {
		return nil, err
	}

	return engine.New(
		adapter,
		toolbox.New(tool.Definition()),
		contextwindow.New(est, cfg.Context.Budget),
		engine.Options{
			SystemPrompt:  cfg.Chat.SystemPrompt,
			MaxIterations: cfg.Chat.MaxIterations,
			Logger:        logger,
		},
	), nil
}

// sourcesByKind reduces a retrieval result to document sources per kind.
func sourcesByKind(res retrieval.Result) map[string][]string {
	out := make(map[string][]string, 2)
	for _, d := range res.QADocuments {
		out["qa"] = append(out["qa"], d.Source)
	}
	for _, d := range res.ArticleDocuments {
		out["articles"] = append(out["articles"], d.Source)
	}
	return out
}

// buildEstimator picks the configured tiktoken encoding, falling back to
// the word-count heuristic when none is configured.
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
