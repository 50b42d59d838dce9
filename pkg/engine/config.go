package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level chatbot configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Chroma   ChromaConfig   `yaml:"chroma"`
	Context  ContextConfig  `yaml:"context"`
	Chat     ChatConfig     `yaml:"chat"`
	EventLog EventLogConfig `yaml:"event_log"`
	Server   ServerConfig   `yaml:"server"`
}

// ProviderConfig describes the LLM provider endpoint.
type ProviderConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	Model       string  `yaml:"model"`
	EmbedModel  string  `yaml:"embed_model"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ChromaConfig locates the vector store.
type ChromaConfig struct {
	BaseURL    string `yaml:"base_url"`
	Collection string `yaml:"collection"`
}

// ContextConfig bounds the conversation context window.
type ContextConfig struct {
	Budget   int    `yaml:"budget"`   // Token budget (0 = default).
	Encoding string `yaml:"encoding"` // tiktoken encoding name; empty = word-count heuristic.
}

// ChatConfig holds conversation loop settings.
type ChatConfig struct {
	SystemPrompt   string `yaml:"system_prompt"`  // Empty = built-in SCC prompt.
	MaxIterations  int    `yaml:"max_iterations"` // 0 = DefaultMaxIterations.
	QAResults      int    `yaml:"qa_results"`
	ArticleResults int    `yaml:"article_results"`
}

// EventLogConfig locates the SQLite event log.
type EventLogConfig struct {
	Path string `yaml:"path"` // Empty disables event logging.
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"` //nolint:gosec // configuration field, not a hardcoded secret
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so API keys and secrets can live in the environment (e.g.
// loaded from a .env file) rather than in the committed config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("engine: config: provider base_url is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("engine: config: provider api_key is required")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("engine: config: provider model is required")
	}

	if c.Chroma.BaseURL == "" {
		return fmt.Errorf("engine: config: chroma base_url is required")
	}
	if c.Chroma.Collection == "" {
		return fmt.Errorf("engine: config: chroma collection is required")
	}

	if c.Context.Budget < 0 {
		return fmt.Errorf("engine: config: context budget must not be negative")
	}
	if c.Chat.MaxIterations < 0 {
		return fmt.Errorf("engine: config: max_iterations must not be negative")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("engine: config: server port %d out of range", c.Server.Port)
	}

	return nil
}
