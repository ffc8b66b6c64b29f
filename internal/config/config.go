// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (COURSECHAT_* runtime override)
//  2. Config file (~/.coursechat/config.yaml or ./config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model, temperature, output cap, embedder model
//   - Ingestion: chunk size, chunk overlap, course documents directory
//   - Retrieval: maximum search results
//   - Sessions: conversation history window
//   - Server: HTTP listen address
//
// Error Handling: sentinel errors allow errors.Is() checks; wrap with
// fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidChunking indicates chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidMaxResults indicates the search result cap is out of range.
	ErrInvalidMaxResults = errors.New("invalid max results")

	// ErrInvalidMaxHistory indicates the history window is out of range.
	ErrInvalidMaxHistory = errors.New("invalid max history")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

const (
	// DefaultModelName is the default chat model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default Gemini embedder model.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultChunkSize is the character budget per content chunk.
	DefaultChunkSize = 800

	// DefaultChunkOverlap is the character budget carried between
	// consecutive chunks of the same lesson.
	DefaultChunkOverlap = 100

	// DefaultMaxResults caps similarity search matches per query.
	DefaultMaxResults = 5

	// DefaultMaxHistory is the number of conversation turns remembered
	// per session (each turn is a user/assistant message pair).
	DefaultMaxHistory = 2
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"` // "gemini" (default) or "ollama"
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedding configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Document ingestion configuration
	DocsDir      string `mapstructure:"docs_dir" json:"docs_dir"`
	ChunkSize    int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval configuration
	MaxResults int `mapstructure:"max_results" json:"max_results"`

	// Session configuration
	MaxHistory int `mapstructure:"max_history" json:"max_history"`

	// Storage configuration: directory for the persistent vector store.
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	// Server configuration
	Addr string `mapstructure:"addr" json:"addr"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".coursechat")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)

	v.SetEnvPrefix("COURSECHAT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Fail-fast: invalid configuration never reaches the rest of the app.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("max_tokens", 800)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	// Ollama defaults
	v.SetDefault("ollama_host", "http://localhost:11434")

	// Ingestion defaults
	v.SetDefault("docs_dir", "docs")
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)

	// Retrieval defaults
	v.SetDefault("max_results", DefaultMaxResults)

	// Session defaults
	v.SetDefault("max_history", DefaultMaxHistory)

	// Storage defaults
	v.SetDefault("data_dir", "./chroma_db")

	// Server defaults
	v.SetDefault("addr", "127.0.0.1:8000")
}
