package config

import (
	"fmt"
	"os"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini:
		// API key is required for all Gemini operations (chat and embedding).
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q, must be one of: gemini, ollama",
			ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 65536 {
		return fmt.Errorf("%w: must be between 1 and 65,536, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.ChunkSize < 100 || c.ChunkSize > 10000 {
		return fmt.Errorf("%w: chunk_size must be between 100 and 10,000, got %d",
			ErrInvalidChunking, c.ChunkSize)
	}

	// Overlap must leave room for new content in every chunk.
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d",
			ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.MaxResults < 1 || c.MaxResults > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidMaxResults, c.MaxResults)
	}

	if c.MaxHistory < 1 || c.MaxHistory > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidMaxHistory, c.MaxHistory)
	}

	return nil
}
