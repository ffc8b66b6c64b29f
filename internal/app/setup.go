package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/coursechat/coursechat/internal/config"
	"github.com/coursechat/coursechat/internal/course"
	"github.com/coursechat/coursechat/internal/generator"
	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/rag"
	"github.com/coursechat/coursechat/internal/session"
	"github.com/coursechat/coursechat/internal/tools"
	"github.com/coursechat/coursechat/internal/vectorstore"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	store, err := vectorstore.New(vectorstore.Config{
		Path:       cfg.DataDir,
		MaxResults: cfg.MaxResults,
	}, vectorstore.NewEmbeddingFunc(embedder), logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	a.Store = store

	mgr := tools.NewManager(logger)
	mgr.Register(g, tools.NewSearchTool(store, logger))
	mgr.Register(g, tools.NewOutlineTool(store, logger))
	a.Tools = mgr

	a.Generator = generator.New(g, mgr, generator.Config{
		ModelName:   qualifiedModelName(cfg),
		Temperature: float64(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	}, logger)

	a.Sessions = session.NewStore(cfg.MaxHistory)

	processor := course.NewProcessor(cfg.ChunkSize, cfg.ChunkOverlap, logger)
	a.RAG = rag.New(processor, store, a.Generator, mgr, a.Sessions, logger)

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default) and ollama.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	default: // gemini
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Ollama embedders are keyed by server address (registered in provideGenkit)
		return ollama.Embedder(g, cfg.OllamaHost)
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// qualifiedModelName prefixes the configured model with its Genkit
// provider namespace.
func qualifiedModelName(cfg *config.Config) string {
	switch cfg.Provider {
	case config.ProviderOllama:
		return "ollama/" + cfg.ModelName
	default:
		return "googleai/" + cfg.ModelName
	}
}
