// Package app wires configuration, Genkit, the vector store, tools and
// the RAG system into one application instance.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/coursechat/coursechat/internal/config"
	"github.com/coursechat/coursechat/internal/generator"
	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/rag"
	"github.com/coursechat/coursechat/internal/session"
	"github.com/coursechat/coursechat/internal/tools"
	"github.com/coursechat/coursechat/internal/vectorstore"
)

// App holds all initialized application components.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	Store     *vectorstore.Store
	Tools     *tools.Manager
	Generator *generator.Generator
	Sessions  *session.Store
	RAG       *rag.System
}

// Close releases application resources. Safe to call multiple times.
// The vector store persists on every write and the model clients hold
// no long-lived connections, so there is currently nothing to tear
// down; Close keeps the lifecycle explicit for callers.
func (a *App) Close() error {
	return nil
}
