// Package tools provides the capabilities advertised to the language model
// and the manager that dispatches tool invocations by name.
//
// Each tool carries a declarative schema (registered with Genkit so it can
// be sent alongside a model call), execution logic, and citation state: the
// sources backing the most recent execution, held until the orchestrator
// drains them after the final answer is produced.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// ErrUnknownTool indicates the model requested a tool that was never
// registered. This is a programming or configuration error and fails the
// whole query.
var ErrUnknownTool = errors.New("unknown tool")

// Citation references the course material backing part of an answer.
type Citation struct {
	CourseTitle  string `json:"course"`
	LessonNumber *int   `json:"lesson,omitempty"`
	Link         string `json:"link,omitempty"`
}

// Tool is a named capability the model may invoke.
//
// Expected, recoverable conditions (no results, unresolved course name)
// are returned as ordinary result text so the model can react to them;
// only infrastructure failures are returned as errors.
type Tool interface {
	// Name returns the unique identifier advertised to the model.
	Name() string

	// Register defines the tool with Genkit and returns the handle whose
	// schema is included in model calls.
	Register(g *genkit.Genkit) ai.Tool

	// Execute runs the tool with arguments decoded from a model
	// invocation and returns the result text.
	Execute(ctx context.Context, args map[string]any) (string, error)

	// Sources returns the citations recorded by the most recent
	// execution. At most one batch is pending at a time.
	Sources() []Citation

	// ResetSources clears the pending citation batch.
	ResetSources()
}

// Manager is the registry mapping tool names to tool instances. It
// dispatches invocation requests from the model and aggregates citation
// state across all registered tools.
type Manager struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
	refs  []ai.ToolRef
	log   *slog.Logger
}

// NewManager creates an empty tool registry.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		tools: make(map[string]Tool),
		log:   logger,
	}
}

// Register adds a tool keyed by its declared name and defines it with
// Genkit. On a name collision the last registration wins.
func (m *Manager) Register(g *genkit.Genkit, t Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := t.Name()
	if _, exists := m.tools[name]; exists {
		m.log.Warn("tool name collision, last registration wins", "tool", name)
		// Refresh the advertised handle in place so Definitions matches
		// what Execute will dispatch.
		for i, n := range m.order {
			if n == name {
				m.refs[i] = t.Register(g)
				break
			}
		}
	} else {
		m.order = append(m.order, name)
		m.refs = append(m.refs, t.Register(g))
	}
	m.tools[name] = t
}

// Definitions returns the Genkit tool handles for all registered tools,
// in registration order, for inclusion in a model call.
func (m *Manager) Definitions() []ai.ToolRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	refs := make([]ai.ToolRef, len(m.refs))
	copy(refs, m.refs)
	return refs
}

// Execute dispatches an invocation to the matching tool.
func (m *Manager) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.RLock()
	t, ok := m.tools[name]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	m.log.Debug("executing tool", "tool", name)
	return t.Execute(ctx, args)
}

// LastSources returns the pending citations across all registered tools,
// in registration order. Call exactly once per completed query, after the
// final answer is produced, then ResetSources before the next query.
func (m *Manager) LastSources() []Citation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sources []Citation
	for _, name := range m.order {
		sources = append(sources, m.tools[name].Sources()...)
	}
	return sources
}

// ResetSources clears citation state on every registered tool so sources
// never leak into the next query.
func (m *Manager) ResetSources() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tools {
		t.ResetSources()
	}
}

// decodeArgs converts the loosely typed argument map from a model
// invocation into a typed input struct via a JSON round-trip.
func decodeArgs[In any](args map[string]any) (In, error) {
	var in In
	raw, err := json.Marshal(args)
	if err != nil {
		return in, fmt.Errorf("encoding tool arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return in, nil
}
