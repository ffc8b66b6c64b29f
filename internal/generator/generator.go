// Package generator drives the two-pass model conversation: a first
// pass where the model may request tools, and a follow-up pass that
// turns tool results into the final answer.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// fallbackAnswer is returned when the model produces no text at all.
const fallbackAnswer = "I wasn't able to produce an answer. Please try rephrasing your question."

// Dispatcher executes tool requests by name. Satisfied by tools.Manager.
type Dispatcher interface {
	Definitions() []ai.ToolRef
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// Config holds the generation parameters.
type Config struct {
	// ModelName is the fully qualified Genkit model name,
	// e.g. "googleai/gemini-2.5-flash" or "ollama/qwen3".
	ModelName string
	// Temperature for both passes. Zero keeps answers reproducible.
	Temperature float64
	// MaxTokens caps the response length.
	MaxTokens int
	// RateLimiter throttles model calls. Defaults to 10 req/s, burst 30.
	RateLimiter *rate.Limiter
}

// Generator produces answers through at most one round of tool use.
type Generator struct {
	g         *genkit.Genkit
	modelName string
	genConfig *genai.GenerateContentConfig
	tools     Dispatcher
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New creates a Generator. The Dispatcher may be nil, in which case no
// tools are offered and every query is answered in a single pass.
func New(g *genkit.Genkit, tools Dispatcher, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}
	return &Generator{
		g:         g,
		modelName: cfg.ModelName,
		genConfig: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(cfg.Temperature)),
			MaxOutputTokens: int32(cfg.MaxTokens),
		},
		tools:   tools,
		limiter: rl,
		logger:  logger,
	}
}

// Request is one question to answer.
type Request struct {
	// Query is the user's question, passed verbatim as the user message.
	Query string
	// System carries the system instructions, including any formatted
	// conversation history.
	System string
}

// Generate runs the two-pass protocol and returns the final answer text.
//
// The first pass offers the registered tools and asks the model to
// return tool requests instead of executing them. If none come back,
// that response is the answer. Otherwise each request is executed in
// order, the results are appended as a tool message, and a second pass
// without any tool definitions produces the answer.
func (gen *Generator) Generate(ctx context.Context, req Request) (string, error) {
	messages := []*ai.Message{ai.NewUserMessage(ai.NewTextPart(req.Query))}

	opts := []ai.GenerateOption{
		ai.WithModelName(gen.modelName),
		ai.WithMessages(messages...),
		ai.WithConfig(gen.genConfig),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}

	defs := gen.definitions()
	if len(defs) > 0 {
		opts = append(opts,
			ai.WithTools(defs...),
			ai.WithReturnToolRequests(true),
		)
	}

	if err := gen.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}
	resp, err := genkit.Generate(ctx, gen.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}

	toolRequests := resp.ToolRequests()
	if len(toolRequests) == 0 {
		return answerText(resp), nil
	}

	responseParts, err := gen.dispatch(ctx, toolRequests)
	if err != nil {
		return "", err
	}

	// Replay the whole exchange and let the model answer from the
	// tool results. No tool definitions on this pass.
	messages = append(messages, resp.Message, ai.NewMessage(ai.RoleTool, nil, responseParts...))

	finalOpts := []ai.GenerateOption{
		ai.WithModelName(gen.modelName),
		ai.WithMessages(messages...),
		ai.WithConfig(gen.genConfig),
	}
	if req.System != "" {
		finalOpts = append(finalOpts, ai.WithSystem(req.System))
	}

	if err := gen.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}
	final, err := genkit.Generate(ctx, gen.g, finalOpts...)
	if err != nil {
		return "", fmt.Errorf("generating final response: %w", err)
	}

	return answerText(final), nil
}

// dispatch executes the requested tools sequentially, preserving
// request order and the Ref correlation the provider expects.
func (gen *Generator) dispatch(ctx context.Context, requests []*ai.ToolRequest) ([]*ai.Part, error) {
	parts := make([]*ai.Part, 0, len(requests))
	for _, tr := range requests {
		args, err := requestArgs(tr.Input)
		if err != nil {
			return nil, fmt.Errorf("tool %q arguments: %w", tr.Name, err)
		}

		gen.logger.Debug("executing tool request", "tool", tr.Name)
		output, err := gen.tools.Execute(ctx, tr.Name, args)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", tr.Name, err)
		}

		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   tr.Name,
			Ref:    tr.Ref,
			Output: output,
		}))
	}
	return parts, nil
}

func (gen *Generator) definitions() []ai.ToolRef {
	if gen.tools == nil {
		return nil
	}
	return gen.tools.Definitions()
}

// requestArgs normalizes a tool request's input to the map form the
// dispatcher expects.
func requestArgs(input any) (map[string]any, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var args map[string]any
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func answerText(resp *ai.ModelResponse) string {
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return fallbackAnswer
	}
	return text
}
