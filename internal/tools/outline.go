package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/coursechat/coursechat/internal/vectorstore"
)

// OutlineToolName is the tool name advertised to the model.
const OutlineToolName = "get_course_outline"

const outlineToolDescription = "Get the full outline of a course: title, link and the " +
	"complete numbered lesson list. " +
	"Use this for questions about course structure ('what does the MCP course cover?') " +
	"rather than specific content. Course name accepts partial matches."

// OutlineInput is the declarative schema for get_course_outline.
type OutlineInput struct {
	CourseName string `json:"course_name" jsonschema_description:"Course title, partial matches accepted (e.g. 'MCP')"`
}

// Outliner is the catalog side of the vector store needed by OutlineTool.
type Outliner interface {
	Outline(ctx context.Context, name string) (vectorstore.Outline, error)
}

// OutlineTool answers course-structure questions from the catalog and
// cites the course itself.
type OutlineTool struct {
	store  Outliner
	logger *slog.Logger

	mu          sync.Mutex
	lastSources []Citation
}

// NewOutlineTool creates an OutlineTool backed by the given store.
func NewOutlineTool(store Outliner, logger *slog.Logger) *OutlineTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutlineTool{store: store, logger: logger}
}

// Name implements Tool.
func (t *OutlineTool) Name() string { return OutlineToolName }

// Register implements Tool.
func (t *OutlineTool) Register(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(g, OutlineToolName, outlineToolDescription,
		func(ctx *ai.ToolContext, in OutlineInput) (string, error) {
			return t.run(ctx, in)
		})
}

// Execute implements Tool.
func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	in, err := decodeArgs[OutlineInput](args)
	if err != nil {
		return "", err
	}
	return t.run(ctx, in)
}

func (t *OutlineTool) run(ctx context.Context, in OutlineInput) (string, error) {
	if strings.TrimSpace(in.CourseName) == "" {
		return "The 'course_name' argument is required for get_course_outline.", nil
	}

	outline, err := t.store.Outline(ctx, in.CourseName)
	if errors.Is(err, vectorstore.ErrCourseNotFound) {
		return fmt.Sprintf("No course found matching '%s'.", in.CourseName), nil
	}
	if err != nil {
		return "", fmt.Errorf("course outline lookup: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Course: " + outline.Title + "\n")
	if outline.Link != "" {
		sb.WriteString("Link: " + outline.Link + "\n")
	}
	sb.WriteString(fmt.Sprintf("Lessons (%d):\n", len(outline.Lessons)))
	for _, lesson := range outline.Lessons {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", lesson.Number, lesson.Title))
	}

	t.mu.Lock()
	t.lastSources = []Citation{{CourseTitle: outline.Title, Link: outline.Link}}
	t.mu.Unlock()

	return sb.String(), nil
}

// Sources implements Tool.
func (t *OutlineTool) Sources() []Citation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Citation, len(t.lastSources))
	copy(out, t.lastSources)
	return out
}

// ResetSources implements Tool.
func (t *OutlineTool) ResetSources() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSources = nil
}
