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

// SearchToolName is the tool name advertised to the model.
const SearchToolName = "search_course_content"

const searchToolDescription = "Search course materials with smart course name matching " +
	"and lesson filtering. " +
	"Use this for questions about specific course content or lesson details. " +
	"The course_name accepts partial matches (e.g. 'MCP' finds " +
	"'Introduction to Model Context Protocol'). " +
	"Returns: matched content excerpts labeled with course and lesson."

// SearchInput is the declarative schema for search_course_content.
type SearchInput struct {
	Query        string `json:"query" jsonschema_description:"What to search for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema_description:"Course title, partial matches accepted (e.g. 'MCP')"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema_description:"Specific lesson number to search within (e.g. 2)"`
}

// Searcher is the read side of the vector store needed by SearchTool.
// Interface defined by the consumer, per io.Reader / http.RoundTripper.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...vectorstore.SearchOption) ([]vectorstore.Match, error)
	CourseLink(title string) string
	LessonLink(title string, lesson int) string
}

// SearchTool performs filtered similarity search over course content and
// records a parallel citation list for the orchestrator to drain.
type SearchTool struct {
	store  Searcher
	logger *slog.Logger

	mu          sync.Mutex
	lastSources []Citation
}

// NewSearchTool creates a SearchTool backed by the given store.
func NewSearchTool(store Searcher, logger *slog.Logger) *SearchTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchTool{store: store, logger: logger}
}

// Name implements Tool.
func (t *SearchTool) Name() string { return SearchToolName }

// Register implements Tool.
func (t *SearchTool) Register(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(g, SearchToolName, searchToolDescription,
		func(ctx *ai.ToolContext, in SearchInput) (string, error) {
			return t.run(ctx, in)
		})
}

// Execute implements Tool.
func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	in, err := decodeArgs[SearchInput](args)
	if err != nil {
		return "", err
	}
	return t.run(ctx, in)
}

func (t *SearchTool) run(ctx context.Context, in SearchInput) (string, error) {
	if strings.TrimSpace(in.Query) == "" {
		// Recoverable: tell the model what went wrong instead of failing.
		return "The 'query' argument is required for search_course_content.", nil
	}

	var opts []vectorstore.SearchOption
	if in.CourseName != "" {
		opts = append(opts, vectorstore.WithCourse(in.CourseName))
	}
	if in.LessonNumber != nil {
		opts = append(opts, vectorstore.WithLesson(*in.LessonNumber))
	}

	matches, err := t.store.Search(ctx, in.Query, opts...)
	if errors.Is(err, vectorstore.ErrCourseNotFound) {
		return fmt.Sprintf("No course found matching '%s'.", in.CourseName), nil
	}
	if err != nil {
		return "", fmt.Errorf("course content search: %w", err)
	}

	if len(matches) == 0 {
		return noResultsMessage(in), nil
	}

	return t.formatMatches(matches), nil
}

// formatMatches renders each match as a labeled block and records the
// parallel citation list, replacing any previous pending batch.
func (t *SearchTool) formatMatches(matches []vectorstore.Match) string {
	blocks := make([]string, 0, len(matches))
	sources := make([]Citation, 0, len(matches))

	for _, m := range matches {
		header := fmt.Sprintf("[%s]", m.CourseTitle)
		link := t.store.CourseLink(m.CourseTitle)
		if m.LessonNumber != nil {
			header = fmt.Sprintf("[%s - Lesson %d]", m.CourseTitle, *m.LessonNumber)
			if lessonLink := t.store.LessonLink(m.CourseTitle, *m.LessonNumber); lessonLink != "" {
				link = lessonLink
			}
		}
		blocks = append(blocks, header+"\n"+m.Text)
		sources = append(sources, Citation{
			CourseTitle:  m.CourseTitle,
			LessonNumber: m.LessonNumber,
			Link:         link,
		})
	}

	t.mu.Lock()
	t.lastSources = sources
	t.mu.Unlock()

	t.logger.Debug("search tool matched", "results", len(matches))
	return strings.Join(blocks, "\n\n")
}

// Sources implements Tool.
func (t *SearchTool) Sources() []Citation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Citation, len(t.lastSources))
	copy(out, t.lastSources)
	return out
}

// ResetSources implements Tool.
func (t *SearchTool) ResetSources() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSources = nil
}

// noResultsMessage echoes the active filters so the model can explain why
// nothing came back.
func noResultsMessage(in SearchInput) string {
	msg := "No relevant content found"
	if in.CourseName != "" {
		msg += fmt.Sprintf(" in course '%s'", in.CourseName)
	}
	if in.LessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *in.LessonNumber)
	}
	return msg + "."
}
