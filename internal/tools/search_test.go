package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/vectorstore"
)

type fakeSearcher struct {
	matches  []vectorstore.Match
	err      error
	lastOpts []vectorstore.SearchOption
}

func (f *fakeSearcher) Search(_ context.Context, _ string, opts ...vectorstore.SearchOption) ([]vectorstore.Match, error) {
	f.lastOpts = opts
	return f.matches, f.err
}

func (f *fakeSearcher) CourseLink(string) string { return "https://example.com/course" }

func (f *fakeSearcher) LessonLink(_ string, lesson int) string {
	if lesson == 2 {
		return "https://example.com/lesson/2"
	}
	return ""
}

func intPtr(n int) *int { return &n }

func TestSearchTool_FormatsMatchesAndRecordsCitations(t *testing.T) {
	store := &fakeSearcher{matches: []vectorstore.Match{
		{CourseTitle: "Introduction to Model Context Protocol", LessonNumber: intPtr(2), Text: "Tools extend the model."},
		{CourseTitle: "Introduction to Model Context Protocol", Text: "Course overview text."},
	}}
	tool := NewSearchTool(store, log.NewNop())

	out, err := tool.Execute(context.Background(), map[string]any{"query": "tools"})
	require.NoError(t, err)

	assert.Contains(t, out, "[Introduction to Model Context Protocol - Lesson 2]\nTools extend the model.")
	assert.Contains(t, out, "[Introduction to Model Context Protocol]\nCourse overview text.")

	sources := tool.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, "https://example.com/lesson/2", sources[0].Link)
	require.NotNil(t, sources[0].LessonNumber)
	assert.Equal(t, 2, *sources[0].LessonNumber)
	// Lesson link falls back to the course link when absent.
	assert.Equal(t, "https://example.com/course", sources[1].Link)
	assert.Nil(t, sources[1].LessonNumber)
}

func TestSearchTool_SourcesReplacedPerCall(t *testing.T) {
	store := &fakeSearcher{matches: []vectorstore.Match{
		{CourseTitle: "A", Text: "first"},
	}}
	tool := NewSearchTool(store, log.NewNop())

	_, err := tool.Execute(context.Background(), map[string]any{"query": "x"})
	require.NoError(t, err)

	store.matches = []vectorstore.Match{{CourseTitle: "B", Text: "second"}}
	_, err = tool.Execute(context.Background(), map[string]any{"query": "y"})
	require.NoError(t, err)

	sources := tool.Sources()
	require.Len(t, sources, 1)
	assert.Equal(t, "B", sources[0].CourseTitle)
}

func TestSearchTool_NoResultsEchoesFilters(t *testing.T) {
	tool := NewSearchTool(&fakeSearcher{}, log.NewNop())

	out, err := tool.Execute(context.Background(), map[string]any{
		"query":         "quantum",
		"course_name":   "MCP",
		"lesson_number": float64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "No relevant content found in course 'MCP' in lesson 3.", out)
	assert.Empty(t, tool.Sources())
}

func TestSearchTool_CourseNotFoundIsToolText(t *testing.T) {
	store := &fakeSearcher{err: vectorstore.ErrCourseNotFound}
	tool := NewSearchTool(store, log.NewNop())

	out, err := tool.Execute(context.Background(), map[string]any{
		"query":       "anything",
		"course_name": "Nonexistent",
	})
	require.NoError(t, err)
	assert.Equal(t, "No course found matching 'Nonexistent'.", out)
}

func TestSearchTool_InfrastructureErrorPropagates(t *testing.T) {
	store := &fakeSearcher{err: errors.New("db unavailable")}
	tool := NewSearchTool(store, log.NewNop())

	_, err := tool.Execute(context.Background(), map[string]any{"query": "anything"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db unavailable")
}

func TestSearchTool_EmptyQueryIsRecoverable(t *testing.T) {
	tool := NewSearchTool(&fakeSearcher{}, log.NewNop())

	out, err := tool.Execute(context.Background(), map[string]any{"query": "   "})
	require.NoError(t, err)
	assert.Contains(t, out, "'query' argument is required")
}

func TestSearchTool_PassesFilters(t *testing.T) {
	store := &fakeSearcher{}
	tool := NewSearchTool(store, log.NewNop())

	_, err := tool.Execute(context.Background(), map[string]any{
		"query":         "tools",
		"course_name":   "MCP",
		"lesson_number": float64(2),
	})
	require.NoError(t, err)
	assert.Len(t, store.lastOpts, 2)
}
