package vectorstore

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursechat/coursechat/internal/course"
	"github.com/coursechat/coursechat/internal/log"
)

// testEmbeddingFunc is a deterministic bag-of-words embedder: each token
// is hashed into a bucket. Texts sharing vocabulary get a high cosine
// similarity, which makes fuzzy course-name resolution behave like the
// real embedder without network access.
func testEmbeddingFunc() chromem.EmbeddingFunc {
	const dim = 128
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dim)
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			tok = strings.Trim(tok, ".,!?:;\"'()")
			if tok == "" {
				continue
			}
			h := fnv.New32a()
			h.Write([]byte(tok))
			vec[h.Sum32()%dim]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		if norm == 0 {
			vec[0] = 1
			norm = 1
		}
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
		return vec, nil
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{MaxResults: 5}, testEmbeddingFunc(), log.NewNop())
	require.NoError(t, err)
	return s
}

func lessonPtr(n int) *int { return &n }

func mcpCourse() (course.Course, []course.Chunk) {
	crs := course.Course{
		Title:      "Introduction to Model Context Protocol",
		Link:       "https://example.com/mcp",
		Instructor: "Ada Lovelace",
		Lessons: []course.Lesson{
			{Number: 1, Title: "Protocol Basics", Link: "https://example.com/mcp/1"},
			{Number: 2, Title: "Tool Calling", Link: "https://example.com/mcp/2"},
		},
	}
	chunks := []course.Chunk{
		{CourseTitle: crs.Title, LessonNumber: lessonPtr(1), Index: 0,
			Text: "Lesson 1 content: The protocol defines messages between clients and servers."},
		{CourseTitle: crs.Title, LessonNumber: lessonPtr(2), Index: 1,
			Text: "Lesson 2 content: Tool calling lets the model invoke named capabilities."},
		{CourseTitle: crs.Title, LessonNumber: lessonPtr(2), Index: 2,
			Text: "Each tool advertises a schema describing its arguments."},
	}
	return crs, chunks
}

func retrievalCourse() (course.Course, []course.Chunk) {
	crs := course.Course{
		Title: "Advanced Retrieval Systems",
		Link:  "https://example.com/retrieval",
		Lessons: []course.Lesson{
			{Number: 1, Title: "Indexing"},
		},
	}
	chunks := []course.Chunk{
		{CourseTitle: crs.Title, LessonNumber: lessonPtr(1), Index: 0,
			Text: "Lesson 1 content: Inverted indexes map terms to postings lists."},
	}
	return crs, chunks
}

func TestResolveCourseName_ExactTitleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	crs, chunks := mcpCourse()
	require.NoError(t, s.AddCourse(ctx, crs, chunks))

	for range 3 {
		title, err := s.ResolveCourseName(ctx, crs.Title)
		require.NoError(t, err)
		assert.Equal(t, crs.Title, title)
	}
}

func TestResolveCourseName_PartialName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mcp, mcpChunks := mcpCourse()
	ret, retChunks := retrievalCourse()
	require.NoError(t, s.AddCourse(ctx, mcp, mcpChunks))
	require.NoError(t, s.AddCourse(ctx, ret, retChunks))

	title, err := s.ResolveCourseName(ctx, "Model Context Protocol")
	require.NoError(t, err)
	assert.Equal(t, mcp.Title, title)

	title, err = s.ResolveCourseName(ctx, "Retrieval Systems")
	require.NoError(t, err)
	assert.Equal(t, ret.Title, title)
}

func TestResolveCourseName_EmptyCatalog(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ResolveCourseName(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestSearch_CombinedFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mcp, mcpChunks := mcpCourse()
	ret, retChunks := retrievalCourse()
	require.NoError(t, s.AddCourse(ctx, mcp, mcpChunks))
	require.NoError(t, s.AddCourse(ctx, ret, retChunks))

	matches, err := s.Search(ctx, "tool calling capabilities",
		WithCourse("Model Context Protocol"), WithLesson(2))
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Equal(t, mcp.Title, m.CourseTitle)
		require.NotNil(t, m.LessonNumber)
		assert.Equal(t, 2, *m.LessonNumber)
	}
}

func TestSearch_NoFilterSpansAllCourses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mcp, mcpChunks := mcpCourse()
	ret, retChunks := retrievalCourse()
	require.NoError(t, s.AddCourse(ctx, mcp, mcpChunks))
	require.NoError(t, s.AddCourse(ctx, ret, retChunks))

	matches, err := s.Search(ctx, "indexes protocol lesson content")
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, m := range matches {
		seen[m.CourseTitle] = true
	}
	assert.True(t, seen[mcp.Title], "expected a match from the MCP course")
	assert.True(t, seen[ret.Title], "expected a match from the retrieval course")
}

func TestSearch_UnresolvedCourseFailsWholeSearch(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Search(context.Background(), "query", WithCourse("nope"))
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestSearch_EmptyStoreReturnsNoMatches(t *testing.T) {
	s := newTestStore(t)

	matches, err := s.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearch_LimitCapsResults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mcp, mcpChunks := mcpCourse()
	require.NoError(t, s.AddCourse(ctx, mcp, mcpChunks))

	matches, err := s.Search(ctx, "tool protocol schema", WithLimit(1))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestAddCourse_ReingestReplacesNotDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	crs, chunks := mcpCourse()
	require.NoError(t, s.AddCourse(ctx, crs, chunks))

	before, _ := s.Stats()

	// Re-ingest with fewer, different chunks.
	replacement := []course.Chunk{
		{CourseTitle: crs.Title, LessonNumber: lessonPtr(1), Index: 0,
			Text: "Lesson 1 content: Completely rewritten material about transports."},
	}
	require.NoError(t, s.AddCourse(ctx, crs, replacement))

	after, titles := s.Stats()
	assert.Equal(t, before, after, "re-ingestion must not change the course count")
	assert.Equal(t, []string{crs.Title}, titles)

	// Stale chunks from the first ingestion are gone.
	matches, err := s.Search(ctx, "schema advertises arguments", WithCourse(crs.Title))
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotContains(t, m.Text, "advertises a schema")
	}
}

func TestOutlineAndLinks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	crs, chunks := mcpCourse()
	require.NoError(t, s.AddCourse(ctx, crs, chunks))

	outline, err := s.Outline(ctx, "Model Context Protocol")
	require.NoError(t, err)
	assert.Equal(t, crs.Title, outline.Title)
	assert.Equal(t, crs.Link, outline.Link)
	assert.Equal(t, crs.Lessons, outline.Lessons)

	assert.Equal(t, "https://example.com/mcp", s.CourseLink(crs.Title))
	assert.Equal(t, "https://example.com/mcp/2", s.LessonLink(crs.Title, 2))
	assert.Equal(t, "", s.LessonLink(crs.Title, 99))
	assert.True(t, s.HasCourse(crs.Title))
	assert.False(t, s.HasCourse("Unknown"))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	crs, chunks := mcpCourse()
	require.NoError(t, s.AddCourse(ctx, crs, chunks))
	require.NoError(t, s.Clear(ctx))

	count, titles := s.Stats()
	assert.Zero(t, count)
	assert.Empty(t, titles)

	_, err := s.ResolveCourseName(ctx, crs.Title)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestPersistence_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(Config{Path: dir, MaxResults: 5}, testEmbeddingFunc(), log.NewNop())
	require.NoError(t, err)

	crs, chunks := mcpCourse()
	require.NoError(t, s.AddCourse(ctx, crs, chunks))

	reopened, err := New(Config{Path: dir, MaxResults: 5}, testEmbeddingFunc(), log.NewNop())
	require.NoError(t, err)

	count, titles := reopened.Stats()
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{crs.Title}, titles)

	title, err := reopened.ResolveCourseName(ctx, crs.Title)
	require.NoError(t, err)
	assert.Equal(t, crs.Title, title)

	matches, err := reopened.Search(ctx, "tool calling", WithCourse(crs.Title))
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}
