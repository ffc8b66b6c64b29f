package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursechat/coursechat/internal/course"
	"github.com/coursechat/coursechat/internal/generator"
	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/session"
	"github.com/coursechat/coursechat/internal/testutil"
	"github.com/coursechat/coursechat/internal/tools"
	"github.com/coursechat/coursechat/internal/vectorstore"
)

const sampleDoc = `Course Title: Introduction to Model Context Protocol
Course Link: https://example.com/mcp
Course Instructor: Ada Lovelace

Lesson 0: Welcome
Lesson Link: https://example.com/mcp/0
Welcome to the course. This lesson introduces the big picture.

Lesson 1: Core Concepts
Lesson Link: https://example.com/mcp/1
MCP defines how clients talk to servers. Tools are advertised with schemas.

Lesson 2: Tool Calling
Lesson Link: https://example.com/mcp/2
The model requests a tool by name. The host executes it and returns results.
`

// bagOfWordsEmbedding hashes tokens into buckets so texts sharing
// vocabulary get high cosine similarity without network access.
func bagOfWordsEmbedding() chromem.EmbeddingFunc {
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

type testSystem struct {
	system   *System
	mock     *testutil.MockLLM
	sessions *session.Store
	store    *vectorstore.Store
	docsDir  string
}

// newTestSystem wires a complete System against the mock model and an
// in-memory store, with one sample course already on disk.
func newTestSystem(t *testing.T) *testSystem {
	t.Helper()

	docsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "mcp.txt"), []byte(sampleDoc), 0o644))

	store, err := vectorstore.New(vectorstore.Config{MaxResults: 5}, bagOfWordsEmbedding(), log.NewNop())
	require.NoError(t, err)

	g := genkit.Init(context.Background())
	mock := testutil.NewMockLLM("general knowledge answer")
	mock.RegisterModel(g)

	mgr := tools.NewManager(log.NewNop())
	mgr.Register(g, tools.NewSearchTool(store, log.NewNop()))
	mgr.Register(g, tools.NewOutlineTool(store, log.NewNop()))

	gen := generator.New(g, mgr, generator.Config{
		ModelName: "mock/test-model",
		MaxTokens: 1024,
	}, log.NewNop())

	sessions := session.NewStore(2)
	processor := course.NewProcessor(800, 100, log.NewNop())
	sys := New(processor, store, gen, mgr, sessions, log.NewNop())

	return &testSystem{
		system:   sys,
		mock:     mock,
		sessions: sessions,
		store:    store,
		docsDir:  docsDir,
	}
}

func TestSystem_IngestDirectory(t *testing.T) {
	ts := newTestSystem(t)
	ctx := context.Background()

	courses, chunks, err := ts.system.IngestDirectory(ctx, ts.docsDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, courses)
	assert.Greater(t, chunks, 0)

	total, titles := ts.system.Stats()
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"Introduction to Model Context Protocol"}, titles)
}

func TestSystem_IngestDirectoryUpserts(t *testing.T) {
	ts := newTestSystem(t)
	ctx := context.Background()

	_, _, err := ts.system.IngestDirectory(ctx, ts.docsDir, false)
	require.NoError(t, err)

	courses, chunks, err := ts.system.IngestDirectory(ctx, ts.docsDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, courses)
	assert.Greater(t, chunks, 0)

	// Upserting the same document must not duplicate the course.
	total, titles := ts.system.Stats()
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"Introduction to Model Context Protocol"}, titles)
}

func TestSystem_IngestDirectoryReindexesChangedDocument(t *testing.T) {
	ts := newTestSystem(t)
	ctx := context.Background()

	_, _, err := ts.system.IngestDirectory(ctx, ts.docsDir, false)
	require.NoError(t, err)

	updated := strings.Replace(sampleDoc,
		"The model requests a tool by name. The host executes it and returns results.",
		"Updated material: sampling parameters control tool retries.", 1)
	require.NoError(t, os.WriteFile(filepath.Join(ts.docsDir, "mcp.txt"), []byte(updated), 0o644))

	courses, _, err := ts.system.IngestDirectory(ctx, ts.docsDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, courses)

	matches, err := ts.store.Search(ctx, "sampling parameters control tool retries",
		vectorstore.WithCourse("Introduction to Model Context Protocol"),
		vectorstore.WithLesson(2))
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0].Text, "sampling parameters control tool retries")

	for _, m := range matches {
		assert.NotContains(t, m.Text, "The host executes it and returns results")
	}
}

func TestSystem_IngestDirectoryClearRebuilds(t *testing.T) {
	ts := newTestSystem(t)
	ctx := context.Background()

	_, _, err := ts.system.IngestDirectory(ctx, ts.docsDir, false)
	require.NoError(t, err)

	courses, _, err := ts.system.IngestDirectory(ctx, ts.docsDir, true)
	require.NoError(t, err)
	assert.Equal(t, 1, courses)

	total, _ := ts.system.Stats()
	assert.Equal(t, 1, total)
}

func TestSystem_IngestDirectorySkipsMalformed(t *testing.T) {
	ts := newTestSystem(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(
		filepath.Join(ts.docsDir, "broken.txt"),
		[]byte("no header here, just prose.\n"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(ts.docsDir, "notes.pdf"),
		[]byte("%PDF-1.4"), 0o644))

	courses, _, err := ts.system.IngestDirectory(ctx, ts.docsDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, courses)
}

func TestSystem_QueryWithToolSearch(t *testing.T) {
	ts := newTestSystem(t)
	ctx := context.Background()
	_, _, err := ts.system.IngestDirectory(ctx, ts.docsDir, false)
	require.NoError(t, err)

	lesson := 2
	ts.mock.AddToolResponse("lesson 2",
		[]*ai.ToolRequest{{
			Name: tools.SearchToolName,
			Ref:  "call-1",
			Input: map[string]any{
				"query":         "tool calling",
				"course_name":   "MCP",
				"lesson_number": float64(lesson),
			},
		}},
		"Lesson 2 explains how the model requests tools by name.")

	answer, err := ts.system.Query(ctx, "What is covered in lesson 2 of the MCP course?", "")
	require.NoError(t, err)

	assert.Equal(t, "Lesson 2 explains how the model requests tools by name.", answer.Text)
	assert.NotEmpty(t, answer.SessionID)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "Introduction to Model Context Protocol", answer.Sources[0].CourseTitle)
	require.NotNil(t, answer.Sources[0].LessonNumber)
	assert.Equal(t, 2, *answer.Sources[0].LessonNumber)
	assert.Equal(t, "https://example.com/mcp/2", answer.Sources[0].Link)
}

func TestSystem_SourcesDrainedBetweenQueries(t *testing.T) {
	ts := newTestSystem(t)
	ctx := context.Background()
	_, _, err := ts.system.IngestDirectory(ctx, ts.docsDir, false)
	require.NoError(t, err)

	ts.mock.AddToolResponse("lesson 2",
		[]*ai.ToolRequest{{
			Name:  tools.SearchToolName,
			Ref:   "call-1",
			Input: map[string]any{"query": "tool calling", "course_name": "MCP"},
		}},
		"Tool answer.")
	ts.mock.AddResponse("what is 2+2", "4")

	first, err := ts.system.Query(ctx, "lesson 2 of MCP?", "")
	require.NoError(t, err)
	require.NotEmpty(t, first.Sources)

	// A direct answer must not inherit the previous query's citations.
	second, err := ts.system.Query(ctx, "What is 2+2?", "")
	require.NoError(t, err)
	assert.Equal(t, "4", second.Text)
	assert.Empty(t, second.Sources)
}

func TestSystem_SessionContinuity(t *testing.T) {
	ts := newTestSystem(t)
	ctx := context.Background()
	ts.mock.AddResponse("course materials", "An answer.")

	first, err := ts.system.Query(ctx, "Tell me about courses", "")
	require.NoError(t, err)

	second, err := ts.system.Query(ctx, "And more detail?", first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	transcript := ts.sessions.FormatHistory(first.SessionID)
	assert.Contains(t, transcript, "User: Tell me about courses")
	assert.Contains(t, transcript, "User: And more detail?")
}

func TestSystem_QueryWrapsUserQuestion(t *testing.T) {
	ts := newTestSystem(t)
	ctx := context.Background()
	ts.mock.AddResponse("course materials", "ok")

	_, err := ts.system.Query(ctx, "What is MCP?", "")
	require.NoError(t, err)

	calls := ts.mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Answer this question about course materials: What is MCP?", calls[0].UserMessage)
}

// Failure path uses small fakes so the generator error is controllable.

type failingAnswerer struct{ err error }

func (f failingAnswerer) Generate(context.Context, generator.Request) (string, error) {
	return "", f.err
}

type recordingSink struct {
	sources []tools.Citation
	resets  int
}

func (r *recordingSink) LastSources() []tools.Citation { return r.sources }
func (r *recordingSink) ResetSources()                 { r.resets++ }

func TestSystem_QueryErrorStillResetsSources(t *testing.T) {
	sink := &recordingSink{sources: []tools.Citation{{CourseTitle: "stale"}}}
	sys := New(nil, nil, failingAnswerer{err: errors.New("model down")}, sink, session.NewStore(2), log.NewNop())

	_, err := sys.Query(context.Background(), "anything", "")
	require.Error(t, err)
	assert.Equal(t, 1, sink.resets)
}
