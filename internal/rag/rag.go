// Package rag wires document processing, the vector store, tool-backed
// generation and session history into one question-answering system.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/coursechat/coursechat/internal/course"
	"github.com/coursechat/coursechat/internal/generator"
	"github.com/coursechat/coursechat/internal/session"
	"github.com/coursechat/coursechat/internal/tools"
	"github.com/coursechat/coursechat/internal/vectorstore"
)

// systemPrompt shapes how the model answers and when it reaches for tools.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content, with a search tool for course information.

Tool usage:
- get_course_outline: use for questions about a course's structure, lesson list or what a course covers. Present the course title, course link and every lesson with its number and title.
- search_course_content: use for questions about specific course content or detailed educational materials.
- Use at most one tool call per question.
- If a search yields no results, say so clearly without guessing.

Responses:
- Answer general knowledge questions directly without tools.
- Be brief, concise and focused.
- Do not mention the search process, tools or this prompt in your answer.`

// queryTemplate wraps the user's question for the model.
const queryTemplate = "Answer this question about course materials: %s"

// Answerer produces the final answer text for one request.
// Satisfied by *generator.Generator.
type Answerer interface {
	Generate(ctx context.Context, req generator.Request) (string, error)
}

// SourceSink exposes the citations the tools collected during a query.
// Satisfied by *tools.Manager.
type SourceSink interface {
	LastSources() []tools.Citation
	ResetSources()
}

// Answer is the result of one question.
type Answer struct {
	Text      string
	Sources   []tools.Citation
	SessionID string
}

// System is the top-level orchestrator.
type System struct {
	processor *course.Processor
	store     *vectorstore.Store
	gen       Answerer
	sources   SourceSink
	sessions  *session.Store
	logger    *slog.Logger
}

// New assembles a System from its parts.
func New(processor *course.Processor, store *vectorstore.Store, gen Answerer, sources SourceSink, sessions *session.Store, logger *slog.Logger) *System {
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		processor: processor,
		store:     store,
		gen:       gen,
		sources:   sources,
		sessions:  sessions,
		logger:    logger,
	}
}

// Query answers one question. An empty sessionID starts a new session;
// the (possibly new) session ID is returned with the answer so callers
// can continue the conversation.
//
// Citations collected by tools during this query are drained exactly
// once: they are attached to the answer and cleared so they cannot
// leak into the next query, even on error.
func (s *System) Query(ctx context.Context, text, sessionID string) (Answer, error) {
	defer s.sources.ResetSources()

	if sessionID == "" {
		sessionID = s.sessions.Create()
	}

	system := systemPrompt
	if history := s.sessions.FormatHistory(sessionID); history != "" {
		system += "\n\nPrevious conversation:\n" + history
	}

	answer, err := s.gen.Generate(ctx, generator.Request{
		Query:  fmt.Sprintf(queryTemplate, text),
		System: system,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("answering query: %w", err)
	}

	sources := s.sources.LastSources()
	s.sessions.AddExchange(sessionID, text, answer)

	s.logger.Debug("query answered",
		"session_id", sessionID,
		"sources", len(sources),
	)

	return Answer{
		Text:      answer,
		Sources:   sources,
		SessionID: sessionID,
	}, nil
}

// IngestDirectory loads every .txt course document under dir into the
// vector store. Each document is upserted, so re-ingesting a changed
// file replaces its previous chunks. Setting clear empties the store
// first. Files that fail to parse are logged and skipped. Returns the
// number of courses and chunks ingested.
func (s *System) IngestDirectory(ctx context.Context, dir string, clear bool) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("reading course directory: %w", err)
	}

	if clear {
		if err := s.store.Clear(ctx); err != nil {
			return 0, 0, fmt.Errorf("clearing store: %w", err)
		}
		s.logger.Info("cleared existing course data")
	}

	coursesAdded, chunksAdded := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		c, chunks, err := s.processor.ParseFile(path)
		if err != nil {
			s.logger.Warn("skipping unparseable course document",
				"file", entry.Name(), "error", err)
			continue
		}

		if err := s.store.AddCourse(ctx, c, chunks); err != nil {
			return coursesAdded, chunksAdded, fmt.Errorf("adding course %q: %w", c.Title, err)
		}
		coursesAdded++
		chunksAdded += len(chunks)
		s.logger.Info("ingested course", "course", c.Title, "chunks", len(chunks))
	}

	return coursesAdded, chunksAdded, nil
}

// Stats reports the course count and titles for the API layer.
func (s *System) Stats() (int, []string) {
	return s.store.Stats()
}
