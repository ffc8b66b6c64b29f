// Package vectorstore wraps the embedded chromem-go vector database behind
// two logical collections:
//
//   - course_catalog: one entry per course, embedded from the course title.
//     Used only to resolve fuzzy course names to exact titles.
//   - course_content: chunked lesson text with course/lesson metadata.
//     Used for similarity search.
//
// A JSON sidecar registry keeps the full course records (lessons, links) so
// statistics and outlines never need a vector query.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/coursechat/coursechat/internal/course"
)

// ErrCourseNotFound indicates a course name matched nothing in the catalog.
// This is an expected condition: the search tool turns it into explanatory
// text for the model rather than failing the query.
var ErrCourseNotFound = errors.New("course not found")

// Collection names inside the chromem database.
const (
	catalogCollection = "course_catalog"
	contentCollection = "course_content"
)

// Metadata keys on content documents.
const (
	metaCourseTitle  = "course_title"
	metaLessonNumber = "lesson_number"
	metaChunkIndex   = "chunk_index"
)

// Match is one similarity-search hit from the content collection.
type Match struct {
	Text         string
	CourseTitle  string
	LessonNumber *int // nil for course-level content
	Similarity   float32
}

// Outline is a course summary assembled from the registry.
type Outline struct {
	Title   string
	Link    string
	Lessons []course.Lesson
}

// Config holds Store construction parameters.
type Config struct {
	// Path is the directory for on-disk persistence. Empty means a pure
	// in-memory store (tests).
	Path string

	// MaxResults caps similarity search matches per query.
	MaxResults int
}

// Store manages the dual-collection vector database.
//
// Store is safe for concurrent use. Ingestion takes an exclusive lock so a
// re-added course is replaced, never duplicated; searches only rely on
// chromem's internal locking.
type Store struct {
	mu       sync.Mutex // serializes ingestion and registry writes
	db       *chromem.DB
	catalog  *chromem.Collection
	content  *chromem.Collection
	embed    chromem.EmbeddingFunc
	registry *registry

	maxResults int
	logger     *slog.Logger
}

// New creates a Store. With a non-empty cfg.Path the database and the
// course registry persist across restarts; otherwise everything lives in
// process memory.
func New(cfg Config, embed chromem.EmbeddingFunc, logger *slog.Logger) (*Store, error) {
	if embed == nil {
		return nil, errors.New("embedding function is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}

	var db *chromem.DB
	var err error
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("opening vector database at %q: %w", cfg.Path, err)
		}
	}

	s := &Store{
		db:         db,
		embed:      embed,
		maxResults: cfg.MaxResults,
		logger:     logger,
	}

	if err := s.openCollections(); err != nil {
		return nil, err
	}

	s.registry, err = loadRegistry(cfg.Path)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) openCollections() error {
	var err error
	s.catalog, err = s.db.GetOrCreateCollection(catalogCollection, nil, s.embed)
	if err != nil {
		return fmt.Errorf("opening catalog collection: %w", err)
	}
	s.content, err = s.db.GetOrCreateCollection(contentCollection, nil, s.embed)
	if err != nil {
		return fmt.Errorf("opening content collection: %w", err)
	}
	return nil
}

// AddCourse upserts one catalog entry and replaces all content chunks for
// the course. Re-adding a title overwrites the prior entry; the course
// count never grows on re-ingestion.
func (s *Store) AddCourse(ctx context.Context, crs course.Course, chunks []course.Chunk) error {
	if crs.Title == "" {
		return errors.New("course title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop any previous chunks for this title before re-adding. chromem
	// upserts documents by ID, but a shorter re-ingested course must not
	// leave stale high-index chunks behind.
	if s.content.Count() > 0 {
		if err := s.content.Delete(ctx, map[string]string{metaCourseTitle: crs.Title}, nil); err != nil {
			return fmt.Errorf("removing stale chunks for %q: %w", crs.Title, err)
		}
	}

	// Catalog entry: the document ID is the exact title, the embedded
	// content is the title text used for fuzzy resolution.
	if err := s.catalog.AddDocument(ctx, chromem.Document{
		ID:      crs.Title,
		Content: crs.Title,
	}); err != nil {
		return fmt.Errorf("upserting catalog entry for %q: %w", crs.Title, err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		metadata := map[string]string{
			metaCourseTitle: crs.Title,
			metaChunkIndex:  strconv.Itoa(ch.Index),
		}
		if ch.LessonNumber != nil {
			metadata[metaLessonNumber] = strconv.Itoa(*ch.LessonNumber)
		}
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("%s#%d", crs.Title, ch.Index),
			Content:  ch.Text,
			Metadata: metadata,
		})
	}
	if len(docs) > 0 {
		if err := s.content.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("adding chunks for %q: %w", crs.Title, err)
		}
	}

	if err := s.registry.put(crs); err != nil {
		return err
	}

	s.logger.Debug("course ingested", "course", crs.Title, "chunks", len(docs))
	return nil
}

// ResolveCourseName resolves free-form course text ("MCP", "the intro
// course") to an exact ingested title via nearest-neighbor lookup on the
// catalog. Best match wins; there is no similarity threshold. Returns
// ErrCourseNotFound when the catalog is empty or nothing matches.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	if s.catalog.Count() == 0 {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}

	results, err := s.catalog.Query(ctx, name, 1, nil, nil)
	if err != nil {
		return "", fmt.Errorf("resolving course name %q: %w", name, err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}
	return results[0].ID, nil
}

// Search performs a filtered similarity search over the content collection.
// When a course filter is present the name is resolved first; resolution
// failure fails the whole search with ErrCourseNotFound. Matches come back
// ordered by descending similarity, capped at the configured maximum.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Match, error) {
	cfg := buildSearchConfig(s.maxResults, opts)

	var where map[string]string
	if cfg.course != "" {
		title, err := s.ResolveCourseName(ctx, cfg.course)
		if err != nil {
			return nil, err
		}
		where = map[string]string{metaCourseTitle: title}
	}
	if cfg.lesson != nil {
		if where == nil {
			where = make(map[string]string, 1)
		}
		where[metaLessonNumber] = strconv.Itoa(*cfg.lesson)
	}

	// chromem rejects nResults larger than the collection size.
	n := cfg.limit
	if count := s.content.Count(); n > count {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := s.content.Query(ctx, query, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("searching course content: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		m := Match{
			Text:        res.Content,
			CourseTitle: res.Metadata[metaCourseTitle],
			Similarity:  res.Similarity,
		}
		if raw, ok := res.Metadata[metaLessonNumber]; ok {
			if num, convErr := strconv.Atoi(raw); convErr == nil {
				m.LessonNumber = &num
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Outline returns the course record for a (possibly fuzzy) course name.
func (s *Store) Outline(ctx context.Context, name string) (Outline, error) {
	title, err := s.ResolveCourseName(ctx, name)
	if err != nil {
		return Outline{}, err
	}

	s.mu.Lock()
	crs, ok := s.registry.get(title)
	s.mu.Unlock()
	if !ok {
		// Catalog and registry are written together in AddCourse; a miss
		// here means the data directory was tampered with.
		return Outline{}, fmt.Errorf("%w: %q missing from registry", ErrCourseNotFound, title)
	}

	return Outline{Title: crs.Title, Link: crs.Link, Lessons: crs.Lessons}, nil
}

// CourseLink returns the link for an exact course title, if known.
func (s *Store) CourseLink(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if crs, ok := s.registry.get(title); ok {
		return crs.Link
	}
	return ""
}

// LessonLink returns the link for a lesson of an exact course title.
func (s *Store) LessonLink(title string, lesson int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	crs, ok := s.registry.get(title)
	if !ok {
		return ""
	}
	for _, l := range crs.Lessons {
		if l.Number == lesson {
			return l.Link
		}
	}
	return ""
}

// HasCourse reports whether an exact title has been ingested.
func (s *Store) HasCourse(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.registry.get(title)
	return ok
}

// Stats returns the ingested course count and sorted titles.
func (s *Store) Stats() (int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	titles := s.registry.titles()
	return len(titles), titles
}

// Clear wipes both collections and the registry. Used by the ingestion
// "clear existing data" mode before a full rebuild.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(catalogCollection); err != nil {
		return fmt.Errorf("dropping catalog collection: %w", err)
	}
	if err := s.db.DeleteCollection(contentCollection); err != nil {
		return fmt.Errorf("dropping content collection: %w", err)
	}
	if err := s.openCollections(); err != nil {
		return err
	}
	if err := s.registry.clear(); err != nil {
		return err
	}

	s.logger.Info("vector store cleared")
	return nil
}
