package course

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedHeader indicates a document is missing its course title line.
// Callers skip the document and continue with the rest of the batch.
var ErrMalformedHeader = errors.New("malformed course document header")

// Header line prefixes. Matching is case-insensitive.
const (
	titlePrefix      = "course title:"
	linkPrefix       = "course link:"
	instructorPrefix = "course instructor:"
	lessonLinkPrefix = "lesson link:"
)

// lessonMarkerRe matches lesson headings such as "Lesson 2: Tool Calling".
// Lines that do not match are treated as body content, never as a marker.
var lessonMarkerRe = regexp.MustCompile(`(?i)^lesson\s+(\d+)\s*:\s*(.*)$`)

// Processor parses course documents and slices lesson text into
// overlapping chunks sized for embedding.
type Processor struct {
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// NewProcessor creates a Processor with the given character budgets.
// chunkSize caps each chunk; chunkOverlap is the tail of each chunk
// re-included at the start of the next one.
func NewProcessor(chunkSize, chunkOverlap int, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// ParseFile reads and parses one course document from disk.
func (p *Processor) ParseFile(path string) (Course, []Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return Course{}, nil, fmt.Errorf("opening course document: %w", err)
	}
	defer f.Close()
	return p.Parse(f, path)
}

// Parse reads a course document and produces the Course record plus its
// ordered content chunks. The expected format is a three-line header
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//
// followed by lesson blocks introduced by "Lesson N: <title>" markers,
// each optionally followed by a "Lesson Link: <url>" line.
//
// A missing title line is a parse error (ErrMalformedHeader); missing link
// or instructor lines are tolerated. Content before the first lesson marker
// is chunked without a lesson number.
func (p *Processor) Parse(r io.Reader, name string) (Course, []Chunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Course{}, nil, fmt.Errorf("reading %s: %w", name, err)
	}

	crs, bodyStart, err := parseHeader(lines, name)
	if err != nil {
		return Course{}, nil, err
	}

	chunks := p.chunkBody(&crs, lines[bodyStart:])

	p.logger.Debug("parsed course document",
		"source", name,
		"course", crs.Title,
		"lessons", len(crs.Lessons),
		"chunks", len(chunks))

	return crs, chunks, nil
}

// parseHeader consumes the header lines and returns the partially filled
// Course and the index of the first body line.
func parseHeader(lines []string, name string) (Course, int, error) {
	var crs Course
	i := 0

	// Skip leading blank lines.
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}

	// Title line is required and must come first.
	if i >= len(lines) || !hasFold(lines[i], titlePrefix) {
		return Course{}, 0, fmt.Errorf("%w: %s: first line must be %q",
			ErrMalformedHeader, name, "Course Title:")
	}
	crs.Title = strings.TrimSpace(lines[i][len(titlePrefix):])
	if crs.Title == "" {
		return Course{}, 0, fmt.Errorf("%w: %s: empty course title", ErrMalformedHeader, name)
	}
	i++

	// Link and instructor lines are optional but must precede any content.
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "":
			i++
		case hasFold(line, linkPrefix):
			crs.Link = strings.TrimSpace(line[len(linkPrefix):])
			i++
		case hasFold(line, instructorPrefix):
			crs.Instructor = strings.TrimSpace(line[len(instructorPrefix):])
			i++
		default:
			return crs, i, nil
		}
	}
	return crs, i, nil
}

// chunkBody walks the body lines, splits them into lesson blocks and emits
// chunks with course-wide position indexes. Only the first chunk of each
// lesson carries the "Lesson N content:" prefix; later chunks of the same
// lesson are stored bare. Preserved as-is from the original ingestion
// behavior so re-indexing existing stores stays stable.
func (p *Processor) chunkBody(crs *Course, lines []string) []Chunk {
	var chunks []Chunk
	index := 0

	var lessonNum *int
	var buf []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if text == "" {
			return
		}
		for i, piece := range p.chunkText(text) {
			if i == 0 && lessonNum != nil {
				piece = fmt.Sprintf("Lesson %d content: %s", *lessonNum, piece)
			}
			chunks = append(chunks, Chunk{
				CourseTitle:  crs.Title,
				LessonNumber: lessonNum,
				Index:        index,
				Text:         piece,
			})
			index++
		}
	}

	for i := 0; i < len(lines); i++ {
		m := lessonMarkerRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			buf = append(buf, lines[i])
			continue
		}

		flush()

		num, err := strconv.Atoi(m[1])
		if err != nil {
			// Digits only per the regexp; overflow is the only failure mode.
			buf = append(buf, lines[i])
			continue
		}
		lesson := Lesson{Number: num, Title: strings.TrimSpace(m[2])}

		// Optional link line directly after the marker.
		if i+1 < len(lines) && hasFold(strings.TrimSpace(lines[i+1]), lessonLinkPrefix) {
			lesson.Link = strings.TrimSpace(strings.TrimSpace(lines[i+1])[len(lessonLinkPrefix):])
			i++
		}

		crs.Lessons = append(crs.Lessons, lesson)
		n := num
		lessonNum = &n
	}
	flush()

	return chunks
}

// chunkText splits text into sentence-aligned pieces of at most chunkSize
// characters. When a chunk fills up, trailing sentences whose combined
// length fits the overlap budget are carried into the next chunk.
func (p *Processor) chunkText(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var pieces []string
	var current []string
	currentLen := 0

	join := func(ss []string) string { return strings.Join(ss, " ") }

	for _, sentence := range sentences {
		addLen := len(sentence)
		if currentLen > 0 {
			addLen++ // joining space
		}

		if currentLen > 0 && currentLen+addLen > p.chunkSize {
			pieces = append(pieces, join(current))

			// Carry trailing sentences covering the overlap budget.
			var carry []string
			carryLen := 0
			for i := len(current) - 1; i >= 0 && p.chunkOverlap > 0; i-- {
				l := len(current[i])
				if carryLen > 0 {
					l++
				}
				if carryLen+l > p.chunkOverlap {
					break
				}
				carry = append([]string{current[i]}, carry...)
				carryLen += l
			}
			current = carry
			currentLen = carryLen

			if currentLen > 0 {
				addLen = len(sentence) + 1
			} else {
				addLen = len(sentence)
			}
		}

		current = append(current, sentence)
		currentLen += addLen
	}

	if len(current) > 0 {
		pieces = append(pieces, join(current))
	}

	return pieces
}

// hasFold reports whether s starts with prefix, ignoring case.
func hasFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
