// Package course defines the course data model and the document processor
// that turns raw course transcripts into ingestible content chunks.
package course

// Course represents one ingested course. The title is the unique identifier:
// re-ingesting a document with the same title replaces the prior entry.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson is a numbered unit within a course. Number is the ordering key.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Chunk is a bounded slice of course text, the unit of semantic search.
// LessonNumber is nil for content that precedes the first lesson marker.
// (CourseTitle, Index) is unique and stable within the store.
type Chunk struct {
	CourseTitle  string
	LessonNumber *int
	Index        int
	Text         string
}
