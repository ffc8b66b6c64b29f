package vectorstore

// SearchOption configures search behavior using the functional options
// pattern, as in context.WithTimeout or grpc.Dial.
type SearchOption func(*searchConfig)

type searchConfig struct {
	course string
	lesson *int
	limit  int
}

// WithCourse restricts the search to one course. The name is resolved
// against the catalog first, so partial names ("MCP") are accepted.
func WithCourse(name string) SearchOption {
	return func(c *searchConfig) {
		c.course = name
	}
}

// WithLesson restricts the search to one lesson number.
func WithLesson(n int) SearchOption {
	return func(c *searchConfig) {
		lesson := n
		c.lesson = &lesson
	}
}

// WithLimit overrides the store's default maximum number of matches.
func WithLimit(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.limit = k
		}
	}
}

func buildSearchConfig(defaultLimit int, opts []SearchOption) *searchConfig {
	cfg := &searchConfig{limit: defaultLimit}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
