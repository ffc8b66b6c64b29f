package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/coursechat/coursechat/internal/course"
)

// registryFile is the sidecar holding the full course records (titles,
// links, lessons). The chromem catalog collection only carries embeddings
// for fuzzy name resolution; this file is the authoritative registry used
// for statistics, outlines and citation links.
const registryFile = "catalog.json"

// registry is an in-memory map of course title to Course, mirrored to disk
// when the store is persistent. Callers hold Store.mu.
type registry struct {
	path    string // empty for in-memory stores
	courses map[string]course.Course
}

func loadRegistry(dir string) (*registry, error) {
	r := &registry{courses: make(map[string]course.Course)}
	if dir == "" {
		return r, nil
	}
	r.path = filepath.Join(dir, registryFile)

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading course registry: %w", err)
	}

	var courses []course.Course
	if err := json.Unmarshal(data, &courses); err != nil {
		return nil, fmt.Errorf("parsing course registry: %w", err)
	}
	for _, c := range courses {
		r.courses[c.Title] = c
	}
	return r, nil
}

// put upserts a course record and persists the registry.
func (r *registry) put(c course.Course) error {
	r.courses[c.Title] = c
	return r.save()
}

func (r *registry) clear() error {
	r.courses = make(map[string]course.Course)
	return r.save()
}

func (r *registry) get(title string) (course.Course, bool) {
	c, ok := r.courses[title]
	return c, ok
}

// titles returns all course titles in stable sorted order.
func (r *registry) titles() []string {
	out := make([]string, 0, len(r.courses))
	for t := range r.courses {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// save writes the registry atomically (temp file + rename) so a crash
// mid-write never corrupts the catalog.
func (r *registry) save() error {
	if r.path == "" {
		return nil
	}

	courses := make([]course.Course, 0, len(r.courses))
	for _, t := range r.titles() {
		courses = append(courses, r.courses[t])
	}

	data, err := json.MarshalIndent(courses, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding course registry: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing course registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replacing course registry: %w", err)
	}
	return nil
}
