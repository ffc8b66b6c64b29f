package api

import (
	"net/http"

	"github.com/coursechat/coursechat/internal/log"
)

// CoursesHandler reports course catalog analytics.
type CoursesHandler struct {
	svc    QueryService
	logger log.Logger
}

// NewCoursesHandler creates a new courses handler.
func NewCoursesHandler(svc QueryService, logger log.Logger) *CoursesHandler {
	return &CoursesHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers course routes on the given mux.
func (h *CoursesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/courses", h.handleCourses)
}

// CoursesResponse is the response body for GET /api/courses.
type CoursesResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

func (h *CoursesHandler) handleCourses(w http.ResponseWriter, _ *http.Request) {
	total, titles := h.svc.Stats()
	if titles == nil {
		titles = []string{}
	}
	writeJSON(w, http.StatusOK, CoursesResponse{
		TotalCourses: total,
		CourseTitles: titles,
	})
}
