package aggregate

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/rbac"
)

// Handler serves the instructor and faculty dashboards.
type Handler struct {
	logger  *slog.Logger
	debug   bool
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: mw}
}

// WithDebug exposes internal error detail in 500 responses.
func (h *Handler) WithDebug(on bool) *Handler {
	h.debug = on
	return h
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapDashboardReadCourseAgg))
		r.Get("/dashboard/instructor-courses", h.instructorCourses)
	})
	r.With(h.rbac.Require(rbac.CapDashboardReadCourseAgg, "courseID")).Get("/dashboard/instructor/{courseID}", h.instructor)
	r.With(h.rbac.Require(rbac.CapDashboardReadFacultyAgg)).Get("/dashboard/faculty", h.faculty)
}

type dashboardResponse struct {
	Suppressed bool     `json:"suppressed"`
	CourseID   string   `json:"courseId,omitempty"`
	FacultyID  string   `json:"facultyId,omitempty"`
	Message    string   `json:"message,omitempty"`
	Data       []Bucket `json:"data,omitempty"`
}

func newDashboardResponse(res Result, scope Scope) dashboardResponse {
	if res.Suppressed {
		return dashboardResponse{Suppressed: true, Message: res.Message}
	}
	out := dashboardResponse{Data: res.Buckets}
	if out.Data == nil {
		out.Data = []Bucket{}
	}
	switch scope.Kind {
	case ScopeCourse:
		out.CourseID = scope.ID
	case ScopeFaculty:
		out.FacultyID = scope.ID
	}
	return out
}

func (h *Handler) instructorCourses(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	courses, err := h.service.Courses(r.Context(), p.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"courses": courses})
}

func (h *Handler) instructor(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	opts, err := parseOptions(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	courseID := chi.URLParam(r, "courseID")
	res, err := h.service.Course(r.Context(), p.ID, courseID, opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDashboardResponse(res, Scope{Kind: ScopeCourse, ID: courseID}))
}

func (h *Handler) faculty(w http.ResponseWriter, r *http.Request) {
	facultyID := strings.TrimSpace(r.URL.Query().Get("facultyId"))
	if facultyID == "" {
		h.fail(w, httpx.NewValidationError(map[string]string{"facultyId": "facultyId query parameter is required"}))
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	res, err := h.service.Faculty(r.Context(), facultyID, opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDashboardResponse(res, Scope{Kind: ScopeFaculty, ID: facultyID}))
}

func parseOptions(r *http.Request) (Options, error) {
	var opts Options
	q := r.URL.Query()
	if raw := q.Get("byMonth"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Options{}, httpx.NewValidationError(map[string]string{"byMonth": "must be true or false"})
		}
		opts.ByMonth = v
	}
	if raw := q.Get("bucketMinimum"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return Options{}, httpx.NewValidationError(map[string]string{"bucketMinimum": "must be a non-negative integer"})
		}
		opts.BucketMinimum = v
	}
	return opts, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.Responder{Logger: h.logger, Debug: h.debug}.Error(w, err)
}
