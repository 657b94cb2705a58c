package enrolment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/rbac"
)

// Handler serves assignment listings.
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

// MountRoutes registers assignment listing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.CapAssignmentReadOwn)).Get("/assignments", h.studentAssignments)
	r.With(h.rbac.Require(rbac.CapAssignmentReadCourse, "courseID")).Get("/instructor/{courseID}/assignments", h.courseAssignments)
}

func (h *Handler) studentAssignments(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	rows, err := h.service.StudentAssignments(r.Context(), p.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": rows})
}

func (h *Handler) courseAssignments(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	courseID := chi.URLParam(r, "courseID")
	rows, err := h.service.CourseAssignments(r.Context(), p.ID, courseID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"courseId": courseID, "assignments": rows})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.Responder{Logger: h.logger, Debug: h.debug}.Error(w, err)
}
