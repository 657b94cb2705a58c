package guidance

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/rbac"
)

// Handler serves guidance routes.
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

// MountRoutes registers the routes.
func (h *Handler) MountRoutes(r chi.Router) {
	const path = "/assignments/{assignmentID}/guidance"
	r.With(h.rbac.Require(rbac.CapGuidanceRead, "assignmentID")).Get(path, h.get)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapGuidanceWrite, "assignmentID"))
		r.Post(path, h.create)
		r.Put(path, h.update)
		r.Post(path+"/lock", h.lock)
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.Get(r.Context(), chi.URLParam(r, "assignmentID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	p := rbac.PrincipalFromContext(r.Context())
	g, err := h.service.Create(r.Context(), p.ID, chi.URLParam(r, "assignmentID"), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, g)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	p := rbac.PrincipalFromContext(r.Context())
	g, err := h.service.Update(r.Context(), p.ID, chi.URLParam(r, "assignmentID"), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) lock(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	g, err := h.service.Lock(r.Context(), p.ID, chi.URLParam(r, "assignmentID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.Responder{Logger: h.logger, Debug: h.debug}.Error(w, err)
}
