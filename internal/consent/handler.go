package consent

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/rbac"
)

// Handler serves the sharing settings endpoints.
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

// MountRoutes registers sharing routes under /sharing.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sharing", func(r chi.Router) {
		r.With(h.rbac.Require(rbac.CapSharingManage)).Get("/", h.status)
		r.With(h.rbac.Require(rbac.CapSharingManage, "courseID")).Post("/{courseID}/revoke", h.revoke)
		r.With(h.rbac.Require(rbac.CapSharingManage, "courseID")).Post("/{courseID}/reinstate", h.reinstate)
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	rows, err := h.service.Status(r.Context(), p.ID)
	if err != nil {
		httpx.Responder{Logger: h.logger, Debug: h.debug}.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Revoke(r.Context(), p.ID, chi.URLParam(r, "courseID")); err != nil {
		httpx.Responder{Logger: h.logger, Debug: h.debug}.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) reinstate(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Reinstate(r.Context(), p.ID, chi.URLParam(r, "courseID")); err != nil {
		httpx.Responder{Logger: h.logger, Debug: h.debug}.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
