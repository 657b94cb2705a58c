package declarations

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/rbac"
)

// Handler serves declaration, student dashboard and export routes.
type Handler struct {
	logger      *slog.Logger
	debug       bool
	service     *Service
	rbac        rbac.Middleware
	exportLimit int
}

// NewHandler builds a Handler. exportLimit caps exports per student per hour;
// zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware, exportLimit int) *Handler {
	return &Handler{logger: logger, service: service, rbac: mw, exportLimit: exportLimit}
}

// WithDebug exposes internal error detail in 500 responses.
func (h *Handler) WithDebug(on bool) *Handler {
	h.debug = on
	return h
}

// MountRoutes registers the routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/declarations", func(r chi.Router) {
		r.With(h.rbac.Require(rbac.CapDeclarationWrite)).Post("/", h.submit)
		r.With(h.rbac.Require(rbac.CapDeclarationReadOwn)).Get("/", h.list)
		r.With(h.rbac.Require(rbac.CapDeclarationReadOwn, "declarationID")).Get("/{declarationID}", h.get)
	})
	r.With(h.rbac.Require(rbac.CapDashboardReadOwn)).Get("/dashboard/student", h.dashboard)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapDataExportOwn))
		if h.exportLimit > 0 {
			r.Use(httprate.Limit(h.exportLimit, time.Hour, httprate.WithKeyFuncs(principalKey)))
		}
		r.Get("/export", h.export)
	})
}

func principalKey(r *http.Request) (string, error) {
	if p := rbac.PrincipalFromContext(r.Context()); p != nil {
		return p.ID, nil
	}
	return httprate.KeyByIP(r)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	d, err := h.service.Submit(r.Context(), rbac.PrincipalFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	rows, err := h.service.ListOwn(r.Context(), p.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	d, err := h.service.Get(r.Context(), p.ID, chi.URLParam(r, "declarationID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	out, err := h.service.Dashboard(r.Context(), p.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	out, err := h.service.Export(r.Context(), p.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.Attachment(w, "ai-usage-export-"+p.ID+".json", out)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.Responder{Logger: h.logger, Debug: h.debug}.Error(w, err)
}
