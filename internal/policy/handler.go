package policy

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/rbac"
)

// Handler serves the policy register and declaration feedback routes.
type Handler struct {
	logger   *slog.Logger
	debug    bool
	service  *Service
	feedback *FeedbackService
	rbac     rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, feedback *FeedbackService, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, feedback: feedback, rbac: mw}
}

// WithDebug exposes internal error detail in 500 responses.
func (h *Handler) WithDebug(on bool) *Handler {
	h.debug = on
	return h
}

// MountRoutes registers the routes. The feedback route sits beside the
// /declarations subtree mounted by the declarations handler.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/policy", func(r chi.Router) {
		r.Get("/current", h.current)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.CapPolicyWrite))
			r.Post("/upload", h.upload)
			r.Post("/templates", h.addTemplate)
		})
	})
	r.With(h.rbac.Require(rbac.CapDeclarationReadOwn, "declarationID")).
		Get("/declarations/{declarationID}/feedback", h.declarationFeedback)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	if rbac.PrincipalFromContext(r.Context()) == nil {
		h.fail(w, rbac.ErrUnauthenticated)
		return
	}
	d, err := h.service.Current(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	p := rbac.PrincipalFromContext(r.Context())
	d, err := h.service.Upload(r.Context(), p.ID, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) addTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	p := rbac.PrincipalFromContext(r.Context())
	t, err := h.service.AddTemplate(r.Context(), p.ID, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) declarationFeedback(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	out, err := h.feedback.Feedback(r.Context(), p.ID, chi.URLParam(r, "declarationID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.Responder{Logger: h.logger, Debug: h.debug}.Error(w, err)
}
