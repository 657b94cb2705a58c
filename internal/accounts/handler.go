package accounts

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/rbac"
)

// Handler serves the /auth routes.
type Handler struct {
	logger     *slog.Logger
	debug      bool
	service    *Service
	loginLimit int
}

// NewHandler builds a Handler. loginLimit caps login attempts per IP per
// minute; zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, loginLimit int) *Handler {
	return &Handler{logger: logger, service: service, loginLimit: loginLimit}
}

// WithDebug exposes internal error detail in 500 responses.
func (h *Handler) WithDebug(on bool) *Handler {
	h.debug = on
	return h
}

// MountRoutes registers the routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.loginLimit > 0 {
				r.Use(httprate.Limit(h.loginLimit, time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
					}),
				))
			}
			r.Post("/register", h.register)
			r.Post("/login", h.login)
		})
		r.Post("/privacy-ack", h.acknowledge)
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	profile, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, profile)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	token, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, token)
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	if p == nil {
		h.fail(w, rbac.ErrUnauthenticated)
		return
	}
	var req AckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.service.AcknowledgePrivacyNotice(r.Context(), p, req); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.Responder{Logger: h.logger, Debug: h.debug}.Error(w, err)
}
