package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aiusage/disclosure/internal/platform/httpx"
)

// Handler exposes the caller's own identity and capabilities.
type Handler struct{}

// NewHandler builds a Handler.
func NewHandler() *Handler { return &Handler{} }

// MountRoutes registers identity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
}

type meResponse struct {
	ID                string       `json:"id"`
	Role              Role         `json:"role"`
	Capabilities      []Capability `json:"capabilities"`
	PrivacyAckVersion int          `json:"privacyAckVersion"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	if p == nil {
		httpx.RespondError(w, ErrUnauthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{
		ID:                p.ID,
		Role:              p.Role,
		Capabilities:      p.Capabilities.Slice(),
		PrivacyAckVersion: p.PrivacyAckVersion,
	})
}
