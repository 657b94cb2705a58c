package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aiusage/disclosure/internal/accounts"
	"github.com/aiusage/disclosure/internal/aggregate"
	"github.com/aiusage/disclosure/internal/consent"
	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/enrolment"
	"github.com/aiusage/disclosure/internal/guidance"
	"github.com/aiusage/disclosure/internal/observability"
	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/policy"
	"github.com/aiusage/disclosure/internal/rbac"
	"github.com/aiusage/disclosure/jobs"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	RBACMiddleware      rbac.Middleware
	MeHandler           *rbac.Handler
	AccountsHandler     *accounts.Handler
	EnrolmentHandler    *enrolment.Handler
	DeclarationsHandler *declarations.Handler
	GuidanceHandler     *guidance.Handler
	ConsentHandler      *consent.Handler
	AggregateHandler    *aggregate.Handler
	PolicyHandler       *policy.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
	Database            Pinger
}

// NewRouter constructs the chi.Router with the API mounted under /api.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Database != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Database.Ping(ctx); err != nil {
				params.Logger.Warn("healthz database ping", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(params.RBACMiddleware.Authenticate)
		if params.AccountsHandler != nil {
			params.AccountsHandler.MountRoutes(r)
		}
		if params.MeHandler != nil {
			params.MeHandler.MountRoutes(r)
		}
		if params.EnrolmentHandler != nil {
			params.EnrolmentHandler.MountRoutes(r)
		}
		if params.DeclarationsHandler != nil {
			params.DeclarationsHandler.MountRoutes(r)
		}
		if params.GuidanceHandler != nil {
			params.GuidanceHandler.MountRoutes(r)
		}
		if params.ConsentHandler != nil {
			params.ConsentHandler.MountRoutes(r)
		}
		if params.AggregateHandler != nil {
			params.AggregateHandler.MountRoutes(r)
		}
		if params.PolicyHandler != nil {
			params.PolicyHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
