package app

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aiusage/disclosure/internal/accounts"
	"github.com/aiusage/disclosure/internal/aggregate"
	"github.com/aiusage/disclosure/internal/audit"
	"github.com/aiusage/disclosure/internal/consent"
	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/enrolment"
	"github.com/aiusage/disclosure/internal/guidance"
	jobmetrics "github.com/aiusage/disclosure/internal/jobs"
	"github.com/aiusage/disclosure/internal/observability"
	"github.com/aiusage/disclosure/internal/policy"
	"github.com/aiusage/disclosure/internal/rbac"
	"github.com/aiusage/disclosure/internal/retention"
)

type bumper interface {
	Bump(ctx context.Context) error
}

// Container holds the services shared by the API server and the worker.
type Container struct {
	Recorder       *audit.Recorder
	Gate           *rbac.Gate
	RBAC           rbac.Middleware
	Accounts       *accounts.Service
	Enrolment      *enrolment.Service
	Consent        *consent.Service
	Declarations   *declarations.Service
	Guidance       *guidance.Service
	Policy         *policy.Service
	Feedback       *policy.FeedbackService
	AggregateCache *aggregate.Cache
	Aggregate      *aggregate.Service
	Reaper         *retention.Reaper
	JobMetrics     *jobmetrics.Metrics
}

// NewContainer wires repositories and services over pool and redisClient.
// metrics may be nil.
func NewContainer(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *slog.Logger, metrics *observability.Metrics) *Container {
	window := retention.Window{Days: cfg.RetentionDays}

	recorderOpts := []audit.RecorderOption{audit.WithWriteTimeout(cfg.AuditWriteTimeout)}
	aggregateOpts := []aggregate.ServiceOption{}
	var jobMetrics *jobmetrics.Metrics
	if metrics != nil {
		recorderOpts = append(recorderOpts, audit.WithObserver(metrics))
		aggregateOpts = append(aggregateOpts, aggregate.WithObserver(metrics))
		jobMetrics = jobmetrics.NewMetrics(metrics.Registerer())
	} else {
		jobMetrics = jobmetrics.NewMetrics(nil)
	}

	auditRepo := audit.NewRepository(pool)
	recorder := audit.NewRecorder(auditRepo, window, logger, recorderOpts...)
	gate := rbac.NewGate(recorder, logger)

	enrolmentSvc := enrolment.NewService(enrolment.NewRepository(pool))

	var aggCache *aggregate.Cache
	if redisClient != nil {
		aggCache = aggregate.NewCache(redisClient, cfg.AggregateCacheTTL)
	}
	// Left as a nil interface when the cache is absent.
	var invalidator bumper
	if aggCache != nil {
		invalidator = aggCache
	}

	consentSvc := consent.NewService(consent.NewRepository(pool), enrolmentSvc, invalidator, logger)

	policyRepo := policy.NewRepository(pool)
	policySvc := policy.NewService(policyRepo, logger)

	declRepo := declarations.NewRepository(pool)
	declSvc := declarations.NewService(declRepo, enrolmentSvc, consentSvc, invalidator, declarations.Config{
		PrivacyNoticeVersion: cfg.PrivacyNoticeVersion,
		PolicyVersion:        cfg.PolicyVersion,
		Window:               window,
	}, logger, declarations.WithPolicyVersions(policySvc))

	guidanceSvc := guidance.NewService(guidance.NewRepository(pool), enrolmentSvc, logger)
	feedbackSvc := policy.NewFeedbackService(policyRepo, declSvc, guidanceSvc)

	aggSvc := aggregate.NewService(aggregate.NewRepository(pool), consentSvc, enrolmentSvc, aggCache,
		cfg.MinCohort, logger, aggregateOpts...)

	reaperOpts := []retention.Option{
		retention.WithInterval(cfg.ReaperInterval),
		retention.WithObserver(jobMetrics),
	}
	if invalidator != nil {
		reaperOpts = append(reaperOpts, retention.WithInvalidator(invalidator))
	}
	reaper := retention.NewReaper(declRepo, auditRepo, logger, reaperOpts...)

	return &Container{
		Recorder: recorder,
		Gate:     gate,
		RBAC: rbac.Middleware{
			Gate:     gate,
			Resolver: rbac.NewTokenResolver(cfg.JWTSecret, rbac.NewRepository(pool)),
			Logger:   logger,
		},
		Accounts: accounts.NewService(accounts.NewRepository(pool), recorder, accounts.Config{
			Secret:               cfg.JWTSecret,
			TokenTTL:             cfg.TokenTTL,
			PrivacyNoticeVersion: cfg.PrivacyNoticeVersion,
		}, logger),
		Enrolment:      enrolmentSvc,
		Consent:        consentSvc,
		Declarations:   declSvc,
		Guidance:       guidanceSvc,
		Policy:         policySvc,
		Feedback:       feedbackSvc,
		AggregateCache: aggCache,
		Aggregate:      aggSvc,
		Reaper:         reaper,
		JobMetrics:     jobMetrics,
	}
}

// RouterParams builds the API router parameters from the container. Outside
// production, 500 responses carry the underlying error.
func (c *Container) RouterParams(cfg *Config, logger *slog.Logger, metrics *observability.Metrics) RouterParams {
	debug := !cfg.IsProduction()
	return RouterParams{
		Logger:              logger,
		Config:              cfg,
		RBACMiddleware:      c.RBAC,
		MeHandler:           rbac.NewHandler(),
		AccountsHandler:     accounts.NewHandler(logger, c.Accounts, cfg.LoginRateLimit).WithDebug(debug),
		EnrolmentHandler:    enrolment.NewHandler(logger, c.Enrolment, c.RBAC).WithDebug(debug),
		DeclarationsHandler: declarations.NewHandler(logger, c.Declarations, c.RBAC, cfg.ExportRateLimit).WithDebug(debug),
		GuidanceHandler:     guidance.NewHandler(logger, c.Guidance, c.RBAC).WithDebug(debug),
		ConsentHandler:      consent.NewHandler(logger, c.Consent, c.RBAC).WithDebug(debug),
		AggregateHandler:    aggregate.NewHandler(logger, c.Aggregate, c.RBAC).WithDebug(debug),
		PolicyHandler:       policy.NewHandler(logger, c.Policy, c.Feedback, c.RBAC).WithDebug(debug),
		Metrics:             metrics,
	}
}
