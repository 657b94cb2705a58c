package declarations

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aiusage/disclosure/internal/consent"
	"github.com/aiusage/disclosure/internal/enrolment"
	"github.com/aiusage/disclosure/internal/platform/validation"
	"github.com/aiusage/disclosure/internal/rbac"
	"github.com/aiusage/disclosure/internal/retention"
)

// Store is the persistence contract behind Service.
type Store interface {
	Create(ctx context.Context, d Declaration) error
	FindByID(ctx context.Context, id string) (Declaration, error)
	FindByStudentAndAssignment(ctx context.Context, studentID, assignmentID string) (Declaration, bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]Declaration, error)
}

// Assignments resolves assignments and course membership.
type Assignments interface {
	Assignment(ctx context.Context, assignmentID string) (enrolment.Assignment, error)
	IsStudentEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
}

// Ledger is the consent ledger view used on submission and export.
type Ledger interface {
	Observe(ctx context.Context, studentID, courseID string) error
	Status(ctx context.Context, studentID string) ([]consent.Status, error)
}

// Invalidator drops cached aggregates after a new declaration lands.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// PolicyVersions reports the version of the current usage policy. Zero means
// no policy has been published.
type PolicyVersions interface {
	CurrentVersion(ctx context.Context) (int, error)
}

// Option customises a Service.
type Option func(*Service)

// WithPolicyVersions stamps new declarations with the current published policy
// version instead of Config.PolicyVersion.
func WithPolicyVersions(p PolicyVersions) Option {
	return func(s *Service) { s.policies = p }
}

// Config carries the versions and windows stamped onto new declarations.
// PolicyVersion applies until a policy has been published.
type Config struct {
	PrivacyNoticeVersion int
	PolicyVersion        int
	Window               retention.Window
}

// Service implements declaration use cases.
type Service struct {
	store       Store
	assignments Assignments
	ledger      Ledger
	cache       Invalidator
	policies    PolicyVersions
	cfg         Config
	validator   *validation.Validator
	logger      *slog.Logger
	now         func() time.Time
	idGen       func() string
}

// NewService constructs a Service. cache may be nil.
func NewService(store Store, assignments Assignments, ledger Ledger, cache Invalidator, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PolicyVersion == 0 {
		cfg.PolicyVersion = cfg.PrivacyNoticeVersion
	}
	s := &Service{
		store:       store,
		assignments: assignments,
		ledger:      ledger,
		cache:       cache,
		cfg:         cfg,
		validator:   validation.New(),
		logger:      logger,
		now:         time.Now,
		idGen:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit records a declaration for the principal. A student may declare once
// per assignment, before its due date, after acknowledging the current
// privacy notice.
func (s *Service) Submit(ctx context.Context, p *rbac.Principal, req SubmitRequest) (Declaration, error) {
	if p == nil {
		return Declaration{}, rbac.ErrUnauthenticated
	}
	req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return Declaration{}, err
	}

	if _, exists, err := s.store.FindByStudentAndAssignment(ctx, p.ID, req.AssignmentID); err != nil {
		return Declaration{}, err
	} else if exists {
		return Declaration{}, ErrDuplicate
	}

	assignment, err := s.assignments.Assignment(ctx, req.AssignmentID)
	if err != nil {
		return Declaration{}, err
	}
	enrolled, err := s.assignments.IsStudentEnrolled(ctx, p.ID, assignment.CourseID)
	if err != nil {
		return Declaration{}, err
	}
	if !enrolled {
		return Declaration{}, ErrNotEnrolled
	}

	now := s.now().UTC()
	if assignment.DueDate.Before(now) {
		return Declaration{}, ErrWindowClosed
	}
	if s.cfg.PrivacyNoticeVersion <= 0 || p.PrivacyAckVersion != s.cfg.PrivacyNoticeVersion {
		return Declaration{}, ErrPrivacyAck
	}
	policyVersion, err := s.policyVersion(ctx)
	if err != nil {
		return Declaration{}, err
	}

	d := Declaration{
		ID:            s.idGen(),
		StudentID:     p.ID,
		AssignmentID:  assignment.ID,
		ToolsUsed:     req.ToolsUsed,
		Categories:    dedupeCategories(req.Categories),
		Frequency:     req.Frequency,
		ContextText:   req.ContextText,
		PolicyVersion: policyVersion,
		SubmittedAt:   now,
		ExpiresAt:     s.cfg.Window.ExpiresAt(assignment.DueDate),
	}
	if err := s.store.Create(ctx, d); err != nil {
		return Declaration{}, err
	}

	if err := s.ledger.Observe(ctx, p.ID, assignment.CourseID); err != nil {
		s.logger.Warn("declarations observe enrolment", slog.String("course_id", assignment.CourseID), slog.Any("error", err))
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("declarations cache bump", slog.Any("error", err))
		}
	}
	return d, nil
}

func (s *Service) policyVersion(ctx context.Context) (int, error) {
	if s.policies == nil {
		return s.cfg.PolicyVersion, nil
	}
	v, err := s.policies.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return s.cfg.PolicyVersion, nil
	}
	return v, nil
}

// Get returns one of the principal's own declarations.
func (s *Service) Get(ctx context.Context, studentID, declarationID string) (Declaration, error) {
	if _, err := uuid.Parse(declarationID); err != nil {
		return Declaration{}, ErrNotFound
	}
	d, err := s.store.FindByID(ctx, declarationID)
	if err != nil {
		return Declaration{}, err
	}
	if d.StudentID != studentID {
		return Declaration{}, ErrNotOwner
	}
	return d, nil
}

// ListOwn returns the student's declarations, newest first.
func (s *Service) ListOwn(ctx context.Context, studentID string) ([]Declaration, error) {
	rows, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Declaration{}
	}
	return rows, nil
}

// Dashboard returns the student's declarations with category and frequency
// totals. Each category of a multi-category declaration is counted once.
func (s *Service) Dashboard(ctx context.Context, studentID string) (Dashboard, error) {
	rows, err := s.ListOwn(ctx, studentID)
	if err != nil {
		return Dashboard{}, err
	}
	summary := Summary{
		TotalDeclarations: len(rows),
		ByCategory:        make(map[Category]int),
		ByFrequency:       make(map[Frequency]int),
	}
	for _, d := range rows {
		for _, c := range d.Categories {
			summary.ByCategory[c]++
		}
		summary.ByFrequency[d.Frequency]++
	}
	return Dashboard{Declarations: rows, Summary: summary}, nil
}

// Export gathers everything stored about the student.
func (s *Service) Export(ctx context.Context, studentID string) (Export, error) {
	out := Export{
		ExportedAt: s.now().UTC(),
		Student:    ExportStudent{ID: studentID},
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.ListOwn(gctx, studentID)
		out.Declarations = rows
		return err
	})
	g.Go(func() error {
		prefs, err := s.ledger.Status(gctx, studentID)
		out.SharingPreferences = prefs
		return err
	})
	if err := g.Wait(); err != nil {
		return Export{}, err
	}
	if out.SharingPreferences == nil {
		out.SharingPreferences = []consent.Status{}
	}
	return out, nil
}

func dedupeCategories(in []Category) []Category {
	seen := make(map[Category]struct{}, len(in))
	out := make([]Category, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
