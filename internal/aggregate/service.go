package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aiusage/disclosure/internal/enrolment"
)

// Store loads the raw inputs of a computation.
type Store interface {
	FacultyCourseIDs(ctx context.Context, facultyID string) ([]string, error)
	CourseIDs(ctx context.Context) ([]string, error)
	FacultyIDs(ctx context.Context) ([]string, error)
	EnrolledStudents(ctx context.Context, courseIDs []string) (map[string]map[string]bool, error)
	Declarations(ctx context.Context, courseIDs []string, now time.Time) ([]Record, error)
}

// ConsentReader is the consent ledger view the engine consults.
type ConsentReader interface {
	Revoked(ctx context.Context, courseIDs []string) (map[string]map[string]bool, error)
}

// Scopes resolves and guards aggregate scopes.
type Scopes interface {
	Course(ctx context.Context, courseID string) (enrolment.Course, error)
	RequireInstructor(ctx context.Context, userID, courseID string) error
	RequireFaculty(ctx context.Context, facultyID string) error
	InstructorCourses(ctx context.Context, userID string) ([]enrolment.Course, error)
}

// Observer is told about every computed (uncached) aggregate.
type Observer interface {
	ObserveAggregate(scope string, suppressed bool)
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithObserver reports computations to o.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// Service serves cached aggregates.
type Service struct {
	store     Store
	consent   ConsentReader
	scopes    Scopes
	cache     *Cache
	minCohort int
	logger    *slog.Logger
	observer  Observer
	now       func() time.Time
}

// NewService constructs a Service. cache may be nil.
func NewService(store Store, consent ConsentReader, scopes Scopes, cache *Cache, minCohort int, logger *slog.Logger, opts ...ServiceOption) *Service {
	if minCohort <= 0 {
		minCohort = DefaultMinCohort
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:     store,
		consent:   consent,
		scopes:    scopes,
		cache:     cache,
		minCohort: minCohort,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Course returns the aggregate of one course for an instructor teaching it.
func (s *Service) Course(ctx context.Context, instructorID, courseID string, opts Options) (Result, error) {
	if _, err := s.scopes.Course(ctx, courseID); err != nil {
		return Result{}, err
	}
	if err := s.scopes.RequireInstructor(ctx, instructorID, courseID); err != nil {
		return Result{}, err
	}
	return s.cached(ctx, Scope{Kind: ScopeCourse, ID: courseID}, opts)
}

// Faculty returns the aggregate over every course of a faculty.
func (s *Service) Faculty(ctx context.Context, facultyID string, opts Options) (Result, error) {
	if err := s.scopes.RequireFaculty(ctx, facultyID); err != nil {
		return Result{}, err
	}
	return s.cached(ctx, Scope{Kind: ScopeFaculty, ID: facultyID}, opts)
}

// Courses lists the courses an instructor may request aggregates for.
func (s *Service) Courses(ctx context.Context, instructorID string) ([]enrolment.Course, error) {
	return s.scopes.InstructorCourses(ctx, instructorID)
}

// Invalidate drops every cached result.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Warm precomputes the default view of every course and faculty. It returns
// the number of scopes warmed.
func (s *Service) Warm(ctx context.Context) (int, error) {
	courses, err := s.store.CourseIDs(ctx)
	if err != nil {
		return 0, err
	}
	faculties, err := s.store.FacultyIDs(ctx)
	if err != nil {
		return 0, err
	}
	scopes := make([]Scope, 0, len(courses)+len(faculties))
	for _, id := range courses {
		scopes = append(scopes, Scope{Kind: ScopeCourse, ID: id})
	}
	for _, id := range faculties {
		scopes = append(scopes, Scope{Kind: ScopeFaculty, ID: id})
	}
	warmed := 0
	var errs []error
	for _, scope := range scopes {
		if err := ctx.Err(); err != nil {
			return warmed, err
		}
		if _, err := s.cached(ctx, scope, Options{}); err != nil {
			errs = append(errs, err)
			continue
		}
		warmed++
	}
	return warmed, errors.Join(errs...)
}

// cached serves scope from the cache. Membership is read on every call and
// folded into the key, so a consent or enrolment change takes effect on the
// next request even when a cache bump was lost.
func (s *Service) cached(ctx context.Context, scope Scope, opts Options) (Result, error) {
	m, err := s.membership(ctx, scope)
	if err != nil {
		return Result{}, err
	}
	key, err := s.cache.BuildKey(ctx, append(resultKey(scope, opts), m.fingerprint())...)
	if err != nil {
		s.logger.Warn("aggregate cache key", slog.Any("error", err))
		return s.compute(ctx, scope, opts, m)
	}
	val, err, _ := singleflightBuild(ctx, key, func(ctx context.Context) (any, error) {
		var res Result
		if err := s.cache.FetchJSON(ctx, key, &res, func(ctx context.Context) (any, time.Duration, error) {
			computed, err := s.compute(ctx, scope, opts, m)
			if err != nil {
				return nil, 0, err
			}
			return computed, s.maxAge(computed), nil
		}); err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	return val.(Result), nil
}

// maxAge keeps a cached result from outliving its earliest surviving record.
func (s *Service) maxAge(res Result) time.Duration {
	if res.ValidUntil.IsZero() {
		return 0
	}
	left := res.ValidUntil.Sub(s.now())
	if left <= 0 {
		return -1
	}
	return left
}

func (s *Service) membership(ctx context.Context, scope Scope) (membership, error) {
	m := membership{courseIDs: []string{scope.ID}}
	if scope.Kind == ScopeFaculty {
		ids, err := s.store.FacultyCourseIDs(ctx, scope.ID)
		if err != nil {
			return membership{}, err
		}
		m.courseIDs = ids
	}
	if len(m.courseIDs) == 0 {
		return m, nil
	}
	enrolled, err := s.store.EnrolledStudents(ctx, m.courseIDs)
	if err != nil {
		return membership{}, err
	}
	revoked, err := s.consent.Revoked(ctx, m.courseIDs)
	if err != nil {
		return membership{}, err
	}
	m.enrolled = enrolled
	m.revoked = revoked
	return m, nil
}

func (s *Service) compute(ctx context.Context, scope Scope, opts Options, m membership) (Result, error) {
	now := s.now().UTC()
	in := Input{Scope: scope, Now: now, Options: opts, Enrolled: m.enrolled, Revoked: m.revoked}
	if len(m.courseIDs) > 0 {
		records, err := s.store.Declarations(ctx, m.courseIDs, now)
		if err != nil {
			return Result{}, err
		}
		in.Records = records
	}
	res := Compute(in, s.minCohort)
	if s.observer != nil {
		s.observer.ObserveAggregate(string(scope.Kind), res.Suppressed)
	}
	return res, nil
}
