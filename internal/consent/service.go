package consent

import (
	"context"
	"log/slog"
	"time"
)

// Store is the persistence contract behind Service.
type Store interface {
	Get(ctx context.Context, studentID, courseID string) (Preference, bool, error)
	Upsert(ctx context.Context, studentID, courseID string, shared bool, at time.Time) error
	InsertDefault(ctx context.Context, studentID, courseID string, at time.Time) error
	StatusForStudent(ctx context.Context, studentID string) ([]Status, error)
	Revoked(ctx context.Context, courseIDs []string) (map[string]map[string]bool, error)
}

// Enrolment answers whether a student belongs to a course.
type Enrolment interface {
	IsStudentEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
}

// Invalidator drops cached aggregates after a consent transition.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service is the consent ledger.
type Service struct {
	store     Store
	enrolment Enrolment
	cache     Invalidator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service. cache may be nil.
func NewService(store Store, enrolment Enrolment, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, enrolment: enrolment, cache: cache, logger: logger, now: time.Now}
}

// IsShared reports whether the student's data for courseID may contribute to
// aggregates. Absence of a stored preference means shared.
func (s *Service) IsShared(ctx context.Context, studentID, courseID string) (bool, error) {
	p, ok, err := s.store.Get(ctx, studentID, courseID)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return p.IsShared, nil
}

// Revoke opts the student out of sharing for courseID. Repeating it is a no-op.
func (s *Service) Revoke(ctx context.Context, studentID, courseID string) error {
	return s.transition(ctx, studentID, courseID, false)
}

// Reinstate opts the student back in for courseID. Repeating it is a no-op.
func (s *Service) Reinstate(ctx context.Context, studentID, courseID string) error {
	return s.transition(ctx, studentID, courseID, true)
}

func (s *Service) transition(ctx context.Context, studentID, courseID string, shared bool) error {
	enrolled, err := s.enrolment.IsStudentEnrolled(ctx, studentID, courseID)
	if err != nil {
		return err
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	if err := s.store.Upsert(ctx, studentID, courseID, shared, s.now().UTC()); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Observe records a default shared preference the first time an enrolment is
// seen. Existing preferences are never overwritten.
func (s *Service) Observe(ctx context.Context, studentID, courseID string) error {
	return s.store.InsertDefault(ctx, studentID, courseID, s.now().UTC())
}

// Status lists the student's sharing state for each enrolled course.
func (s *Service) Status(ctx context.Context, studentID string) ([]Status, error) {
	rows, err := s.store.StatusForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Status{}
	}
	return rows, nil
}

// Revoked returns, per course, the students who opted out.
func (s *Service) Revoked(ctx context.Context, courseIDs []string) (map[string]map[string]bool, error) {
	if len(courseIDs) == 0 {
		return map[string]map[string]bool{}, nil
	}
	return s.store.Revoked(ctx, courseIDs)
}

// invalidate is best effort. Aggregates key their cache entries on the revoked
// set itself, so a lost bump cannot resurface an opted-out student.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("consent cache bump", slog.Any("error", err))
	}
}
