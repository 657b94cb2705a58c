package guidance

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/enrolment"
	"github.com/aiusage/disclosure/internal/platform/validation"
)

// Store is the persistence contract behind Service.
type Store interface {
	FindByAssignment(ctx context.Context, assignmentID string) (Guidance, error)
	Create(ctx context.Context, g Guidance) (Guidance, error)
	Update(ctx context.Context, g Guidance) (Guidance, error)
	Lock(ctx context.Context, assignmentID string, at time.Time) (Guidance, error)
	LockDue(ctx context.Context, now time.Time) (int64, error)
}

// Assignments resolves assignments and teaching relationships.
type Assignments interface {
	Assignment(ctx context.Context, assignmentID string) (enrolment.Assignment, error)
	RequireInstructor(ctx context.Context, userID, courseID string) error
}

// Service implements guidance use cases.
type Service struct {
	store       Store
	assignments Assignments
	validator   *validation.Validator
	logger      *slog.Logger
	now         func() time.Time
	idGen       func() string
}

// NewService constructs a Service.
func NewService(store Store, assignments Assignments, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		assignments: assignments,
		validator:   validation.New(),
		logger:      logger,
		now:         time.Now,
		idGen:       uuid.NewString,
	}
}

// Get returns the guidance for an assignment.
func (s *Service) Get(ctx context.Context, assignmentID string) (Guidance, error) {
	if _, err := uuid.Parse(assignmentID); err != nil {
		return Guidance{}, ErrNotFound
	}
	return s.store.FindByAssignment(ctx, assignmentID)
}

// Create publishes guidance for an assignment the caller teaches.
func (s *Service) Create(ctx context.Context, userID, assignmentID string, req Request) (Guidance, error) {
	if err := s.check(&req); err != nil {
		return Guidance{}, err
	}
	if _, err := s.authorized(ctx, userID, assignmentID); err != nil {
		return Guidance{}, err
	}
	g := fromRequest(req)
	g.ID = s.idGen()
	g.AssignmentID = assignmentID
	g.CreatedBy = userID
	g.CreatedAt = s.now().UTC()
	return s.store.Create(ctx, g)
}

// Update edits guidance that is still unlocked. Guidance for an assignment
// past its due date is locked on first edit attempt.
func (s *Service) Update(ctx context.Context, userID, assignmentID string, req Request) (Guidance, error) {
	if err := s.check(&req); err != nil {
		return Guidance{}, err
	}
	assignment, err := s.authorized(ctx, userID, assignmentID)
	if err != nil {
		return Guidance{}, err
	}
	now := s.now().UTC()
	if assignment.DueDate.Before(now) {
		if _, err := s.store.Lock(ctx, assignmentID, now); err != nil {
			return Guidance{}, err
		}
		return Guidance{}, ErrLocked
	}
	g := fromRequest(req)
	g.AssignmentID = assignmentID
	return s.store.Update(ctx, g)
}

// Lock freezes the guidance for an assignment the caller teaches. Locking is
// idempotent and keeps the original lock time.
func (s *Service) Lock(ctx context.Context, userID, assignmentID string) (Guidance, error) {
	if _, err := s.authorized(ctx, userID, assignmentID); err != nil {
		return Guidance{}, err
	}
	return s.store.Lock(ctx, assignmentID, s.now().UTC())
}

// LockDue locks all guidance whose assignment due date has passed.
func (s *Service) LockDue(ctx context.Context) (int64, error) {
	n, err := s.store.LockDue(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("guidance locked", slog.Int64("count", n))
	}
	return n, nil
}

func (s *Service) check(req *Request) error {
	req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	return req.overlap()
}

func (s *Service) authorized(ctx context.Context, userID, assignmentID string) (enrolment.Assignment, error) {
	if _, err := uuid.Parse(assignmentID); err != nil {
		return enrolment.Assignment{}, enrolment.ErrAssignmentNotFound
	}
	assignment, err := s.assignments.Assignment(ctx, assignmentID)
	if err != nil {
		return enrolment.Assignment{}, err
	}
	if err := s.assignments.RequireInstructor(ctx, userID, assignment.CourseID); err != nil {
		return enrolment.Assignment{}, err
	}
	return assignment, nil
}

func fromRequest(req Request) Guidance {
	g := Guidance{
		PermittedText:        req.PermittedText,
		ProhibitedText:       req.ProhibitedText,
		PermittedCategories:  req.PermittedCategories,
		ProhibitedCategories: req.ProhibitedCategories,
		Examples:             req.Examples,
	}
	if g.PermittedCategories == nil {
		g.PermittedCategories = []declarations.Category{}
	}
	if g.ProhibitedCategories == nil {
		g.ProhibitedCategories = []declarations.Category{}
	}
	return g
}
