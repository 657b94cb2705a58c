package enrolment

import (
	"context"
	"errors"
	"strings"
)

// Store is the persistence contract behind Service.
type Store interface {
	IsStudentEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	IsInstructor(ctx context.Context, userID, courseID string) (bool, error)
	FacultyExists(ctx context.Context, facultyID string) (bool, error)
	GetCourse(ctx context.Context, courseID string) (Course, error)
	GetAssignment(ctx context.Context, assignmentID string) (Assignment, error)
	StudentCourses(ctx context.Context, studentID string) ([]Course, error)
	InstructorCourses(ctx context.Context, userID string) ([]Course, error)
	AssignmentsForStudent(ctx context.Context, studentID string) ([]StudentAssignment, error)
	AssignmentsForCourse(ctx context.Context, courseID string) ([]CourseAssignment, error)
}

// Service answers enrolment questions for the rest of the system.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// IsStudentEnrolled reports whether studentID is enrolled as a student in courseID.
func (s *Service) IsStudentEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	return s.store.IsStudentEnrolled(ctx, studentID, courseID)
}

// IsInstructor reports whether userID teaches courseID.
func (s *Service) IsInstructor(ctx context.Context, userID, courseID string) (bool, error) {
	return s.store.IsInstructor(ctx, userID, courseID)
}

// RequireInstructor returns ErrNotInstructor unless userID teaches courseID.
func (s *Service) RequireInstructor(ctx context.Context, userID, courseID string) error {
	ok, err := s.store.IsInstructor(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInstructor
	}
	return nil
}

// Course loads a course.
func (s *Service) Course(ctx context.Context, courseID string) (Course, error) {
	if strings.TrimSpace(courseID) == "" {
		return Course{}, ErrCourseNotFound
	}
	return s.store.GetCourse(ctx, courseID)
}

// Assignment loads an assignment.
func (s *Service) Assignment(ctx context.Context, assignmentID string) (Assignment, error) {
	if strings.TrimSpace(assignmentID) == "" {
		return Assignment{}, ErrAssignmentNotFound
	}
	return s.store.GetAssignment(ctx, assignmentID)
}

// RequireFaculty returns ErrFacultyNotFound unless facultyID exists.
func (s *Service) RequireFaculty(ctx context.Context, facultyID string) error {
	if strings.TrimSpace(facultyID) == "" {
		return ErrFacultyNotFound
	}
	ok, err := s.store.FacultyExists(ctx, facultyID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrFacultyNotFound
	}
	return nil
}

// StudentCourses lists the courses a student is enrolled in.
func (s *Service) StudentCourses(ctx context.Context, studentID string) ([]Course, error) {
	return s.store.StudentCourses(ctx, studentID)
}

// InstructorCourses lists the courses an instructor teaches.
func (s *Service) InstructorCourses(ctx context.Context, userID string) ([]Course, error) {
	courses, err := s.store.InstructorCourses(ctx, userID)
	if err != nil {
		return nil, err
	}
	if courses == nil {
		courses = []Course{}
	}
	return courses, nil
}

// StudentAssignments lists the assignments visible to a student.
func (s *Service) StudentAssignments(ctx context.Context, studentID string) ([]StudentAssignment, error) {
	rows, err := s.store.AssignmentsForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []StudentAssignment{}
	}
	return rows, nil
}

// CourseAssignments lists a course's assignments for one of its instructors.
func (s *Service) CourseAssignments(ctx context.Context, instructorID, courseID string) ([]CourseAssignment, error) {
	if _, err := s.Course(ctx, courseID); err != nil {
		return nil, err
	}
	if err := s.RequireInstructor(ctx, instructorID, courseID); err != nil {
		return nil, err
	}
	rows, err := s.store.AssignmentsForCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []CourseAssignment{}
	}
	return rows, nil
}

// IsNotFound reports whether err is one of the package's lookup misses.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCourseNotFound) || errors.Is(err, ErrAssignmentNotFound) || errors.Is(err, ErrFacultyNotFound)
}
