// Package enrolment exposes the course, enrolment and assignment lookups the
// other packages build on.
package enrolment

import (
	"fmt"
	"time"

	"github.com/aiusage/disclosure/internal/platform/httpx"
)

// Errors returned by the package.
var (
	ErrCourseNotFound     = fmt.Errorf("enrolment: course %w", httpx.ErrNotFound)
	ErrAssignmentNotFound = fmt.Errorf("enrolment: assignment %w", httpx.ErrNotFound)
	ErrFacultyNotFound    = fmt.Errorf("enrolment: faculty %w", httpx.ErrNotFound)
	ErrNotInstructor      = fmt.Errorf("%w: you are not an instructor for this course", httpx.ErrForbidden)
)

// Course is a course offered by a faculty.
type Course struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	FacultyID string `json:"facultyId,omitempty"`
}

// Assignment belongs to exactly one course.
type Assignment struct {
	ID       string    `json:"id"`
	CourseID string    `json:"courseId"`
	Title    string    `json:"title"`
	DueDate  time.Time `json:"dueDate"`
}

// DeclarationRef marks an assignment the student already declared for.
type DeclarationRef struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// StudentAssignment is one row of a student's assignment listing.
type StudentAssignment struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	DueDate     time.Time       `json:"dueDate"`
	Course      Course          `json:"course"`
	Declaration *DeclarationRef `json:"declaration"`
}

// GuidanceRef marks an assignment that already has guidance.
type GuidanceRef struct {
	ID       string     `json:"id"`
	LockedAt *time.Time `json:"lockedAt"`
}

// CourseAssignment is one row of an instructor's assignment listing.
type CourseAssignment struct {
	ID       string       `json:"id"`
	CourseID string       `json:"courseId"`
	Title    string       `json:"title"`
	DueDate  time.Time    `json:"dueDate"`
	Guidance *GuidanceRef `json:"guidance"`
}
