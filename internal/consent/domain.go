// Package consent implements the per-student, per-course sharing ledger that
// decides whether a student's declarations may feed any aggregate.
package consent

import (
	"fmt"
	"time"

	"github.com/aiusage/disclosure/internal/platform/httpx"
)

// ErrNotEnrolled is returned when a student manages sharing for a course they
// are not enrolled in.
var ErrNotEnrolled = fmt.Errorf("consent: %w: course not found for this student", httpx.ErrNotFound)

// Preference is the stored sharing flag for one (student, course) pair. A
// missing row means shared.
type Preference struct {
	StudentID string
	CourseID  string
	IsShared  bool
	UpdatedAt time.Time
}

// Status is one course of a student's sharing overview.
type Status struct {
	StudentID  string     `json:"studentId"`
	CourseID   string     `json:"courseId"`
	CourseCode string     `json:"courseCode"`
	CourseName string     `json:"courseName"`
	IsShared   bool       `json:"isShared"`
	UpdatedAt  *time.Time `json:"updatedAt"`
}
