// Package aggregate computes cohort level usage statistics with small cohort
// suppression.
package aggregate

import (
	"time"

	"github.com/aiusage/disclosure/internal/declarations"
)

// DefaultMinCohort is the smallest cohort whose statistics may be shown.
const DefaultMinCohort = 5

// SuppressedMessage accompanies every suppressed result.
const SuppressedMessage = "Cohort size is below the minimum threshold for display"

// ScopeKind selects the population an aggregate is computed over.
type ScopeKind string

// Supported scopes.
const (
	ScopeCourse  ScopeKind = "course"
	ScopeFaculty ScopeKind = "faculty"
)

// Scope identifies one course or one faculty.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// Options tune the grouping of a non-suppressed result.
type Options struct {
	// ByMonth adds the YYYY-MM of submission as a grouping dimension.
	ByMonth bool
	// BucketMinimum drops individual buckets whose count is below it. Zero
	// disables per-bucket suppression; the cohort gate always applies.
	BucketMinimum int
}

// Record is one candidate declaration with the course it belongs to.
type Record struct {
	StudentID    string
	CourseID     string
	AssignmentID string
	Categories   []declarations.Category
	Frequency    declarations.Frequency
	SubmittedAt  time.Time
	ExpiresAt    time.Time
}

// Input is everything Compute needs. It is assembled by the Service from the
// record store and the consent ledger.
type Input struct {
	Scope   Scope
	Now     time.Time
	Records []Record
	// Enrolled maps course ID to the set of students enrolled in it.
	Enrolled map[string]map[string]bool
	// Revoked maps course ID to the set of students who opted out of sharing.
	Revoked map[string]map[string]bool
	Options Options
}

// Bucket is one group of a non-suppressed result. Buckets are derived and
// never stored.
type Bucket struct {
	FacultyID        string                 `json:"facultyId,omitempty"`
	CourseID         string                 `json:"courseId"`
	AssignmentID     string                 `json:"assignmentId,omitempty"`
	Month            string                 `json:"month,omitempty"`
	Category         declarations.Category  `json:"category"`
	Frequency        declarations.Frequency `json:"frequency"`
	DeclarationCount int                    `json:"declarationCount"`
}

// Result is either suppressed, with no data at all, or a list of buckets.
type Result struct {
	Suppressed bool     `json:"suppressed"`
	Message    string   `json:"message,omitempty"`
	Buckets    []Bucket `json:"data,omitempty"`
	CohortSize int      `json:"-"`
	// ValidUntil is the earliest expiry among the surviving declarations.
	// Past it the result may still count a record the reaper would drop.
	ValidUntil time.Time `json:"-"`
}
