// Package declarations handles AI-usage declarations: submission, the
// student's own views, and the personal data export.
package declarations

import (
	"fmt"
	"time"

	"github.com/aiusage/disclosure/internal/platform/httpx"
)

// Category classifies how an AI tool was used.
type Category string

// Supported categories, in display order.
const (
	CategoryExplanation    Category = "explanation"
	CategoryStructure      Category = "structure"
	CategoryRephrasing     Category = "rephrasing"
	CategoryCodeAssistance Category = "code_assistance"
)

// Categories lists every category in rank order.
func Categories() []Category {
	return []Category{CategoryExplanation, CategoryStructure, CategoryRephrasing, CategoryCodeAssistance}
}

// Rank returns the position of c in Categories, or -1 when c is unknown.
func (c Category) Rank() int {
	for i, v := range Categories() {
		if v == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c is a supported category.
func (c Category) Valid() bool { return c.Rank() >= 0 }

// Frequency is an ordinal measure of how much AI assistance was used.
type Frequency string

// Supported frequencies, lowest first.
const (
	FrequencyNone      Frequency = "none"
	FrequencyLight     Frequency = "light"
	FrequencyModerate  Frequency = "moderate"
	FrequencyExtensive Frequency = "extensive"
)

// Frequencies lists every frequency in ordinal order.
func Frequencies() []Frequency {
	return []Frequency{FrequencyNone, FrequencyLight, FrequencyModerate, FrequencyExtensive}
}

// Rank returns the ordinal of f, or -1 when f is unknown.
func (f Frequency) Rank() int {
	for i, v := range Frequencies() {
		if v == f {
			return i
		}
	}
	return -1
}

// Valid reports whether f is a supported frequency.
func (f Frequency) Valid() bool { return f.Rank() >= 0 }

// Declaration is a student's disclosure for one assignment. It is immutable
// once created.
type Declaration struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"studentId"`
	AssignmentID  string     `json:"assignmentId"`
	ToolsUsed     []string   `json:"toolsUsed"`
	Categories    []Category `json:"categories"`
	Frequency     Frequency  `json:"frequency"`
	ContextText   *string    `json:"contextText"`
	PolicyVersion int        `json:"policyVersion"`
	SubmittedAt   time.Time  `json:"submittedAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
}

// Errors returned by the package.
var (
	ErrDuplicate    = fmt.Errorf("%w: a declaration has already been submitted for this assignment", httpx.ErrConflict)
	ErrWindowClosed = fmt.Errorf("%w: the submission window for this assignment has closed", httpx.ErrConflict)
	ErrNotEnrolled  = fmt.Errorf("%w: you are not enrolled in the course for this assignment", httpx.ErrForbidden)
	ErrPrivacyAck   = fmt.Errorf("%w: privacy notice acknowledgement required before submitting a declaration", httpx.ErrForbidden)
	ErrNotOwner     = fmt.Errorf("%w: you may only read your own declarations", httpx.ErrForbidden)
	ErrNotFound     = fmt.Errorf("declaration %w", httpx.ErrNotFound)
)
