// Package guidance manages the per-assignment AI usage guidance instructors
// publish for students.
package guidance

import (
	"fmt"
	"time"

	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/platform/httpx"
)

// Errors returned by the package.
var (
	ErrNotFound = fmt.Errorf("guidance %w", httpx.ErrNotFound)
	ErrExists   = fmt.Errorf("%w: guidance already exists for this assignment", httpx.ErrConflict)
	ErrLocked   = fmt.Errorf("%w: guidance is locked and cannot be edited", httpx.ErrConflict)
)

// Examples lists sample permitted and prohibited uses.
type Examples struct {
	Permitted  []string `json:"permitted" validate:"max=10,dive,max=500"`
	Prohibited []string `json:"prohibited" validate:"max=10,dive,max=500"`
}

// Guidance is an instructor's statement of acceptable AI use for one
// assignment. Once LockedAt is set it can no longer be edited.
type Guidance struct {
	ID                   string                  `json:"id"`
	AssignmentID         string                  `json:"assignmentId"`
	PermittedText        string                  `json:"permittedText"`
	ProhibitedText       string                  `json:"prohibitedText"`
	PermittedCategories  []declarations.Category `json:"permittedCategories"`
	ProhibitedCategories []declarations.Category `json:"prohibitedCategories"`
	Examples             *Examples               `json:"examples"`
	CreatedBy            string                  `json:"createdBy"`
	LockedAt             *time.Time              `json:"lockedAt"`
	CreatedAt            time.Time               `json:"createdAt"`
}

// Locked reports whether g can no longer be edited.
func (g Guidance) Locked() bool { return g.LockedAt != nil }
