package declarations

import (
	"strings"
	"time"

	"github.com/aiusage/disclosure/internal/consent"
)

// SubmitRequest is the body of a declaration submission.
type SubmitRequest struct {
	AssignmentID string     `json:"assignmentId" validate:"required,uuid"`
	ToolsUsed    []string   `json:"toolsUsed" validate:"required,min=1,max=20,dive,required,max=100"`
	Categories   []Category `json:"categories" validate:"required,min=1,max=4,dive,oneof=explanation structure rephrasing code_assistance"`
	Frequency    Frequency  `json:"frequency" validate:"required,oneof=none light moderate extensive"`
	ContextText  *string    `json:"contextText" validate:"omitempty,max=500"`
}

// normalize trims free text and drops an empty context.
func (r *SubmitRequest) normalize() {
	r.AssignmentID = strings.TrimSpace(r.AssignmentID)
	for i, tool := range r.ToolsUsed {
		r.ToolsUsed[i] = strings.TrimSpace(tool)
	}
	if r.ContextText != nil {
		trimmed := strings.TrimSpace(*r.ContextText)
		if trimmed == "" {
			r.ContextText = nil
		} else {
			r.ContextText = &trimmed
		}
	}
}

// Summary counts a student's declarations by category and frequency.
type Summary struct {
	TotalDeclarations int               `json:"totalDeclarations"`
	ByCategory        map[Category]int  `json:"byCategory"`
	ByFrequency       map[Frequency]int `json:"byFrequency"`
}

// Dashboard is the student's own overview.
type Dashboard struct {
	Declarations []Declaration `json:"declarations"`
	Summary      Summary       `json:"summary"`
}

// ExportStudent identifies the subject of an export.
type ExportStudent struct {
	ID string `json:"id"`
}

// Export is the personal data bundle handed to a student.
type Export struct {
	ExportedAt         time.Time        `json:"exportedAt"`
	Student            ExportStudent    `json:"student"`
	Declarations       []Declaration    `json:"declarations"`
	SharingPreferences []consent.Status `json:"sharingPreferences"`
}
