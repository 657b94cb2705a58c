// Package policy keeps the register of AI usage policy versions and the
// feedback templates written against each version, and assembles the
// feedback a student sees for one of their declarations.
package policy

import (
	"fmt"
	"time"

	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/guidance"
	"github.com/aiusage/disclosure/internal/platform/httpx"
)

// Errors returned by the package.
var (
	ErrNoCurrent      = fmt.Errorf("no policy document is currently %w", httpx.ErrNotFound)
	ErrStaleVersion   = fmt.Errorf("%w: policy version must be greater than the current version", httpx.ErrConflict)
	ErrUnknownVersion = httpx.NewValidationError(map[string]string{"policyVersion": "no policy document has this version"})
)

// Document is one registered policy version. Exactly one document is current
// once any has been uploaded; versions only ever increase.
type Document struct {
	ID          string    `json:"id"`
	Version     int       `json:"version"`
	Title       string    `json:"title"`
	DocumentURL *string   `json:"documentUrl"`
	UploadedBy  string    `json:"uploadedBy"`
	IsCurrent   bool      `json:"isCurrent"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Template is a feedback snippet for one policy version. A nil Category
// applies to every declaration.
type Template struct {
	ID               string                 `json:"id"`
	Category         *declarations.Category `json:"category"`
	TriggerCondition string                 `json:"triggerCondition"`
	TemplateText     string                 `json:"templateText"`
	PolicyVersion    int                    `json:"policyVersion"`
	CreatedBy        string                 `json:"createdBy"`
	CreatedAt        time.Time              `json:"createdAt"`
}

// appliesTo reports whether t is relevant to a declaration in categories.
func (t Template) appliesTo(categories []declarations.Category) bool {
	if t.Category == nil {
		return true
	}
	for _, c := range categories {
		if c == *t.Category {
			return true
		}
	}
	return false
}

// FeedbackGuidance is the part of an assignment's guidance echoed back with
// feedback.
type FeedbackGuidance struct {
	PermittedText  string             `json:"permittedText"`
	ProhibitedText string             `json:"prohibitedText"`
	Examples       *guidance.Examples `json:"examples"`
}

// FeedbackTemplate is a template as shown to the student.
type FeedbackTemplate struct {
	Category         *declarations.Category `json:"category"`
	TriggerCondition string                 `json:"triggerCondition"`
	TemplateText     string                 `json:"templateText"`
}

// Feedback combines a declaration with the guidance of its assignment and the
// templates of the policy version it was made under.
type Feedback struct {
	DeclarationID     string                  `json:"declarationId"`
	Categories        []declarations.Category `json:"categories"`
	Frequency         declarations.Frequency  `json:"frequency"`
	Guidance          *FeedbackGuidance       `json:"guidance"`
	FeedbackTemplates []FeedbackTemplate      `json:"feedbackTemplates"`
	PolicyVersion     int                     `json:"policyVersion"`
	PolicyDocumentURL *string                 `json:"policyDocumentUrl"`
}
