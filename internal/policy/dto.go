package policy

import (
	"strings"

	"github.com/aiusage/disclosure/internal/declarations"
)

// UploadRequest registers a new policy version.
type UploadRequest struct {
	Version     int    `json:"version" validate:"required,min=1"`
	Title       string `json:"title" validate:"required,max=200"`
	DocumentURL string `json:"documentUrl" validate:"omitempty,url,max=2048"`
}

func (r *UploadRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.DocumentURL = strings.TrimSpace(r.DocumentURL)
}

// TemplateRequest adds a feedback template to a policy version.
type TemplateRequest struct {
	Category         *declarations.Category `json:"category" validate:"omitempty,oneof=explanation structure rephrasing code_assistance"`
	TriggerCondition string                 `json:"triggerCondition" validate:"required,max=500"`
	TemplateText     string                 `json:"templateText" validate:"required,max=4000"`
	PolicyVersion    int                    `json:"policyVersion" validate:"required,min=1"`
}

func (r *TemplateRequest) normalize() {
	r.TriggerCondition = strings.TrimSpace(r.TriggerCondition)
	r.TemplateText = strings.TrimSpace(r.TemplateText)
}
