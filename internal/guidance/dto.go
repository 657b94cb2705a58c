package guidance

import (
	"strings"

	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/platform/httpx"
)

// Request is the body of a guidance create or update.
type Request struct {
	PermittedText        string                  `json:"permittedText" validate:"required,max=2000"`
	ProhibitedText       string                  `json:"prohibitedText" validate:"required,max=2000"`
	PermittedCategories  []declarations.Category `json:"permittedCategories" validate:"omitempty,max=4,dive,oneof=explanation structure rephrasing code_assistance"`
	ProhibitedCategories []declarations.Category `json:"prohibitedCategories" validate:"omitempty,max=4,dive,oneof=explanation structure rephrasing code_assistance"`
	Examples             *Examples               `json:"examples" validate:"omitempty"`
}

func (r *Request) normalize() {
	r.PermittedText = strings.TrimSpace(r.PermittedText)
	r.ProhibitedText = strings.TrimSpace(r.ProhibitedText)
}

// overlap rejects a category listed as both permitted and prohibited.
func (r Request) overlap() error {
	permitted := make(map[declarations.Category]struct{}, len(r.PermittedCategories))
	for _, c := range r.PermittedCategories {
		permitted[c] = struct{}{}
	}
	for _, c := range r.ProhibitedCategories {
		if _, ok := permitted[c]; ok {
			return httpx.NewValidationError(map[string]string{
				"prohibitedCategories": "categories cannot be both permitted and prohibited",
			})
		}
	}
	return nil
}
