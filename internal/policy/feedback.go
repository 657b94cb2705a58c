package policy

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/guidance"
)

// DeclarationReader loads a student's own declaration.
type DeclarationReader interface {
	Get(ctx context.Context, studentID, declarationID string) (declarations.Declaration, error)
}

// GuidanceReader loads the guidance published for an assignment.
type GuidanceReader interface {
	Get(ctx context.Context, assignmentID string) (guidance.Guidance, error)
}

// FeedbackService builds the feedback shown to a student for a declaration.
type FeedbackService struct {
	store        Store
	declarations DeclarationReader
	guidance     GuidanceReader
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(store Store, decls DeclarationReader, guide GuidanceReader) *FeedbackService {
	return &FeedbackService{store: store, declarations: decls, guidance: guide}
}

// Feedback assembles the feedback for one of the student's declarations:
// the assignment guidance, the templates of the policy version the
// declaration was made under that match its categories, and a link to the
// current policy.
func (s *FeedbackService) Feedback(ctx context.Context, studentID, declarationID string) (Feedback, error) {
	d, err := s.declarations.Get(ctx, studentID, declarationID)
	if err != nil {
		return Feedback{}, err
	}

	var (
		g         *guidance.Guidance
		templates []Template
		current   Document
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		found, err := s.guidance.Get(gctx, d.AssignmentID)
		if errors.Is(err, guidance.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		g = &found
		return nil
	})
	eg.Go(func() error {
		var err error
		templates, err = s.store.TemplatesForVersion(gctx, d.PolicyVersion)
		return err
	})
	eg.Go(func() error {
		var err error
		current, err = s.store.Current(gctx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return Feedback{}, err
	}

	out := Feedback{
		DeclarationID:     d.ID,
		Categories:        d.Categories,
		Frequency:         d.Frequency,
		FeedbackTemplates: []FeedbackTemplate{},
		PolicyVersion:     d.PolicyVersion,
		PolicyDocumentURL: current.DocumentURL,
	}
	if g != nil {
		out.Guidance = &FeedbackGuidance{
			PermittedText:  g.PermittedText,
			ProhibitedText: g.ProhibitedText,
			Examples:       g.Examples,
		}
	}
	for _, t := range templates {
		if !t.appliesTo(d.Categories) {
			continue
		}
		out.FeedbackTemplates = append(out.FeedbackTemplates, FeedbackTemplate{
			Category:         t.Category,
			TriggerCondition: t.TriggerCondition,
			TemplateText:     t.TemplateText,
		})
	}
	return out, nil
}
