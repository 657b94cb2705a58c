package policy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aiusage/disclosure/internal/platform/validation"
)

// Store is the persistence contract behind Service.
type Store interface {
	Current(ctx context.Context) (Document, error)
	Publish(ctx context.Context, d Document) (Document, error)
	VersionExists(ctx context.Context, version int) (bool, error)
	CreateTemplate(ctx context.Context, t Template) error
	TemplatesForVersion(ctx context.Context, version int) ([]Template, error)
}

// Service implements the policy register.
type Service struct {
	store     Store
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
	idGen     func() string
}

// NewService constructs a Service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		validator: validation.New(),
		logger:    logger,
		now:       time.Now,
		idGen:     uuid.NewString,
	}
}

// Current returns the current policy document.
func (s *Service) Current(ctx context.Context) (Document, error) {
	return s.store.Current(ctx)
}

// CurrentVersion returns the version of the current policy, or zero when none
// has been published yet.
func (s *Service) CurrentVersion(ctx context.Context) (int, error) {
	d, err := s.store.Current(ctx)
	if errors.Is(err, ErrNoCurrent) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return d.Version, nil
}

// Upload registers a new current policy version. The version must be strictly
// greater than the current one.
func (s *Service) Upload(ctx context.Context, userID string, req UploadRequest) (Document, error) {
	req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return Document{}, err
	}
	d := Document{
		ID:         s.idGen(),
		Version:    req.Version,
		Title:      req.Title,
		UploadedBy: userID,
		IsCurrent:  true,
		UploadedAt: s.now().UTC(),
	}
	if req.DocumentURL != "" {
		url := req.DocumentURL
		d.DocumentURL = &url
	}
	out, err := s.store.Publish(ctx, d)
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("policy published", slog.Int("version", out.Version), slog.String("uploaded_by", userID))
	return out, nil
}

// AddTemplate attaches a feedback template to a registered policy version.
func (s *Service) AddTemplate(ctx context.Context, userID string, req TemplateRequest) (Template, error) {
	req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return Template{}, err
	}
	ok, err := s.store.VersionExists(ctx, req.PolicyVersion)
	if err != nil {
		return Template{}, err
	}
	if !ok {
		return Template{}, ErrUnknownVersion
	}
	t := Template{
		ID:               s.idGen(),
		Category:         req.Category,
		TriggerCondition: req.TriggerCondition,
		TemplateText:     req.TemplateText,
		PolicyVersion:    req.PolicyVersion,
		CreatedBy:        userID,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return Template{}, err
	}
	return t, nil
}
