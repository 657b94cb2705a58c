package accounts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aiusage/disclosure/internal/platform/validation"
	"github.com/aiusage/disclosure/internal/rbac"
)

// DefaultTokenTTL is the lifetime of tokens issued by Login.
const DefaultTokenTTL = time.Hour

// Store is the persistence contract behind Service.
type Store interface {
	FindByEmail(ctx context.Context, email string) (Account, bool, error)
	Create(ctx context.Context, a Account) error
	SetPrivacyAck(ctx context.Context, userID string, version int) error
}

// AccessRecorder logs acknowledgements to the access log.
type AccessRecorder interface {
	Record(ctx context.Context, actorID string, capability string, resourceID *string)
}

// Config tunes token issuance and the current privacy notice.
type Config struct {
	Secret               string
	TokenTTL             time.Duration
	PrivacyNoticeVersion int
	BcryptCost           int
}

// Service implements account use cases.
type Service struct {
	store     Store
	recorder  AccessRecorder
	cfg       Config
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
	idGen     func() string
	// dummyHash keeps unknown-email logins as slow as wrong-password ones.
	dummyHash []byte
}

// NewService constructs a Service. recorder may be nil.
func NewService(store Store, recorder AccessRecorder, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cfg.BcryptCost)
	return &Service{
		store:     store,
		recorder:  recorder,
		cfg:       cfg,
		validator: validation.New(),
		logger:    logger,
		now:       time.Now,
		idGen:     uuid.NewString,
		dummyHash: dummy,
	}
}

// Register creates an account with a bcrypt hashed password.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Profile, error) {
	req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return Profile{}, err
	}
	if _, exists, err := s.store.FindByEmail(ctx, req.Email); err != nil {
		return Profile{}, err
	} else if exists {
		return Profile{}, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return Profile{}, err
	}
	a := Account{
		ID:           s.idGen(),
		Email:        req.Email,
		Name:         req.Name,
		Role:         rbac.Role(req.Role),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, a); err != nil {
		return Profile{}, err
	}
	return Profile{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}, nil
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Token, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return Token{}, ErrInvalidCredentials
	}
	a, exists, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return Token{}, err
	}
	if !exists {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return Token{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}
	now := s.now().UTC()
	raw, err := rbac.IssueToken(s.cfg.Secret, a.ID, s.cfg.TokenTTL, now)
	if err != nil {
		return Token{}, err
	}
	return Token{Token: raw, ExpiresAt: now.Add(s.cfg.TokenTTL)}, nil
}

// AcknowledgePrivacyNotice stores the acknowledged version. Only the current
// notice version may be acknowledged.
func (s *Service) AcknowledgePrivacyNotice(ctx context.Context, p *rbac.Principal, req AckRequest) error {
	if p == nil {
		return rbac.ErrUnauthenticated
	}
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	if req.Version != s.cfg.PrivacyNoticeVersion {
		return ErrNoticeVersion
	}
	if err := s.store.SetPrivacyAck(ctx, p.ID, req.Version); err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.Record(ctx, p.ID, "privacy_notice:ack", nil)
	}
	return nil
}
