package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type principalKey struct{}

// WithPrincipal stores principal on ctx.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the request principal or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// UserRecord is the persisted identity a token subject resolves to.
type UserRecord struct {
	ID                string
	Role              Role
	PrivacyAckVersion int
}

// UserLookup loads user identity records.
type UserLookup interface {
	FindUser(ctx context.Context, id string) (UserRecord, error)
}

// ErrUserNotFound is returned by UserLookup when the subject is unknown.
var ErrUserNotFound = errors.New("rbac: user not found")

// TokenResolver turns signed HS256 bearer tokens into principals.
type TokenResolver struct {
	secret []byte
	users  UserLookup
	now    func() time.Time
}

// NewTokenResolver constructs a resolver verifying tokens with secret.
func NewTokenResolver(secret string, users UserLookup) *TokenResolver {
	return &TokenResolver{secret: []byte(secret), users: users, now: time.Now}
}

// Resolve verifies raw and loads the principal for its subject.
func (t *TokenResolver) Resolve(ctx context.Context, raw string) (*Principal, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: token subject missing", ErrUnauthenticated)
	}
	user, err := t.users.FindUser(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrUnauthenticated)
		}
		return nil, err
	}
	return NewPrincipal(user.ID, user.Role, user.PrivacyAckVersion)
}

// IssueToken signs a token for subject. Used by operator tooling and tests.
func IssueToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
