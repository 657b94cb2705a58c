// Package accounts handles registration, password login and privacy notice
// acknowledgement.
package accounts

import (
	"fmt"
	"time"

	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/rbac"
)

// Errors returned by the package.
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthenticated)
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", httpx.ErrConflict)
	ErrNoticeVersion      = httpx.NewValidationError(map[string]string{"version": "does not match the current privacy notice"})
)

// Account is a stored user with credentials.
type Account struct {
	ID                string
	Email             string
	Name              string
	Role              rbac.Role
	PasswordHash      string
	PrivacyAckVersion int
	CreatedAt         time.Time
}

// Token is an issued bearer token.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Profile is the public view of a registered account.
type Profile struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  rbac.Role `json:"role"`
}
