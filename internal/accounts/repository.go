package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aiusage/disclosure/internal/platform/db"
	"github.com/aiusage/disclosure/internal/rbac"
)

const uniqueEmail = "users_email_key"

// Repository persists accounts in the users table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByEmail loads the account registered under email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (Account, bool, error) {
	var (
		a    Account
		role string
	)
	err := r.pool.QueryRow(ctx, `SELECT id::text, email, name, role, password_hash, privacy_ack_version, created_at
		FROM users WHERE email = $1`, email,
	).Scan(&a.ID, &a.Email, &a.Name, &role, &a.PasswordHash, &a.PrivacyAckVersion, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	a.Role = rbac.Role(role)
	return a, true, nil
}

// Create inserts a.
func (r *Repository) Create(ctx context.Context, a Account) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO users (id, email, name, role, password_hash, privacy_ack_version, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)`,
		a.ID, a.Email, a.Name, string(a.Role), a.PasswordHash, a.CreatedAt)
	if db.IsUniqueViolation(err, uniqueEmail) {
		return ErrEmailTaken
	}
	return err
}

// SetPrivacyAck records the acknowledged notice version for userID.
func (r *Repository) SetPrivacyAck(ctx context.Context, userID string, version int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET privacy_ack_version = $2 WHERE id = $1`, userID, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrUserNotFound
	}
	return nil
}
