package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads user identity rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindUser fetches the role and acknowledged privacy notice version for id.
func (r *Repository) FindUser(ctx context.Context, id string) (UserRecord, error) {
	var (
		rec     UserRecord
		roleRaw string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, role, privacy_ack_version FROM users WHERE id = $1`, id,
	).Scan(&rec.ID, &roleRaw, &rec.PrivacyAckVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, err
	}
	role, err := ParseRole(roleRaw)
	if err != nil {
		return UserRecord{}, err
	}
	rec.Role = role
	return rec, nil
}
