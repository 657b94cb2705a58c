package audit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists audit entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists the entry.
func (r *Repository) Insert(ctx context.Context, e Entry) error {
	if r == nil || r.pool == nil {
		return errors.New("audit repository not initialised")
	}
	if e.ID == "" || e.ActorID == "" || e.Capability == "" {
		return errors.New("audit entry requires id/actor/capability")
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO access_log (id, actor_id, capability, resource_id, accessed_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.ActorID, e.Capability, e.ResourceID, e.AccessedAt, e.ExpiresAt)
	return err
}

// DeleteExpired removes entries whose expiry is strictly before now.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_log WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
