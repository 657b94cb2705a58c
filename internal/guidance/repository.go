package guidance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/platform/db"
)

const uniqueAssignment = "assignment_guidance_assignment_id_key"

const returning = ` RETURNING id::text, assignment_id::text, permitted_text, prohibited_text,
	permitted_categories, prohibited_categories, examples, created_by::text, locked_at, created_at`

// Repository persists guidance.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByAssignment loads the guidance for an assignment.
func (r *Repository) FindByAssignment(ctx context.Context, assignmentID string) (Guidance, error) {
	row := r.pool.QueryRow(ctx, `SELECT id::text, assignment_id::text, permitted_text, prohibited_text,
		permitted_categories, prohibited_categories, examples, created_by::text, locked_at, created_at
		FROM assignment_guidance WHERE assignment_id = $1`, assignmentID)
	g, err := scanGuidance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Guidance{}, ErrNotFound
	}
	return g, err
}

// Create inserts g.
func (r *Repository) Create(ctx context.Context, g Guidance) (Guidance, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO assignment_guidance
		(id, assignment_id, permitted_text, prohibited_text, permitted_categories, prohibited_categories, examples, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`+returning,
		g.ID, g.AssignmentID, g.PermittedText, g.ProhibitedText,
		categoryStrings(g.PermittedCategories), categoryStrings(g.ProhibitedCategories),
		g.Examples, g.CreatedBy, g.CreatedAt)
	out, err := scanGuidance(row)
	if db.IsUniqueViolation(err, uniqueAssignment) {
		return Guidance{}, ErrExists
	}
	return out, err
}

// Update rewrites the editable fields of unlocked guidance.
func (r *Repository) Update(ctx context.Context, g Guidance) (Guidance, error) {
	row := r.pool.QueryRow(ctx, `UPDATE assignment_guidance
		SET permitted_text = $2, prohibited_text = $3, permitted_categories = $4,
			prohibited_categories = $5, examples = $6
		WHERE assignment_id = $1 AND locked_at IS NULL`+returning,
		g.AssignmentID, g.PermittedText, g.ProhibitedText,
		categoryStrings(g.PermittedCategories), categoryStrings(g.ProhibitedCategories), g.Examples)
	out, err := scanGuidance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, findErr := r.FindByAssignment(ctx, g.AssignmentID); findErr != nil {
			return Guidance{}, findErr
		}
		return Guidance{}, ErrLocked
	}
	return out, err
}

// Lock stamps locked_at on the assignment's guidance if it is not already set.
func (r *Repository) Lock(ctx context.Context, assignmentID string, at time.Time) (Guidance, error) {
	row := r.pool.QueryRow(ctx, `UPDATE assignment_guidance
		SET locked_at = COALESCE(locked_at, $2)
		WHERE assignment_id = $1`+returning, assignmentID, at)
	g, err := scanGuidance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Guidance{}, ErrNotFound
	}
	return g, err
}

// LockDue locks every unlocked guidance whose assignment is past due.
func (r *Repository) LockDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE assignment_guidance g
		SET locked_at = $1
		FROM assignments a
		WHERE a.id = g.assignment_id AND g.locked_at IS NULL AND a.due_date < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanGuidance(row pgx.Row) (Guidance, error) {
	var (
		g                     Guidance
		permitted, prohibited []string
	)
	if err := row.Scan(&g.ID, &g.AssignmentID, &g.PermittedText, &g.ProhibitedText,
		&permitted, &prohibited, &g.Examples, &g.CreatedBy, &g.LockedAt, &g.CreatedAt); err != nil {
		return Guidance{}, err
	}
	g.PermittedCategories = toCategories(permitted)
	g.ProhibitedCategories = toCategories(prohibited)
	return g, nil
}

func categoryStrings(in []declarations.Category) []string {
	out := make([]string, len(in))
	for i, c := range in {
		out[i] = string(c)
	}
	return out
}

func toCategories(in []string) []declarations.Category {
	out := make([]declarations.Category, len(in))
	for i, c := range in {
		out[i] = declarations.Category(c)
	}
	return out
}
