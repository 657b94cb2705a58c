package declarations

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aiusage/disclosure/internal/platform/db"
)

const uniqueStudentAssignment = "declarations_student_assignment_key"

const selectColumns = `SELECT id::text, student_id::text, assignment_id::text, tools_used, categories,
	frequency, context_text, policy_version, submitted_at, expires_at FROM declarations`

// Repository persists declarations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts d. A concurrent duplicate for the same student and
// assignment surfaces as ErrDuplicate.
func (r *Repository) Create(ctx context.Context, d Declaration) error {
	categories := make([]string, len(d.Categories))
	for i, c := range d.Categories {
		categories[i] = string(c)
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM declarations WHERE student_id = $1 AND assignment_id = $2)`,
			d.StudentID, d.AssignmentID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrDuplicate
		}
		_, err := tx.Exec(ctx, `INSERT INTO declarations
			(id, student_id, assignment_id, tools_used, categories, frequency, context_text, policy_version, submitted_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			d.ID, d.StudentID, d.AssignmentID, d.ToolsUsed, categories, string(d.Frequency),
			d.ContextText, d.PolicyVersion, d.SubmittedAt, d.ExpiresAt)
		return err
	})
	if db.IsUniqueViolation(err, uniqueStudentAssignment) {
		return ErrDuplicate
	}
	return err
}

// FindByID loads one declaration.
func (r *Repository) FindByID(ctx context.Context, id string) (Declaration, error) {
	d, err := scanDeclaration(r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Declaration{}, ErrNotFound
	}
	return d, err
}

// FindByStudentAndAssignment loads the declaration for the pair, if any.
func (r *Repository) FindByStudentAndAssignment(ctx context.Context, studentID, assignmentID string) (Declaration, bool, error) {
	d, err := scanDeclaration(r.pool.QueryRow(ctx,
		selectColumns+` WHERE student_id = $1 AND assignment_id = $2`, studentID, assignmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Declaration{}, false, nil
	}
	if err != nil {
		return Declaration{}, false, err
	}
	return d, true, nil
}

// ListByStudent returns a student's declarations, newest first.
func (r *Repository) ListByStudent(ctx context.Context, studentID string) ([]Declaration, error) {
	rows, err := r.pool.Query(ctx, selectColumns+` WHERE student_id = $1 ORDER BY submitted_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteExpired removes declarations whose expiry is strictly before now.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM declarations WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanDeclaration(row pgx.Row) (Declaration, error) {
	var (
		d          Declaration
		categories []string
		frequency  string
	)
	if err := row.Scan(&d.ID, &d.StudentID, &d.AssignmentID, &d.ToolsUsed, &categories,
		&frequency, &d.ContextText, &d.PolicyVersion, &d.SubmittedAt, &d.ExpiresAt); err != nil {
		return Declaration{}, err
	}
	d.Categories = make([]Category, len(categories))
	for i, c := range categories {
		d.Categories[i] = Category(c)
	}
	d.Frequency = Frequency(frequency)
	return d, nil
}
