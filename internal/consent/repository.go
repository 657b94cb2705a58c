package consent

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists sharing preferences.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the stored preference. ok is false when no row exists.
func (r *Repository) Get(ctx context.Context, studentID, courseID string) (Preference, bool, error) {
	p := Preference{StudentID: studentID, CourseID: courseID}
	err := r.pool.QueryRow(ctx,
		`SELECT is_shared, updated_at FROM sharing_preferences WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID,
	).Scan(&p.IsShared, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Preference{}, false, nil
		}
		return Preference{}, false, err
	}
	return p, true, nil
}

// Upsert sets the flag for the pair, creating the row when absent.
func (r *Repository) Upsert(ctx context.Context, studentID, courseID string, shared bool, at time.Time) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO sharing_preferences (student_id, course_id, is_shared, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, course_id) DO UPDATE
		SET is_shared = EXCLUDED.is_shared, updated_at = EXCLUDED.updated_at`,
		studentID, courseID, shared, at)
	return err
}

// InsertDefault creates a shared row when none exists and leaves existing rows alone.
func (r *Repository) InsertDefault(ctx context.Context, studentID, courseID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO sharing_preferences (student_id, course_id, is_shared, updated_at)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (student_id, course_id) DO NOTHING`,
		studentID, courseID, at)
	return err
}

// StatusForStudent lists every course the student is enrolled in together with
// the stored preference, if any.
func (r *Repository) StatusForStudent(ctx context.Context, studentID string) ([]Status, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.id::text, c.code, c.name,
			COALESCE(sp.is_shared, TRUE), sp.updated_at
		FROM enrolments e
		JOIN courses c ON c.id = e.course_id
		LEFT JOIN sharing_preferences sp ON sp.student_id = e.user_id AND sp.course_id = e.course_id
		WHERE e.user_id = $1 AND e.role = 'student'
		ORDER BY c.code`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Status
	for rows.Next() {
		s := Status{StudentID: studentID}
		if err := rows.Scan(&s.CourseID, &s.CourseCode, &s.CourseName, &s.IsShared, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Revoked returns the students who opted out of sharing for any of courseIDs,
// keyed by course.
func (r *Repository) Revoked(ctx context.Context, courseIDs []string) (map[string]map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT course_id::text, student_id::text
		FROM sharing_preferences
		WHERE course_id = ANY($1) AND is_shared = FALSE`, courseIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]map[string]bool)
	for rows.Next() {
		var courseID, studentID string
		if err := rows.Scan(&courseID, &studentID); err != nil {
			return nil, err
		}
		if out[courseID] == nil {
			out[courseID] = make(map[string]bool)
		}
		out[courseID][studentID] = true
	}
	return out, rows.Err()
}
