package aggregate

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aiusage/disclosure/internal/declarations"
)

// Repository loads aggregate inputs from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FacultyCourseIDs lists the courses of a faculty.
func (r *Repository) FacultyCourseIDs(ctx context.Context, facultyID string) ([]string, error) {
	return r.ids(ctx, `SELECT id::text FROM courses WHERE faculty_id = $1 ORDER BY id`, facultyID)
}

// CourseIDs lists every course.
func (r *Repository) CourseIDs(ctx context.Context) ([]string, error) {
	return r.ids(ctx, `SELECT id::text FROM courses ORDER BY id`)
}

// FacultyIDs lists every faculty.
func (r *Repository) FacultyIDs(ctx context.Context) ([]string, error) {
	return r.ids(ctx, `SELECT id::text FROM faculties ORDER BY id`)
}

func (r *Repository) ids(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// EnrolledStudents returns the students enrolled in each of courseIDs.
func (r *Repository) EnrolledStudents(ctx context.Context, courseIDs []string) (map[string]map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT course_id::text, user_id::text
		FROM enrolments
		WHERE course_id = ANY($1) AND role = 'student'`, courseIDs)
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

// Declarations returns the unexpired declarations on assignments of courseIDs.
func (r *Repository) Declarations(ctx context.Context, courseIDs []string, now time.Time) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT d.student_id::text, a.course_id::text, d.assignment_id::text,
			d.categories, d.frequency, d.submitted_at, d.expires_at
		FROM declarations d
		JOIN assignments a ON a.id = d.assignment_id
		WHERE a.course_id = ANY($1) AND d.expires_at >= $2`, courseIDs, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			rec        Record
			categories []string
			frequency  string
		)
		if err := rows.Scan(&rec.StudentID, &rec.CourseID, &rec.AssignmentID, &categories, &frequency, &rec.SubmittedAt, &rec.ExpiresAt); err != nil {
			return nil, err
		}
		rec.Categories = make([]declarations.Category, 0, len(categories))
		for _, c := range categories {
			rec.Categories = append(rec.Categories, declarations.Category(c))
		}
		rec.Frequency = declarations.Frequency(frequency)
		out = append(out, rec)
	}
	return out, rows.Err()
}
