package enrolment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs enrolment queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsStudentEnrolled reports whether studentID is enrolled as a student in courseID.
func (r *Repository) IsStudentEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrolments WHERE user_id = $1 AND course_id = $2 AND role = 'student')`,
		studentID, courseID)
}

// IsInstructor reports whether userID teaches courseID.
func (r *Repository) IsInstructor(ctx context.Context, userID, courseID string) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrolments WHERE user_id = $1 AND course_id = $2 AND role = 'instructor')`,
		userID, courseID)
}

// FacultyExists reports whether facultyID names a faculty.
func (r *Repository) FacultyExists(ctx context.Context, facultyID string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM faculties WHERE id = $1)`, facultyID)
}

func (r *Repository) exists(ctx context.Context, sql string, args ...any) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// GetCourse loads a course by ID.
func (r *Repository) GetCourse(ctx context.Context, courseID string) (Course, error) {
	var c Course
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, code, name, faculty_id::text FROM courses WHERE id = $1`, courseID,
	).Scan(&c.ID, &c.Code, &c.Name, &c.FacultyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Course{}, ErrCourseNotFound
		}
		return Course{}, err
	}
	return c, nil
}

// GetAssignment loads an assignment by ID.
func (r *Repository) GetAssignment(ctx context.Context, assignmentID string) (Assignment, error) {
	var a Assignment
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, course_id::text, title, due_date FROM assignments WHERE id = $1`, assignmentID,
	).Scan(&a.ID, &a.CourseID, &a.Title, &a.DueDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrAssignmentNotFound
		}
		return Assignment{}, err
	}
	return a, nil
}

// StudentCourses lists the courses studentID is enrolled in as a student.
func (r *Repository) StudentCourses(ctx context.Context, studentID string) ([]Course, error) {
	return r.courses(ctx, `SELECT c.id::text, c.code, c.name, c.faculty_id::text
		FROM enrolments e JOIN courses c ON c.id = e.course_id
		WHERE e.user_id = $1 AND e.role = 'student'
		ORDER BY c.code`, studentID)
}

// InstructorCourses lists the courses userID teaches.
func (r *Repository) InstructorCourses(ctx context.Context, userID string) ([]Course, error) {
	return r.courses(ctx, `SELECT c.id::text, c.code, c.name, c.faculty_id::text
		FROM enrolments e JOIN courses c ON c.id = e.course_id
		WHERE e.user_id = $1 AND e.role = 'instructor'
		ORDER BY c.code`, userID)
}

func (r *Repository) courses(ctx context.Context, sql string, args ...any) ([]Course, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.FacultyID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AssignmentsForStudent lists assignments across the student's courses along
// with any declaration already submitted.
func (r *Repository) AssignmentsForStudent(ctx context.Context, studentID string) ([]StudentAssignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id::text, a.title, a.due_date,
			c.id::text, c.code, c.name,
			d.id::text, d.submitted_at
		FROM enrolments e
		JOIN courses c ON c.id = e.course_id
		JOIN assignments a ON a.course_id = c.id
		LEFT JOIN declarations d ON d.assignment_id = a.id AND d.student_id = e.user_id
		WHERE e.user_id = $1 AND e.role = 'student'
		ORDER BY a.due_date, a.title`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StudentAssignment
	for rows.Next() {
		var (
			a           StudentAssignment
			declID      *string
			submittedAt *time.Time
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.DueDate, &a.Course.ID, &a.Course.Code, &a.Course.Name, &declID, &submittedAt); err != nil {
			return nil, err
		}
		if declID != nil && submittedAt != nil {
			a.Declaration = &DeclarationRef{ID: *declID, SubmittedAt: *submittedAt}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AssignmentsForCourse lists a course's assignments with their guidance state.
func (r *Repository) AssignmentsForCourse(ctx context.Context, courseID string) ([]CourseAssignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id::text, a.course_id::text, a.title, a.due_date,
			g.id::text, g.locked_at
		FROM assignments a
		LEFT JOIN assignment_guidance g ON g.assignment_id = a.id
		WHERE a.course_id = $1
		ORDER BY a.due_date, a.title`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CourseAssignment
	for rows.Next() {
		var (
			a          CourseAssignment
			guidanceID *string
			lockedAt   *time.Time
		)
		if err := rows.Scan(&a.ID, &a.CourseID, &a.Title, &a.DueDate, &guidanceID, &lockedAt); err != nil {
			return nil, err
		}
		if guidanceID != nil {
			a.Guidance = &GuidanceRef{ID: *guidanceID, LockedAt: lockedAt}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
