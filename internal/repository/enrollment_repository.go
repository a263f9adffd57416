package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-sis-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByStudentAndCourse returns the single enrollment row for the pair,
// regardless of status. sql.ErrNoRows when none exists.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, status, enrollment_date, created_at, updated_at
        FROM enrollments WHERE student_id = $1 AND course_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CountEnrolled returns the number of active enrollments for a course.
func (r *EnrollmentRepository) CountEnrolled(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID, models.EnrollmentStatusEnrolled); err != nil {
		return 0, fmt.Errorf("count enrolled: %w", err)
	}
	return count, nil
}

// CreateWithinCapacity inserts a new enrollment only while the course still
// has a free seat; the count guard and the insert execute as one statement
// so two racing enrollments cannot both take the last seat. Returns false
// when the course is full, ErrDuplicate when a row for the pair already
// exists.
func (r *EnrollmentRepository) CreateWithinCapacity(ctx context.Context, enrollment *models.Enrollment, capacity int) (bool, error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, status, enrollment_date, created_at, updated_at)
        SELECT $1, $2, $3, $4, $5, $6, $7
        WHERE (SELECT COUNT(*) FROM enrollments WHERE course_id = $3 AND status = $4) < $8`
	result, err := r.db.ExecContext(ctx, query,
		enrollment.ID, enrollment.StudentID, enrollment.CourseID, enrollment.Status,
		enrollment.EnrollmentDate, enrollment.CreatedAt, enrollment.UpdatedAt, capacity)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrDuplicate
		}
		return false, fmt.Errorf("create enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create enrollment: %w", err)
	}
	return rows > 0, nil
}

// ReactivateWithinCapacity flips a dropped enrollment back to enrolled,
// refreshing its enrollment date, only while a seat is free. The row keeps
// its identity. Returns false when the course is full.
func (r *EnrollmentRepository) ReactivateWithinCapacity(ctx context.Context, id, courseID string, capacity int, at time.Time) (bool, error) {
	const query = `UPDATE enrollments SET status = $2, enrollment_date = $3, updated_at = $3
        WHERE id = $1
        AND (SELECT COUNT(*) FROM enrollments WHERE course_id = $4 AND status = $2) < $5`
	result, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStatusEnrolled, at, courseID, capacity)
	if err != nil {
		return false, fmt.Errorf("reactivate enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reactivate enrollment: %w", err)
	}
	return rows > 0, nil
}

// UpdateStatus sets the status of an enrollment. The enrollment date is
// left untouched.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ListByStudent returns a student's enrollments with course and teacher info.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.status, e.enrollment_date, e.created_at, e.updated_at,
        c.name AS course_name, c.code AS course_code, c.credits AS course_credits, u.name AS teacher_name
        FROM enrollments e
        LEFT JOIN courses c ON c.id = e.course_id
        LEFT JOIN users u ON u.id = c.teacher_id
        WHERE e.student_id = $1
        ORDER BY e.enrollment_date DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListRoster returns the enrolled students of a course.
func (r *EnrollmentRepository) ListRoster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.status, e.enrollment_date, e.created_at, e.updated_at,
        u.name AS student_name, u.username AS student_username, u.email AS student_email
        FROM enrollments e
        LEFT JOIN users u ON u.id = e.student_id
        WHERE e.course_id = $1 AND e.status = $2
        ORDER BY u.name`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, courseID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return roster, nil
}
