package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-sis-api/internal/models"
)

// AttendanceRepository handles persistence of attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert inserts or overwrites the record keyed on (student, course, date).
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO attendance (id, student_id, course_id, date, status, remark, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (student_id, course_id, date)
        DO UPDATE SET status = EXCLUDED.status, remark = EXCLUDED.remark, updated_at = EXCLUDED.updated_at
        RETURNING id, student_id, course_id, date, status, remark, created_at, updated_at`
	var stored models.Attendance
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.StudentID, record.CourseID, record.Date, record.Status, record.Remark, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// BulkInsert inserts records without deduplicating against existing keys.
// The whole batch runs in one transaction; a duplicate (student, course,
// date) rolls it back and surfaces ErrDuplicate.
func (r *AttendanceRepository) BulkInsert(ctx context.Context, records []models.Attendance) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk attendance: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()
	const query = `INSERT INTO attendance (id, student_id, course_id, date, status, remark, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, query,
			rec.ID, rec.StudentID, rec.CourseID, rec.Date, rec.Status, rec.Remark, rec.CreatedAt, rec.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("bulk insert attendance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk attendance: %w", err)
	}
	committed = true
	return nil
}

// FindByID returns an attendance record by id.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	const query = `SELECT id, student_id, course_id, date, status, remark, created_at, updated_at FROM attendance WHERE id = $1`
	var record models.Attendance
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// Update overwrites status and remark of an existing record.
func (r *AttendanceRepository) Update(ctx context.Context, id string, status models.AttendanceStatus, remark *string) (*models.Attendance, error) {
	const query = `UPDATE attendance SET status = $2, remark = $3, updated_at = $4 WHERE id = $1
        RETURNING id, student_id, course_id, date, status, remark, created_at, updated_at`
	var record models.Attendance
	if err := r.db.GetContext(ctx, &record, query, id, status, remark, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update attendance: %w", err)
	}
	return &record, nil
}

// ListByStudent returns a student's attendance with course info.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceDetail, error) {
	const query = `SELECT a.id, a.student_id, a.course_id, a.date, a.status, a.remark, a.created_at, a.updated_at,
        c.name AS course_name, c.code AS course_code
        FROM attendance a
        LEFT JOIN courses c ON c.id = a.course_id
        WHERE a.student_id = $1
        ORDER BY a.date DESC`
	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return records, nil
}

// ListByCourse returns the attendance of a course with student info.
func (r *AttendanceRepository) ListByCourse(ctx context.Context, courseID string) ([]models.CourseAttendanceRow, error) {
	const query = `SELECT a.id, a.student_id, a.course_id, a.date, a.status, a.remark, a.created_at, a.updated_at,
        u.name AS student_name, u.username AS student_username
        FROM attendance a
        LEFT JOIN users u ON u.id = a.student_id
        WHERE a.course_id = $1
        ORDER BY a.date DESC, u.name`
	var records []models.CourseAttendanceRow
	if err := r.db.SelectContext(ctx, &records, query, courseID); err != nil {
		return nil, fmt.Errorf("list course attendance: %w", err)
	}
	return records, nil
}
