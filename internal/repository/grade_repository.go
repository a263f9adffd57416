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

// GradeRepository handles persistence of grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Exists reports whether a grade already exists for the compound key.
func (r *GradeRepository) Exists(ctx context.Context, studentID, courseID string, gradeType models.GradeType) (bool, error) {
	const query = `SELECT 1 FROM grades WHERE student_id = $1 AND course_id = $2 AND type = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, gradeType); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check grade exists: %w", err)
	}
	return true, nil
}

// Upsert inserts or overwrites the grade keyed on (student, course, type).
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) (*models.Grade, error) {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, student_id, course_id, score, type, comment, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (student_id, course_id, type)
        DO UPDATE SET score = EXCLUDED.score, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at
        RETURNING id, student_id, course_id, score, type, comment, created_at, updated_at`
	var stored models.Grade
	if err := r.db.GetContext(ctx, &stored, query,
		grade.ID, grade.StudentID, grade.CourseID, grade.Score, grade.Type, grade.Comment, grade.CreatedAt, grade.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert grade: %w", err)
	}
	return &stored, nil
}

// ListByStudent returns a student's grades with course info.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.GradeDetail, error) {
	const query = `SELECT g.id, g.student_id, g.course_id, g.score, g.type, g.comment, g.created_at, g.updated_at,
        c.name AS course_name, c.code AS course_code
        FROM grades g
        LEFT JOIN courses c ON c.id = g.course_id
        WHERE g.student_id = $1
        ORDER BY g.created_at DESC`
	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return grades, nil
}

// ListByCourse returns all grades of a course with student info.
func (r *GradeRepository) ListByCourse(ctx context.Context, courseID string) ([]models.CourseGradeRow, error) {
	const query = `SELECT g.id, g.student_id, g.course_id, g.score, g.type, g.comment, g.created_at, g.updated_at,
        u.name AS student_name, u.username AS student_username
        FROM grades g
        LEFT JOIN users u ON u.id = g.student_id
        WHERE g.course_id = $1
        ORDER BY u.name, g.type`
	var grades []models.CourseGradeRow
	if err := r.db.SelectContext(ctx, &grades, query, courseID); err != nil {
		return nil, fmt.Errorf("list course grades: %w", err)
	}
	return grades, nil
}

// Delete removes a grade by id. sql.ErrNoRows when absent.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM grades WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
