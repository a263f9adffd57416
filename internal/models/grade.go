package models

import "time"

// GradeType identifies the assessment a grade belongs to.
type GradeType string

const (
	GradeTypeMidterm    GradeType = "midterm"
	GradeTypeFinal      GradeType = "final"
	GradeTypeAssignment GradeType = "assignment"
	GradeTypeQuiz       GradeType = "quiz"
)

// Valid returns true when the grade type is a supported value.
func (t GradeType) Valid() bool {
	switch t {
	case GradeTypeMidterm, GradeTypeFinal, GradeTypeAssignment, GradeTypeQuiz:
		return true
	default:
		return false
	}
}

// DisplayName returns the human readable label used in notifications.
func (t GradeType) DisplayName() string {
	switch t {
	case GradeTypeMidterm:
		return "Midterm Exam"
	case GradeTypeFinal:
		return "Final Exam"
	case GradeTypeAssignment:
		return "Assignment"
	case GradeTypeQuiz:
		return "Quiz"
	default:
		return string(t)
	}
}

// Grade is a single score for a student in a course.
// At most one row exists per (student_id, course_id, type).
type Grade struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Score     float64   `db:"score" json:"score"`
	Type      GradeType `db:"type" json:"type"`
	Comment   *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GradeDetail enriches Grade with course info for student views.
type GradeDetail struct {
	Grade
	CourseName string `db:"course_name" json:"course_name"`
	CourseCode string `db:"course_code" json:"course_code"`
}

// CourseGradeRow enriches Grade with student info for teacher views.
type CourseGradeRow struct {
	Grade
	StudentName     string `db:"student_name" json:"student_name"`
	StudentUsername string `db:"student_username" json:"student_username"`
}
