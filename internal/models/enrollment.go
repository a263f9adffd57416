package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. A dropped enrollment is a soft delete: the
// row survives and may be re-activated by a later enrollment.
const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
)

// Enrollment captures a student's registration to a course.
// At most one row exists per (student_id, course_id).
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	CourseID       string           `db:"course_id" json:"course_id"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollment_date"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with course and teacher info.
type EnrollmentDetail struct {
	Enrollment
	CourseName    string `db:"course_name" json:"course_name"`
	CourseCode    string `db:"course_code" json:"course_code"`
	CourseCredits int    `db:"course_credits" json:"course_credits"`
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
}

// RosterEntry is one enrolled student on a course roster.
type RosterEntry struct {
	Enrollment
	StudentName     string `db:"student_name" json:"student_name"`
	StudentUsername string `db:"student_username" json:"student_username"`
	StudentEmail    string `db:"student_email" json:"student_email"`
}
