package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ScheduleSlot describes one weekly meeting of a course.
type ScheduleSlot struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Classroom string `json:"classroom" validate:"required"`
}

// ScheduleSlots is stored as a JSONB column.
type ScheduleSlots []ScheduleSlot

// Value implements driver.Valuer.
func (s ScheduleSlots) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *ScheduleSlots) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported schedule type %T", src)
	}
}

// Course represents a course offered by a teacher.
type Course struct {
	ID          string        `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Code        string        `db:"code" json:"code"`
	Description string        `db:"description" json:"description"`
	TeacherID   string        `db:"teacher_id" json:"teacher_id"`
	Credits     int           `db:"credits" json:"credits"`
	Capacity    int           `db:"capacity" json:"capacity"`
	Schedule    ScheduleSlots `db:"schedule" json:"schedule"`
	Active      bool          `db:"active" json:"active"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with teacher info for listings.
type CourseDetail struct {
	Course
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	TeacherEmail string `db:"teacher_email" json:"teacher_email"`
}
