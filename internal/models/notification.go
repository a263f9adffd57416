package models

import "time"

// NotificationType classifies the source of a notification.
type NotificationType string

const (
	NotificationTypeSystem     NotificationType = "system"
	NotificationTypeCourse     NotificationType = "course"
	NotificationTypeEnrollment NotificationType = "enrollment"
	NotificationTypeGrade      NotificationType = "grade"
	NotificationTypeAttendance NotificationType = "attendance"
)

// Valid returns true when the type is a supported value.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeSystem, NotificationTypeCourse, NotificationTypeEnrollment, NotificationTypeGrade, NotificationTypeAttendance:
		return true
	default:
		return false
	}
}

// Notification is an append-only inbox entry for a user. It is written as a
// side effect of another entity's mutation and never referenced back.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Type      NotificationType `db:"type" json:"type"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
