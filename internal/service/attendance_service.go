package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-sis-api/internal/models"
	"github.com/noah-isme/campus-sis-api/internal/repository"
	appErrors "github.com/noah-isme/campus-sis-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	BulkInsert(ctx context.Context, records []models.Attendance) error
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	Update(ctx context.Context, id string, status models.AttendanceStatus, remark *string) (*models.Attendance, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.CourseAttendanceRow, error)
}

const attendanceDateLayout = "2006-01-02"

// RecordAttendanceRequest carries one attendance record submission.
type RecordAttendanceRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	CourseID  string  `json:"course_id" validate:"required"`
	Date      string  `json:"date" validate:"required"`
	Status    string  `json:"status" validate:"required"`
	Remark    *string `json:"remark"`
}

// UpdateAttendanceRequest carries the mutable fields of a record.
type UpdateAttendanceRequest struct {
	Status string  `json:"status" validate:"required"`
	Remark *string `json:"remark"`
}

// AttendanceService provides attendance use cases.
type AttendanceService struct {
	repo      attendanceRepository
	courses   enrollmentCourseReader
	notifier  dispatcher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(repo attendanceRepository, courses enrollmentCourseReader, notifier dispatcher, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{repo: repo, courses: courses, notifier: notifier, validator: validate, logger: logger}
}

// Record upserts a single attendance record keyed on (student, course,
// date). Recording the same day twice overwrites status and remark.
func (s *AttendanceService) Record(ctx context.Context, claims *models.JWTClaims, req RecordAttendanceRequest) (*models.Attendance, error) {
	record, course, err := s.buildRecord(ctx, claims, req)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}

	s.notifyRecorded(stored, course)

	s.logger.Info("attendance recorded",
		zap.String("student_id", stored.StudentID),
		zap.String("course_id", stored.CourseID),
		zap.String("status", string(stored.Status)))
	return stored, nil
}

// RecordBatch inserts a batch of records in one transaction. The batch is
// insert-only: any record whose (student, course, date) key already exists
// rolls the whole batch back with Conflict.
func (s *AttendanceService) RecordBatch(ctx context.Context, claims *models.JWTClaims, reqs []RecordAttendanceRequest) ([]models.Attendance, error) {
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty attendance batch")
	}

	records := make([]models.Attendance, 0, len(reqs))
	courses := make(map[string]*models.Course, 1)
	for i := range reqs {
		record, course, err := s.buildRecord(ctx, claims, reqs[i])
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
		courses[course.ID] = course
	}

	if err := s.repo.BulkInsert(ctx, records); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already recorded for a student in this batch")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance batch")
	}

	for i := range records {
		s.notifyRecorded(&records[i], courses[records[i].CourseID])
	}

	s.logger.Info("attendance batch recorded", zap.Int("count", len(records)))
	return records, nil
}

// Update overwrites status and remark of an existing record by id.
func (s *AttendanceService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	status := models.AttendanceStatus(req.Status)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch attendance")
	}

	course, err := s.ownedCourse(ctx, claims, existing.CourseID)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.Update(ctx, id, status, req.Remark)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}

	s.notifyRecorded(record, course)

	s.logger.Info("attendance updated", zap.String("attendance_id", id))
	return record, nil
}

// MyAttendance returns the caller's attendance with course info.
func (s *AttendanceService) MyAttendance(ctx context.Context, studentID string) ([]models.AttendanceDetail, error) {
	records, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// CourseAttendance returns the attendance of a course. Teachers only for
// their own.
func (s *AttendanceService) CourseAttendance(ctx context.Context, claims *models.JWTClaims, courseID string) ([]models.CourseAttendanceRow, error) {
	if _, err := s.ownedCourse(ctx, claims, courseID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course attendance")
	}
	return records, nil
}

func (s *AttendanceService) buildRecord(ctx context.Context, claims *models.JWTClaims, req RecordAttendanceRequest) (*models.Attendance, *models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	status := models.AttendanceStatus(req.Status)
	if !status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status")
	}
	date, err := time.Parse(attendanceDateLayout, req.Date)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance date, expected YYYY-MM-DD")
	}

	course, err := s.ownedCourse(ctx, claims, req.CourseID)
	if err != nil {
		return nil, nil, err
	}

	return &models.Attendance{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Date:      date,
		Status:    status,
		Remark:    req.Remark,
	}, course, nil
}

func (s *AttendanceService) ownedCourse(ctx context.Context, claims *models.JWTClaims, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	if claims.Role == models.RoleTeacher && course.TeacherID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the teacher of this course")
	}
	return course, nil
}

func (s *AttendanceService) notifyRecorded(record *models.Attendance, course *models.Course) {
	if s.notifier == nil || course == nil {
		return
	}
	s.notifier.Notify(record.StudentID, "Attendance Recorded",
		fmt.Sprintf("Your attendance for %s (%s) on %s has been recorded as %s.",
			course.Name, course.Code, record.Date.Format(attendanceDateLayout), record.Status.Label()),
		models.NotificationTypeAttendance)
}
