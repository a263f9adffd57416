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

type enrollmentRepository interface {
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	CountEnrolled(ctx context.Context, courseID string) (int, error)
	CreateWithinCapacity(ctx context.Context, enrollment *models.Enrollment, capacity int) (bool, error)
	ReactivateWithinCapacity(ctx context.Context, id, courseID string, capacity int, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListRoster(ctx context.Context, courseID string) ([]models.RosterEntry, error)
}

type enrollmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// EnrollRequest carries the payload for enrolling in a course.
type EnrollRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// EnrollmentService provides enrollment use cases.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   enrollmentCourseReader
	users     enrollmentUserReader
	notifier  dispatcher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService instance.
func NewEnrollmentService(repo enrollmentRepository, courses enrollmentCourseReader, users enrollmentUserReader, notifier dispatcher, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{repo: repo, courses: courses, users: users, notifier: notifier, validator: validate, logger: logger}
}

// Enroll registers the student into a course. Preconditions are checked in
// order: course existence, capacity, then the student's own enrollment
// history. A dropped enrollment is reactivated in place so the row keeps its
// id. The final write re-checks capacity atomically so two racing
// enrollments cannot both take the last seat.
func (s *EnrollmentService) Enroll(ctx context.Context, claims *models.JWTClaims, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}

	enrolled, err := s.repo.CountEnrolled(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if enrolled >= course.Capacity {
		return nil, appErrors.ErrCourseFull
	}

	existing, err := s.repo.FindByStudentAndCourse(ctx, claims.UserID, course.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch enrollment")
	}

	var enrollment *models.Enrollment
	switch {
	case existing == nil:
		enrollment = &models.Enrollment{
			StudentID: claims.UserID,
			CourseID:  course.ID,
			Status:    models.EnrollmentStatusEnrolled,
		}
		ok, err := s.repo.CreateWithinCapacity(ctx, enrollment, course.Capacity)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
		if !ok {
			return nil, appErrors.ErrCourseFull
		}

	case existing.Status == models.EnrollmentStatusEnrolled:
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")

	case existing.Status == models.EnrollmentStatusCompleted:
		return nil, appErrors.Clone(appErrors.ErrConflict, "course already completed")

	default: // dropped
		now := time.Now().UTC()
		ok, err := s.repo.ReactivateWithinCapacity(ctx, existing.ID, course.ID, course.Capacity, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reactivate enrollment")
		}
		if !ok {
			return nil, appErrors.ErrCourseFull
		}
		existing.Status = models.EnrollmentStatusEnrolled
		existing.EnrollmentDate = now
		existing.UpdatedAt = now
		enrollment = existing
	}

	s.notifyEnrolled(ctx, claims, course)

	s.logger.Info("student enrolled",
		zap.String("student_id", claims.UserID),
		zap.String("course_id", course.ID))
	return enrollment, nil
}

// Drop withdraws the student from a course. The row survives with status
// dropped and keeps its enrollment date.
func (s *EnrollmentService) Drop(ctx context.Context, claims *models.JWTClaims, courseID string) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}

	enrollment, err := s.repo.FindByStudentAndCourse(ctx, claims.UserID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}

	if err := s.repo.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusDropped); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}

	s.notifyDropped(ctx, claims, course)

	s.logger.Info("student dropped course",
		zap.String("student_id", claims.UserID),
		zap.String("course_id", courseID))
	return nil
}

// MyEnrollments returns the caller's enrollments with course info.
func (s *EnrollmentService) MyEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// CourseRoster returns the enrolled students of a course. Teachers may only
// view rosters of their own courses.
func (s *EnrollmentService) CourseRoster(ctx context.Context, claims *models.JWTClaims, courseID string) ([]models.RosterEntry, error) {
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

	roster, err := s.repo.ListRoster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roster")
	}
	return roster, nil
}

func (s *EnrollmentService) notifyEnrolled(ctx context.Context, claims *models.JWTClaims, course *models.Course) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(claims.UserID, "Enrollment Successful",
		fmt.Sprintf("You have successfully enrolled in %s (%s).", course.Name, course.Code),
		models.NotificationTypeEnrollment)
	if course.TeacherID != "" {
		s.notifier.Notify(course.TeacherID, "New Student Enrolled",
			fmt.Sprintf("%s has enrolled in your course %s (%s).", s.studentName(ctx, claims), course.Name, course.Code),
			models.NotificationTypeEnrollment)
	}
}

func (s *EnrollmentService) notifyDropped(ctx context.Context, claims *models.JWTClaims, course *models.Course) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(claims.UserID, "Course Dropped",
		fmt.Sprintf("You have dropped %s (%s).", course.Name, course.Code),
		models.NotificationTypeEnrollment)
	if course.TeacherID != "" {
		s.notifier.Notify(course.TeacherID, "Student Dropped Course",
			fmt.Sprintf("%s has dropped your course %s (%s).", s.studentName(ctx, claims), course.Name, course.Code),
			models.NotificationTypeEnrollment)
	}
}

// studentName resolves the display name for notification text, falling back
// to the username from the token when the lookup fails.
func (s *EnrollmentService) studentName(ctx context.Context, claims *models.JWTClaims) string {
	if s.users != nil {
		if user, err := s.users.FindByID(ctx, claims.UserID); err == nil && user.Name != "" {
			return user.Name
		}
	}
	return claims.Username
}
