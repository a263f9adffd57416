package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-sis-api/internal/models"
	"github.com/noah-isme/campus-sis-api/internal/repository"
	appErrors "github.com/noah-isme/campus-sis-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context) ([]models.CourseDetail, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type courseRosterLister interface {
	ListRoster(ctx context.Context, courseID string) ([]models.RosterEntry, error)
}

// CourseRequest carries the payload for creating or updating a course.
type CourseRequest struct {
	Name        string               `json:"name" validate:"required"`
	Code        string               `json:"code" validate:"required"`
	Description string               `json:"description"`
	TeacherID   string               `json:"teacher_id"`
	Credits     int                  `json:"credits" validate:"min=0"`
	Capacity    int                  `json:"capacity" validate:"min=1"`
	Schedule    models.ScheduleSlots `json:"schedule" validate:"omitempty,dive"`
	Active      *bool                `json:"active"`
}

// CourseService provides course management use cases.
type CourseService struct {
	repo      courseRepository
	roster    courseRosterLister
	notifier  dispatcher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService instance.
func NewCourseService(repo courseRepository, roster courseRosterLister, notifier dispatcher, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, roster: roster, notifier: notifier, validator: validate, logger: logger}
}

// List returns all courses with teacher info.
func (s *CourseService) List(ctx context.Context) ([]models.CourseDetail, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Create adds a new course. Teachers can only create courses assigned to
// themselves; admins may set any teacher.
func (s *CourseService) Create(ctx context.Context, claims *models.JWTClaims, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	teacherID := req.TeacherID
	if claims.Role == models.RoleTeacher || teacherID == "" {
		teacherID = claims.UserID
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	course := &models.Course{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		TeacherID:   teacherID,
		Credits:     req.Credits,
		Capacity:    req.Capacity,
		Schedule:    req.Schedule,
		Active:      active,
	}

	if err := s.repo.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("code", course.Code))
	return course, nil
}

// Update overwrites a course. Teachers may only update their own courses.
// Enrolled students get a best-effort notification about the change.
func (s *CourseService) Update(ctx context.Context, claims *models.JWTClaims, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.findCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims.Role == models.RoleTeacher && course.TeacherID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the teacher of this course")
	}

	course.Name = req.Name
	course.Code = req.Code
	course.Description = req.Description
	course.Credits = req.Credits
	course.Capacity = req.Capacity
	course.Schedule = req.Schedule
	if req.Active != nil {
		course.Active = *req.Active
	}
	if claims.Role == models.RoleAdmin && req.TeacherID != "" {
		course.TeacherID = req.TeacherID
	}

	if err := s.repo.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.notifyRoster(ctx, course)

	s.logger.Info("course updated", zap.String("course_id", course.ID))
	return course, nil
}

// Delete removes a course. Admin only; the handler enforces the role.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

func (s *CourseService) findCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	return course, nil
}

func (s *CourseService) notifyRoster(ctx context.Context, course *models.Course) {
	if s.notifier == nil || s.roster == nil {
		return
	}
	roster, err := s.roster.ListRoster(ctx, course.ID)
	if err != nil {
		s.logger.Warn("failed to load roster for course notification", zap.String("course_id", course.ID), zap.Error(err))
		return
	}
	message := fmt.Sprintf("Course %s (%s) has been updated. Please review the latest details.", course.Name, course.Code)
	for _, entry := range roster {
		s.notifier.Notify(entry.StudentID, "Course Updated", message, models.NotificationTypeCourse)
	}
}
