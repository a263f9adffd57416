package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-sis-api/internal/models"
	appErrors "github.com/noah-isme/campus-sis-api/pkg/errors"
	"github.com/noah-isme/campus-sis-api/pkg/export"
)

type gradeRepository interface {
	Exists(ctx context.Context, studentID, courseID string, gradeType models.GradeType) (bool, error)
	Upsert(ctx context.Context, grade *models.Grade) (*models.Grade, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.GradeDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.CourseGradeRow, error)
	Delete(ctx context.Context, id string) error
}

// SetGradeRequest carries the payload for publishing or updating a grade.
type SetGradeRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	CourseID  string  `json:"course_id" validate:"required"`
	Score     float64 `json:"score"`
	Type      string  `json:"type" validate:"required"`
	Comment   *string `json:"comment"`
}

// GradeExport is a rendered grade sheet ready to be written to a response.
type GradeExport struct {
	Content     []byte
	ContentType string
	Filename    string
}

// GradeService provides grade management use cases.
type GradeService struct {
	repo      gradeRepository
	courses   enrollmentCourseReader
	users     enrollmentUserReader
	notifier  dispatcher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs a GradeService instance.
func NewGradeService(repo gradeRepository, courses enrollmentCourseReader, users enrollmentUserReader, notifier dispatcher, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GradeService{repo: repo, courses: courses, users: users, notifier: notifier, validator: validate, logger: logger}
}

// Set publishes or updates a grade for a student in a course. The write is
// an atomic upsert keyed on (student, course, type); the prior existence
// check only picks the notification wording.
func (s *GradeService) Set(ctx context.Context, claims *models.JWTClaims, req SetGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Score < 0 || req.Score > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score must be between 0 and 100")
	}
	gradeType := models.GradeType(req.Type)
	if !gradeType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid grade type")
	}

	course, err := s.ownedCourse(ctx, claims, req.CourseID)
	if err != nil {
		return nil, err
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a student")
	}

	existed, err := s.repo.Exists(ctx, req.StudentID, req.CourseID, gradeType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check grade")
	}

	grade, err := s.repo.Upsert(ctx, &models.Grade{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Score:     req.Score,
		Type:      gradeType,
		Comment:   req.Comment,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}

	if s.notifier != nil {
		verb, title := "published", "Grade Published"
		if existed {
			verb, title = "updated", "Grade Updated"
		}
		s.notifier.Notify(req.StudentID, title,
			fmt.Sprintf("Your %s grade for %s (%s) has been %s: %.1f.",
				gradeType.DisplayName(), course.Name, course.Code, verb, grade.Score),
			models.NotificationTypeGrade)
	}

	s.logger.Info("grade saved",
		zap.String("student_id", req.StudentID),
		zap.String("course_id", req.CourseID),
		zap.String("type", string(gradeType)))
	return grade, nil
}

// MyGrades returns the caller's grades with course info.
func (s *GradeService) MyGrades(ctx context.Context, studentID string) ([]models.GradeDetail, error) {
	grades, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// CourseGrades returns all grades of a course. Teachers only for their own.
func (s *GradeService) CourseGrades(ctx context.Context, claims *models.JWTClaims, courseID string) ([]models.CourseGradeRow, error) {
	if _, err := s.ownedCourse(ctx, claims, courseID); err != nil {
		return nil, err
	}
	grades, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course grades")
	}
	return grades, nil
}

// ExportCourseGrades renders the grade sheet of a course as CSV or PDF.
func (s *GradeService) ExportCourseGrades(ctx context.Context, claims *models.JWTClaims, courseID, format string) (*GradeExport, error) {
	course, err := s.ownedCourse(ctx, claims, courseID)
	if err != nil {
		return nil, err
	}
	grades, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course grades")
	}

	table := export.Table{
		Headers: []string{"Student", "Username", "Type", "Score", "Comment"},
		Rows:    make([][]string, 0, len(grades)),
	}
	for _, row := range grades {
		comment := ""
		if row.Comment != nil {
			comment = *row.Comment
		}
		table.Rows = append(table.Rows, []string{
			row.StudentName,
			row.StudentUsername,
			row.Type.DisplayName(),
			strconv.FormatFloat(row.Score, 'f', 1, 64),
			comment,
		})
	}

	title := fmt.Sprintf("Grade Sheet - %s (%s)", course.Name, course.Code)
	switch format {
	case "csv", "":
		content, err := export.CSV(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &GradeExport{Content: content, ContentType: "text/csv", Filename: fmt.Sprintf("grades-%s.csv", course.Code)}, nil
	case "pdf":
		content, err := export.PDF(table, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &GradeExport{Content: content, ContentType: "application/pdf", Filename: fmt.Sprintf("grades-%s.pdf", course.Code)}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

// Delete removes a grade by id. Admin only; the handler enforces the role.
func (s *GradeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	s.logger.Info("grade deleted", zap.String("grade_id", id))
	return nil
}

func (s *GradeService) ownedCourse(ctx context.Context, claims *models.JWTClaims, courseID string) (*models.Course, error) {
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
