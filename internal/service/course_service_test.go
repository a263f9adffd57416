package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-sis-api/internal/models"
	appErrors "github.com/noah-isme/campus-sis-api/pkg/errors"
)

type fakeCourseRepo struct {
	courses map[string]*models.Course
	created *models.Course
	updated *models.Course
	deleted []string
}

func (f *fakeCourseRepo) List(ctx context.Context) ([]models.CourseDetail, error) {
	var list []models.CourseDetail
	for _, c := range f.courses {
		list = append(list, models.CourseDetail{Course: *c})
	}
	return list, nil
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := f.courses[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = "new-course"
	f.created = course
	return nil
}

func (f *fakeCourseRepo) Update(ctx context.Context, course *models.Course) error {
	f.updated = course
	return nil
}

func (f *fakeCourseRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.courses[id]; !ok {
		return sql.ErrNoRows
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRosterLister struct {
	roster []models.RosterEntry
}

func (f *fakeRosterLister) ListRoster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	return f.roster, nil
}

func courseRequest() CourseRequest {
	return CourseRequest{Name: "Algorithms", Code: "CS201", Credits: 3, Capacity: 30}
}

func TestCourseServiceCreateTeacherForcedSelf(t *testing.T) {
	repo := &fakeCourseRepo{}
	svc := NewCourseService(repo, &fakeRosterLister{}, nil, validator.New(), zap.NewNop())

	req := courseRequest()
	req.TeacherID = "someone-else"
	course, err := svc.Create(context.Background(), teacherClaims(), req)
	require.NoError(t, err)
	assert.Equal(t, "t1", course.TeacherID)
	assert.True(t, course.Active)
}

func TestCourseServiceCreateAdminSetsTeacher(t *testing.T) {
	repo := &fakeCourseRepo{}
	svc := NewCourseService(repo, &fakeRosterLister{}, nil, validator.New(), zap.NewNop())

	admin := &models.JWTClaims{UserID: "a1", Username: "admin", Role: models.RoleAdmin}
	req := courseRequest()
	req.TeacherID = "t1"
	course, err := svc.Create(context.Background(), admin, req)
	require.NoError(t, err)
	assert.Equal(t, "t1", course.TeacherID)
}

func TestCourseServiceCreateInvalidCapacity(t *testing.T) {
	svc := NewCourseService(&fakeCourseRepo{}, &fakeRosterLister{}, nil, validator.New(), zap.NewNop())

	req := courseRequest()
	req.Capacity = 0
	_, err := svc.Create(context.Background(), teacherClaims(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceUpdateOwnership(t *testing.T) {
	repo := &fakeCourseRepo{courses: map[string]*models.Course{
		"c1": {ID: "c1", Name: "Algorithms", Code: "CS201", TeacherID: "t1", Capacity: 30},
	}}
	svc := NewCourseService(repo, &fakeRosterLister{}, nil, validator.New(), zap.NewNop())

	other := &models.JWTClaims{UserID: "t2", Username: "teacher2", Role: models.RoleTeacher}
	_, err := svc.Update(context.Background(), other, "c1", courseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceUpdateNotifiesRoster(t *testing.T) {
	repo := &fakeCourseRepo{courses: map[string]*models.Course{
		"c1": {ID: "c1", Name: "Algorithms", Code: "CS201", TeacherID: "t1", Capacity: 30},
	}}
	roster := &fakeRosterLister{roster: []models.RosterEntry{
		{Enrollment: models.Enrollment{ID: "e1", StudentID: "s1", CourseID: "c1", Status: models.EnrollmentStatusEnrolled}},
		{Enrollment: models.Enrollment{ID: "e2", StudentID: "s2", CourseID: "c1", Status: models.EnrollmentStatusEnrolled}},
	}}
	notifier := &recordingDispatcher{}
	svc := NewCourseService(repo, roster, notifier, validator.New(), zap.NewNop())

	course, err := svc.Update(context.Background(), teacherClaims(), "c1", courseRequest())
	require.NoError(t, err)
	assert.Equal(t, "c1", course.ID)
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, models.NotificationTypeCourse, notifier.sent[0].Type)
	assert.ElementsMatch(t, []string{"s1", "s2"}, []string{notifier.sent[0].UserID, notifier.sent[1].UserID})
}

func TestCourseServiceUpdateNotFound(t *testing.T) {
	svc := NewCourseService(&fakeCourseRepo{}, &fakeRosterLister{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Update(context.Background(), teacherClaims(), "missing", courseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceDelete(t *testing.T) {
	repo := &fakeCourseRepo{courses: map[string]*models.Course{
		"c1": {ID: "c1", Name: "Algorithms", Code: "CS201", TeacherID: "t1", Capacity: 30},
	}}
	svc := NewCourseService(repo, &fakeRosterLister{}, nil, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "c1"))
	assert.Contains(t, repo.deleted, "c1")

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
