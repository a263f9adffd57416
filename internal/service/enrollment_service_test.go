package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-sis-api/internal/models"
	"github.com/noah-isme/campus-sis-api/internal/repository"
	appErrors "github.com/noah-isme/campus-sis-api/pkg/errors"
)

type sentNotification struct {
	UserID string
	Title  string
	Type   models.NotificationType
}

type recordingDispatcher struct {
	sent []sentNotification
}

func (d *recordingDispatcher) Notify(userID, title, message string, notificationType models.NotificationType) {
	d.sent = append(d.sent, sentNotification{UserID: userID, Title: title, Type: notificationType})
}

type fakeCourseReader struct {
	courses map[string]*models.Course
}

func (f *fakeCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := f.courses[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type fakeUserReader struct {
	users map[string]*models.User
}

func (f *fakeUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type fakeEnrollmentRepo struct {
	existing    map[string]models.Enrollment // keyed studentID+courseID
	enrolled    int
	insertOK    bool
	insertErr   error
	reactivated []string
	statuses    map[string]models.EnrollmentStatus
	created     *models.Enrollment
}

func (f *fakeEnrollmentRepo) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	if e, ok := f.existing[studentID+courseID]; ok {
		copied := e
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) CountEnrolled(ctx context.Context, courseID string) (int, error) {
	return f.enrolled, nil
}

func (f *fakeEnrollmentRepo) CreateWithinCapacity(ctx context.Context, enrollment *models.Enrollment, capacity int) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if !f.insertOK {
		return false, nil
	}
	enrollment.ID = "new-enrollment"
	f.created = enrollment
	return true, nil
}

func (f *fakeEnrollmentRepo) ReactivateWithinCapacity(ctx context.Context, id, courseID string, capacity int, at time.Time) (bool, error) {
	if !f.insertOK {
		return false, nil
	}
	f.reactivated = append(f.reactivated, id)
	return true, nil
}

func (f *fakeEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[string]models.EnrollmentStatus)
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var list []models.EnrollmentDetail
	for _, e := range f.existing {
		if e.StudentID == studentID {
			list = append(list, models.EnrollmentDetail{Enrollment: e})
		}
	}
	return list, nil
}

func (f *fakeEnrollmentRepo) ListRoster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	var roster []models.RosterEntry
	for _, e := range f.existing {
		if e.CourseID == courseID && e.Status == models.EnrollmentStatusEnrolled {
			roster = append(roster, models.RosterEntry{Enrollment: e})
		}
	}
	return roster, nil
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "s1", Username: "student1", Role: models.RoleStudent}
}

func testCourses() *fakeCourseReader {
	return &fakeCourseReader{courses: map[string]*models.Course{
		"c1": {ID: "c1", Name: "Algorithms", Code: "CS201", TeacherID: "t1", Capacity: 2},
	}}
}

func testUsers() *fakeUserReader {
	return &fakeUserReader{users: map[string]*models.User{
		"s1": {ID: "s1", Username: "student1", Name: "Student One", Role: models.RoleStudent, Active: true},
		"t1": {ID: "t1", Username: "teacher1", Name: "Teacher One", Role: models.RoleTeacher, Active: true},
	}}
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &fakeEnrollmentRepo{insertOK: true}
	notifier := &recordingDispatcher{}
	svc := NewEnrollmentService(repo, testCourses(), testUsers(), notifier, validator.New(), zap.NewNop())

	enrollment, err := svc.Enroll(context.Background(), studentClaims(), EnrollRequest{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	assert.NotNil(t, repo.created)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "s1", notifier.sent[0].UserID)
	assert.Equal(t, "t1", notifier.sent[1].UserID)
	assert.Equal(t, models.NotificationTypeEnrollment, notifier.sent[0].Type)
}

func TestEnrollmentServiceEnrollCourseNotFound(t *testing.T) {
	svc := NewEnrollmentService(&fakeEnrollmentRepo{}, testCourses(), testUsers(), nil, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), studentClaims(), EnrollRequest{CourseID: "missing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollCourseFull(t *testing.T) {
	repo := &fakeEnrollmentRepo{enrolled: 2, insertOK: true}
	svc := NewEnrollmentService(repo, testCourses(), testUsers(), nil, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), studentClaims(), EnrollRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRaceLosesLastSeat(t *testing.T) {
	// Pre-check passes but the conditional insert affects zero rows.
	repo := &fakeEnrollmentRepo{enrolled: 1, insertOK: false}
	svc := NewEnrollmentService(repo, testCourses(), testUsers(), nil, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), studentClaims(), EnrollRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollAlreadyEnrolled(t *testing.T) {
	repo := &fakeEnrollmentRepo{existing: map[string]models.Enrollment{
		"s1c1": {ID: "e1", StudentID: "s1", CourseID: "c1", Status: models.EnrollmentStatusEnrolled},
	}}
	svc := NewEnrollmentService(repo, testCourses(), testUsers(), nil, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), studentClaims(), EnrollRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollCompletedConflict(t *testing.T) {
	repo := &fakeEnrollmentRepo{existing: map[string]models.Enrollment{
		"s1c1": {ID: "e1", StudentID: "s1", CourseID: "c1", Status: models.EnrollmentStatusCompleted},
	}}
	svc := NewEnrollmentService(repo, testCourses(), testUsers(), nil, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), studentClaims(), EnrollRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceReenrollKeepsID(t *testing.T) {
	repo := &fakeEnrollmentRepo{
		insertOK: true,
		existing: map[string]models.Enrollment{
			"s1c1": {ID: "e1", StudentID: "s1", CourseID: "c1", Status: models.EnrollmentStatusDropped},
		},
	}
	svc := NewEnrollmentService(repo, testCourses(), testUsers(), nil, validator.New(), zap.NewNop())

	enrollment, err := svc.Enroll(context.Background(), studentClaims(), EnrollRequest{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "e1", enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	assert.Contains(t, repo.reactivated, "e1")
	assert.Nil(t, repo.created)
}

func TestEnrollmentServiceEnrollDuplicateRace(t *testing.T) {
	repo := &fakeEnrollmentRepo{insertErr: repository.ErrDuplicate}
	svc := NewEnrollmentService(repo, testCourses(), testUsers(), nil, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), studentClaims(), EnrollRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDrop(t *testing.T) {
	repo := &fakeEnrollmentRepo{existing: map[string]models.Enrollment{
		"s1c1": {ID: "e1", StudentID: "s1", CourseID: "c1", Status: models.EnrollmentStatusEnrolled},
	}}
	notifier := &recordingDispatcher{}
	svc := NewEnrollmentService(repo, testCourses(), testUsers(), notifier, validator.New(), zap.NewNop())

	err := svc.Drop(context.Background(), studentClaims(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, repo.statuses["e1"])
	assert.Len(t, notifier.sent, 2)
}

func TestEnrollmentServiceDropNotEnrolled(t *testing.T) {
	repo := &fakeEnrollmentRepo{existing: map[string]models.Enrollment{
		"s1c1": {ID: "e1", StudentID: "s1", CourseID: "c1", Status: models.EnrollmentStatusDropped},
	}}
	svc := NewEnrollmentService(repo, testCourses(), testUsers(), nil, validator.New(), zap.NewNop())

	err := svc.Drop(context.Background(), studentClaims(), "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCourseRosterOwnership(t *testing.T) {
	repo := &fakeEnrollmentRepo{}
	svc := NewEnrollmentService(repo, testCourses(), testUsers(), nil, validator.New(), zap.NewNop())

	otherTeacher := &models.JWTClaims{UserID: "t2", Username: "teacher2", Role: models.RoleTeacher}
	_, err := svc.CourseRoster(context.Background(), otherTeacher, "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	owner := &models.JWTClaims{UserID: "t1", Username: "teacher1", Role: models.RoleTeacher}
	_, err = svc.CourseRoster(context.Background(), owner, "c1")
	require.NoError(t, err)
}
