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
	"github.com/noah-isme/campus-sis-api/internal/repository"
	appErrors "github.com/noah-isme/campus-sis-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	records   map[string]models.Attendance
	upserted  []models.Attendance
	bulk      []models.Attendance
	bulkErr   error
	updatedID string
}

func (f *fakeAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	record.ID = "a1"
	f.upserted = append(f.upserted, *record)
	return record, nil
}

func (f *fakeAttendanceRepo) BulkInsert(ctx context.Context, records []models.Attendance) error {
	if f.bulkErr != nil {
		return f.bulkErr
	}
	f.bulk = append(f.bulk, records...)
	return nil
}

func (f *fakeAttendanceRepo) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	if r, ok := f.records[id]; ok {
		copied := r
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAttendanceRepo) Update(ctx context.Context, id string, status models.AttendanceStatus, remark *string) (*models.Attendance, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	r.Status = status
	r.Remark = remark
	f.records[id] = r
	f.updatedID = id
	return &r, nil
}

func (f *fakeAttendanceRepo) ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceDetail, error) {
	return nil, nil
}

func (f *fakeAttendanceRepo) ListByCourse(ctx context.Context, courseID string) ([]models.CourseAttendanceRow, error) {
	return nil, nil
}

func TestAttendanceServiceRecord(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	notifier := &recordingDispatcher{}
	svc := NewAttendanceService(repo, testCourses(), notifier, validator.New(), zap.NewNop())

	record, err := svc.Record(context.Background(), teacherClaims(), RecordAttendanceRequest{
		StudentID: "s1", CourseID: "c1", Date: "2026-03-02", Status: "present",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "s1", notifier.sent[0].UserID)
	assert.Equal(t, models.NotificationTypeAttendance, notifier.sent[0].Type)
}

func TestAttendanceServiceRecordInvalidStatus(t *testing.T) {
	svc := NewAttendanceService(&fakeAttendanceRepo{}, testCourses(), nil, validator.New(), zap.NewNop())

	_, err := svc.Record(context.Background(), teacherClaims(), RecordAttendanceRequest{
		StudentID: "s1", CourseID: "c1", Date: "2026-03-02", Status: "sick",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceRecordInvalidDate(t *testing.T) {
	svc := NewAttendanceService(&fakeAttendanceRepo{}, testCourses(), nil, validator.New(), zap.NewNop())

	_, err := svc.Record(context.Background(), teacherClaims(), RecordAttendanceRequest{
		StudentID: "s1", CourseID: "c1", Date: "02-03-2026", Status: "present",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceRecordOwnership(t *testing.T) {
	svc := NewAttendanceService(&fakeAttendanceRepo{}, testCourses(), nil, validator.New(), zap.NewNop())

	other := &models.JWTClaims{UserID: "t2", Username: "teacher2", Role: models.RoleTeacher}
	_, err := svc.Record(context.Background(), other, RecordAttendanceRequest{
		StudentID: "s1", CourseID: "c1", Date: "2026-03-02", Status: "present",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceRecordBatch(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	notifier := &recordingDispatcher{}
	svc := NewAttendanceService(repo, testCourses(), notifier, validator.New(), zap.NewNop())

	records, err := svc.RecordBatch(context.Background(), teacherClaims(), []RecordAttendanceRequest{
		{StudentID: "s1", CourseID: "c1", Date: "2026-03-02", Status: "present"},
		{StudentID: "s2", CourseID: "c1", Date: "2026-03-02", Status: "late"},
	})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Len(t, repo.bulk, 2)
	assert.Len(t, notifier.sent, 2)
}

func TestAttendanceServiceRecordBatchDuplicate(t *testing.T) {
	repo := &fakeAttendanceRepo{bulkErr: repository.ErrDuplicate}
	notifier := &recordingDispatcher{}
	svc := NewAttendanceService(repo, testCourses(), notifier, validator.New(), zap.NewNop())

	_, err := svc.RecordBatch(context.Background(), teacherClaims(), []RecordAttendanceRequest{
		{StudentID: "s1", CourseID: "c1", Date: "2026-03-02", Status: "present"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, notifier.sent)
}

func TestAttendanceServiceRecordBatchEmpty(t *testing.T) {
	svc := NewAttendanceService(&fakeAttendanceRepo{}, testCourses(), nil, validator.New(), zap.NewNop())

	_, err := svc.RecordBatch(context.Background(), teacherClaims(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceUpdate(t *testing.T) {
	repo := &fakeAttendanceRepo{records: map[string]models.Attendance{
		"a1": {ID: "a1", StudentID: "s1", CourseID: "c1", Status: models.AttendanceStatusAbsent},
	}}
	notifier := &recordingDispatcher{}
	svc := NewAttendanceService(repo, testCourses(), notifier, validator.New(), zap.NewNop())

	remark := "doctor's note"
	record, err := svc.Update(context.Background(), teacherClaims(), "a1", UpdateAttendanceRequest{Status: "excused", Remark: &remark})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusExcused, record.Status)
	assert.Equal(t, "a1", repo.updatedID)
	assert.Len(t, notifier.sent, 1)
}

func TestAttendanceServiceUpdateNotFound(t *testing.T) {
	svc := NewAttendanceService(&fakeAttendanceRepo{}, testCourses(), nil, validator.New(), zap.NewNop())

	_, err := svc.Update(context.Background(), teacherClaims(), "missing", UpdateAttendanceRequest{Status: "present"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
