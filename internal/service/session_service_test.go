package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
)

func sessionRequest(date, start, end string, comps ...int64) dto.SessionRequest {
	return dto.SessionRequest{TrainingYearID: 1, TimeStart: start, TimeEnd: end, DateStart: date, DateEnd: date, Competencies: comps}
}

func TestSessionCreate(t *testing.T) {
	w := newSchedulingWorld()
	tx, mock := newSchedulingTx(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	detail, err := w.sessionService(tx).Create(context.Background(), chiefInfo, sessionRequest("2024-01-08", "08:00", "10:00:00", 101, 102), models.AuditMeta{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.NotZero(t, detail.ID)
	assert.Equal(t, "08:00:00", detail.TimeStart)
	assert.Equal(t, "DEV101", detail.Year.Title)
	require.Len(t, detail.Competencies, 2)
	assert.Equal(t, []int64{101, 102}, w.store.links[detail.ID])
	require.Len(t, w.audit.logs, 1)
	assert.Equal(t, models.AuditActionSessionCreate, w.audit.logs[0].Action)
	assert.Equal(t, []string{"2024-01-08"}, w.store.locked[0])
}

func TestSessionCreateRejectsConflicts(t *testing.T) {
	w := newSchedulingWorld()
	existing := w.store.seed(1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 101)
	tx, mock := newSchedulingTx(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := w.sessionService(tx).Create(context.Background(), chiefInfo, sessionRequest("2024-01-08", "09:00:00", "11:00:00", 102), models.AuditMeta{})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	appErr := appErrors.FromError(err)
	assert.Equal(t, 422, appErr.Status)
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErr.Code)

	var conflict *models.ConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, models.ConflictYear, conflict.Conflicts[0].Dimension)
	assert.Equal(t, existing, conflict.Conflicts[0].SessionID)
	assert.Len(t, w.store.sessions, 1)
}

func TestSessionCreateAllowsBackToBack(t *testing.T) {
	w := newSchedulingWorld()
	w.store.seed(1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 101)
	tx, mock := newSchedulingTx(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := w.sessionService(tx).Create(context.Background(), chiefInfo, sessionRequest("2024-01-08", "10:00:00", "12:00:00", 101), models.AuditMeta{})
	assert.NoError(t, err)
}

func TestSessionCreateValidation(t *testing.T) {
	w := newSchedulingWorld()
	tx, mock := newSchedulingTx(t)
	svc := w.sessionService(tx)
	ctx := context.Background()

	_, err := svc.Create(ctx, chiefInfo, sessionRequest("2024-01-08", "10:00:00", "09:00:00", 101), models.AuditMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req := sessionRequest("2024-01-08", "08:00:00", "09:00:00", 101)
	req.DateEnd = "2024-01-07"
	_, err = svc.Create(ctx, chiefInfo, req, models.AuditMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req.DateEnd = "2024-03-01"
	_, err = svc.Create(ctx, chiefInfo, req, models.AuditMeta{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "31 days")

	_, err = svc.Create(ctx, chiefInfo, sessionRequest("2024-01-08", "08:00:00", "09:00:00", 999), models.AuditMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, chiefInfo, sessionRequest("2024-01-08", "08:00:00", "09:00:00", 201), models.AuditMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionUpdateIgnoresItself(t *testing.T) {
	w := newSchedulingWorld()
	id := w.store.seed(1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 101)
	tx, mock := newSchedulingTx(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	detail, err := w.sessionService(tx).Update(context.Background(), chiefInfo, id, sessionRequest("2024-01-08", "09:00:00", "11:00:00", 102), models.AuditMeta{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "09:00:00", detail.TimeStart)
	assert.Equal(t, "09:00:00", w.store.sessions[id].TimeStart)
	assert.Equal(t, []int64{102}, w.store.links[id])
	require.Len(t, w.audit.logs, 1)
	assert.Equal(t, models.AuditActionSessionUpdate, w.audit.logs[0].Action)
	assert.NotEmpty(t, w.audit.logs[0].OldValues)
}

func TestSessionDelete(t *testing.T) {
	w := newSchedulingWorld()
	id := w.store.seed(1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 101)
	tx, mock := newSchedulingTx(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, w.sessionService(tx).Delete(context.Background(), chiefInfo, id, models.AuditMeta{}))
	assert.Empty(t, w.store.sessions)
	require.Len(t, w.audit.logs, 1)
	assert.Equal(t, models.AuditActionSessionDelete, w.audit.logs[0].Action)

	err := w.sessionService(tx).Delete(context.Background(), chiefInfo, id, models.AuditMeta{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSessionGetScopesReads(t *testing.T) {
	w := newSchedulingWorld()
	id := w.store.seed(1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 101)
	tx, _ := newSchedulingTx(t)
	svc := w.sessionService(tx)
	ctx := context.Background()

	detail, err := svc.Get(ctx, chiefInfo, id)
	require.NoError(t, err)
	assert.Equal(t, "Algorithmique", detail.Competencies[0].Name)

	_, err = svc.Get(ctx, adminCaller, id)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, chiefGestion, id)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestSessionListFiltersByVisibleDepartments(t *testing.T) {
	w := newSchedulingWorld()
	w.store.seed(1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 101)
	w.store.seed(2, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 201)
	w.store.seed(1, "2024-01-09", "2024-01-09", "08:00:00", "10:00:00", 102)
	tx, _ := newSchedulingTx(t)
	svc := w.sessionService(tx)
	ctx := context.Background()

	items, page, err := svc.List(ctx, chiefInfo, dto.SessionListQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 50, page.PageSize)

	items, page, err = svc.List(ctx, adminCaller, dto.SessionListQuery{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 3, page.TotalCount)

	items, err = svc.ListForTrainer(ctx, chiefInfo, 11, dto.PeriodQuery{DateFrom: "2024-01-08", DateTo: "2024-01-12"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2024-01-09", items[0].DateStart)

	_, err = svc.ListForYear(ctx, chiefInfo, 1, dto.PeriodQuery{DateFrom: "2024-01-12", DateTo: "2024-01-08"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	mine, err := svc.MyCourses(ctx, chiefInfo, dto.PeriodQuery{DateFrom: "2024-01-08", DateTo: "2024-01-12"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(101), mine[0].Competencies[0].ID)
}

func TestSessionPeriodViews(t *testing.T) {
	w := newSchedulingWorld()
	w.store.seed(1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 101)
	w.store.seed(1, "2024-01-10", "2024-01-10", "14:00:00", "16:00:00", 102)
	w.store.seed(1, "2024-03-04", "2024-03-04", "08:00:00", "10:00:00", 102)
	w.store.seed(2, "2024-01-09", "2024-01-09", "08:00:00", "10:00:00", 201)
	svc := w.sessionService(nil)
	ctx := context.Background()
	january := dto.PeriodQuery{DateFrom: "2024-01-01", DateTo: "2024-01-31"}

	mine, err := svc.MyCourses(ctx, plainTrainer, january)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "2024-01-10", mine[0].DateStart)

	year, err := svc.ListForYear(ctx, adminCaller, 1, january)
	require.NoError(t, err)
	assert.Len(t, year, 2)

	year, err = svc.ListForYear(ctx, chiefGestion, 1, january)
	require.NoError(t, err)
	assert.Empty(t, year)

	_, err = svc.ListForTrainer(ctx, plainTrainer, 11, january)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.ListForYear(ctx, adminCaller, 99, january)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.MyCourses(ctx, plainTrainer, dto.PeriodQuery{DateFrom: "2024-01-01", DateTo: "2024-02-02"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.MyCourses(ctx, plainTrainer, dto.PeriodQuery{DateFrom: "2024-01-01"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDuplicateWeekIsIdempotent(t *testing.T) {
	w := newSchedulingWorld()
	w.store.seed(1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 101)
	w.store.seed(1, "2024-01-10", "2024-01-10", "14:00:00", "16:00:00", 102)
	tx, mock := newSchedulingTx(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := w.sessionService(tx)
	req := dto.DuplicateWeekRequest{TrainingYearID: 1, SourceWeek: "2024-01-10", TargetWeek: "2024-01-17"}

	resp, err := svc.DuplicateWeek(context.Background(), chiefInfo, req, models.AuditMeta{})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-08", resp.SourceWeek)
	assert.Equal(t, "2024-01-15", resp.TargetWeek)
	require.Len(t, resp.Created, 2)
	assert.Equal(t, "2024-01-15", resp.Created[0].DateStart)
	assert.Equal(t, "2024-01-17", resp.Created[1].DateStart)
	assert.Empty(t, resp.Skipped)

	again, err := svc.DuplicateWeek(context.Background(), chiefInfo, req, models.AuditMeta{})
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Len(t, again.Skipped, 2)
	assert.Len(t, w.store.sessions, 4)
	require.NoError(t, mock.ExpectationsWereMet())

	last := w.audit.logs[len(w.audit.logs)-1]
	assert.Equal(t, models.AuditActionDuplicate, last.Action)
	assert.Equal(t, models.AuditResourceYear, last.Resource)
}

func TestDuplicateWeekReplaceClearsTarget(t *testing.T) {
	w := newSchedulingWorld()
	w.store.seed(1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 101)
	w.store.seed(1, "2024-01-15", "2024-01-15", "09:00:00", "11:00:00", 102)
	tx, mock := newSchedulingTx(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := w.sessionService(tx).DuplicateWeek(context.Background(), chiefInfo, dto.DuplicateWeekRequest{
		TrainingYearID: 1, SourceWeek: "2024-01-08", TargetWeek: "2024-01-15", Replace: true,
	}, models.AuditMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Deleted)
	assert.Len(t, resp.Created, 1)
	assert.Len(t, w.store.sessions, 2)
}

func TestDuplicateWeekReplaceDropsClearedQuotas(t *testing.T) {
	w := newSchedulingWorld()
	snapshots := newMemorySnapshots()
	w.quotas = NewQuotaService(w.store, w.registry, NewQuotaCache(snapshots, nil, time.Minute, zap.NewNop(), true), nil, zap.NewNop())
	w.store.seed(1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 101)
	w.store.seed(1, "2024-01-15", "2024-01-15", "14:00:00", "16:00:00", 102)
	ctx := context.Background()
	reseaux := []models.CompetencyDetail{w.competencies.items[102]}

	statuses, err := w.quotas.Statuses(ctx, reseaux)
	require.NoError(t, err)
	assert.Equal(t, 2.0, statuses[0].HoursScheduled)
	require.Contains(t, snapshots.values, "quota:competency:102")

	tx, mock := newSchedulingTx(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	resp, err := w.sessionService(tx).DuplicateWeek(ctx, chiefInfo, dto.DuplicateWeekRequest{
		TrainingYearID: 1, SourceWeek: "2024-01-08", TargetWeek: "2024-01-15", Replace: true,
	}, models.AuditMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Deleted)
	assert.NotContains(t, snapshots.values, "quota:competency:102")

	statuses, err = w.quotas.Statuses(ctx, reseaux)
	require.NoError(t, err)
	assert.Zero(t, statuses[0].HoursScheduled)
	assert.Zero(t, statuses[0].SessionCount)
}

func TestDuplicateWeekValidation(t *testing.T) {
	w := newSchedulingWorld()
	tx, _ := newSchedulingTx(t)
	svc := w.sessionService(tx)

	_, err := svc.DuplicateWeek(context.Background(), chiefInfo, dto.DuplicateWeekRequest{TrainingYearID: 1, SourceWeek: "2024-01-08", TargetWeek: "2024-01-12"}, models.AuditMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.DuplicateWeek(context.Background(), chiefInfo, dto.DuplicateWeekRequest{TrainingYearID: 1, SourceWeek: "2024-01-08", TargetWeek: "2024-01-15"}, models.AuditMeta{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
