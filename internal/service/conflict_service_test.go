package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/models"
)

func busyWindow(sessionID, yearID int64, dateStart, dateEnd, start, end string, trainerID, roomID *int64) models.BusyWindow {
	return models.BusyWindow{SessionID: sessionID, TrainingYearID: yearID, DateStart: dateStart, DateEnd: dateEnd, TimeStart: start, TimeEnd: end, TrainerID: trainerID, RoomID: roomID}
}

func TestOccupancyConflictsAcrossDimensions(t *testing.T) {
	occ := newOccupancy()
	occ.Load([]models.BusyWindow{
		busyWindow(5, 1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", nil, nil),
		busyWindow(5, 1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", int64Ptr(10), int64Ptr(1)),
	})

	p := SlotProposal{TrainingYearID: 1, DateStart: "2024-01-08", DateEnd: "2024-01-08", Start: 9 * 60, End: 11 * 60, TrainerIDs: []int64{10}, RoomIDs: []int64{1}}
	conflicts := occ.Conflicts(p)
	require.Len(t, conflicts, 3)
	assert.Equal(t, models.ConflictYear, conflicts[0].Dimension)
	assert.Equal(t, models.ConflictTrainer, conflicts[1].Dimension)
	assert.Equal(t, models.ConflictRoom, conflicts[2].Dimension)
	assert.Equal(t, int64(5), conflicts[0].SessionID)
	assert.Equal(t, "08:00:00", conflicts[0].TimeStart)
	assert.Contains(t, conflicts[1].Message, "trainer 10")
}

func TestOccupancyIdenticalWindowsConflictTouchingDoNot(t *testing.T) {
	occ := newOccupancy()
	occ.Load([]models.BusyWindow{busyWindow(5, 1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", nil, nil)})

	same := SlotProposal{TrainingYearID: 1, DateStart: "2024-01-08", DateEnd: "2024-01-08", Start: 8 * 60, End: 10 * 60}
	assert.Len(t, occ.Conflicts(same), 1)

	touching := same
	touching.Start, touching.End = 10*60, 12*60
	assert.Empty(t, occ.Conflicts(touching))

	otherDay := same
	otherDay.DateStart, otherDay.DateEnd = "2024-01-09", "2024-01-09"
	assert.Empty(t, occ.Conflicts(otherDay))

	self := same
	self.ExcludeSessionID = int64Ptr(5)
	assert.Empty(t, occ.Conflicts(self))
}

func TestOccupancyMultiDaySession(t *testing.T) {
	occ := newOccupancy()
	occ.Load([]models.BusyWindow{busyWindow(7, 1, "2024-01-08", "2024-01-10", "14:00:00", "16:00:00", nil, nil)})

	assert.True(t, occ.IsBusy(models.ConflictYear, 1, "2024-01-09", "2024-01-09", 15*60, 17*60))
	assert.False(t, occ.IsBusy(models.ConflictYear, 1, "2024-01-11", "2024-01-11", 15*60, 17*60))
	assert.False(t, occ.IsBusy(models.ConflictYear, 2, "2024-01-09", "2024-01-09", 15*60, 17*60))
}

func TestOccupancyClaimBlocksLaterProposals(t *testing.T) {
	occ := newOccupancy()
	p := SlotProposal{TrainingYearID: 1, DateStart: "2024-01-08", DateEnd: "2024-01-08", Start: 8 * 60, End: 10 * 60, TrainerIDs: []int64{10}}
	occ.Claim(p, -1)

	other := SlotProposal{TrainingYearID: 2, DateStart: "2024-01-08", DateEnd: "2024-01-08", Start: 9 * 60, End: 10 * 60, TrainerIDs: []int64{10}}
	conflicts := occ.Conflicts(other)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictTrainer, conflicts[0].Dimension)
}

func TestPolicyConflicts(t *testing.T) {
	conflicts := policyConflicts("2024-01-09", 12*60+30, 17*60+30)
	require.Len(t, conflicts, 2)
	assert.Equal(t, models.ConflictOpeningHours, conflicts[0].Dimension)
	assert.Equal(t, models.ConflictLunchBreak, conflicts[1].Dimension)

	assert.Empty(t, policyConflicts("2024-01-09", 14*60, 17*60))
}

func TestConflictServiceCheckLoadsPersistedWindows(t *testing.T) {
	w := newSchedulingWorld()
	id := w.store.seed(2, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 103)

	conflicts, err := w.conflicts.Check(context.Background(), nil, SlotProposal{
		TrainingYearID: 1,
		DateStart:      "2024-01-08",
		DateEnd:        "2024-01-08",
		Start:          9 * 60,
		End:            11 * 60,
		TrainerIDs:     []int64{10},
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictTrainer, conflicts[0].Dimension)
	assert.Equal(t, id, conflicts[0].SessionID)

	busy, err := w.conflicts.HasConflict(context.Background(), models.ConflictRoom, 1, "2024-01-08", "09:30:00", "10:30:00", nil)
	require.NoError(t, err)
	assert.True(t, busy)

	busy, err = w.conflicts.HasConflict(context.Background(), models.ConflictRoom, 1, "2024-01-08", "09:30:00", "10:30:00", &id)
	require.NoError(t, err)
	assert.False(t, busy)

	_, err = w.conflicts.HasConflict(context.Background(), "BUILDING", 1, "2024-01-08", "09:30:00", "10:30:00", nil)
	assert.Error(t, err)
}

func TestDetectPairs(t *testing.T) {
	w := newSchedulingWorld()
	c101 := w.competencies.items[101]
	c102 := w.competencies.items[102]
	sessions := []models.SessionDetail{
		{Session: models.Session{ID: 2, TrainingYearID: 1, DateStart: "2024-01-08", DateEnd: "2024-01-08", TimeStart: "09:00:00", TimeEnd: "11:00:00"}, Competencies: []models.CompetencyDetail{c101}},
		{Session: models.Session{ID: 1, TrainingYearID: 1, DateStart: "2024-01-08", DateEnd: "2024-01-08", TimeStart: "08:00:00", TimeEnd: "10:00:00"}, Competencies: []models.CompetencyDetail{c101}},
		{Session: models.Session{ID: 3, TrainingYearID: 1, DateStart: "2024-01-08", DateEnd: "2024-01-08", TimeStart: "11:00:00", TimeEnd: "12:00:00"}, Competencies: []models.CompetencyDetail{c102}},
	}

	pairs := w.conflicts.DetectPairs(sessions)
	require.Len(t, pairs, 2)
	assert.Equal(t, dto.PairConflictYear, pairs[0].Type)
	assert.Equal(t, int64(1), pairs[0].FirstID)
	assert.Equal(t, int64(2), pairs[0].SecondID)
	assert.Equal(t, dto.PairConflictTrainer, pairs[1].Type)
	assert.Equal(t, int64(10), pairs[1].ResourceID)
}
