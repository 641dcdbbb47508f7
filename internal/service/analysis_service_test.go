package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/dto"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
)

func newAnalysisFixture() (*schedulingWorld, *AnalysisService) {
	w := newSchedulingWorld()
	w.store.seed(1, "2024-01-08", "2024-01-08", "08:00:00", "10:00:00", 101)
	w.store.seed(1, "2024-01-08", "2024-01-08", "09:00:00", "11:00:00", 101)
	w.store.seed(1, "2024-01-09", "2024-01-09", "08:00:00", "10:00:00", 102)
	w.store.seed(2, "2024-01-09", "2024-01-09", "08:00:00", "10:00:00", 201)
	return w, NewAnalysisService(w.registry, w.conflicts, w.store, nil, zap.NewNop())
}

var analysisWeek = dto.AnalysisRequest{DepartmentID: 1, DateStart: "2024-01-08", DateEnd: "2024-01-12"}

func TestAnalyzeCountsTrainersAndConflicts(t *testing.T) {
	_, svc := newAnalysisFixture()

	resp, err := svc.Analyze(context.Background(), chiefInfo, analysisWeek)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalSessions)
	require.Len(t, resp.Distribution, 2)
	assert.Equal(t, int64(10), resp.Distribution[0].TrainerID)
	assert.Equal(t, "Alami Sara", resp.Distribution[0].Name)
	assert.Equal(t, 2, resp.Distribution[0].Sessions)
	assert.Equal(t, 1, resp.Distribution[1].Sessions)
	assert.Empty(t, resp.Suggestions)

	require.Len(t, resp.Conflicts, 2)
	assert.Equal(t, dto.PairConflictYear, resp.Conflicts[0].Type)
	assert.Equal(t, dto.PairConflictTrainer, resp.Conflicts[1].Type)
}

func TestAnalyzeFlagsOverloadedTrainer(t *testing.T) {
	w, svc := newAnalysisFixture()
	for _, day := range []string{"2024-01-10", "2024-01-11", "2024-01-12"} {
		w.store.seed(1, day, day, "14:00:00", "16:00:00", 101)
	}

	resp, err := svc.Analyze(context.Background(), chiefInfo, analysisWeek)
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 2)
	assert.Contains(t, resp.Suggestions[0], "surchargé")
	assert.Contains(t, resp.Suggestions[1], "sous-utilisé")
}

func TestReportComputesOccupancy(t *testing.T) {
	_, svc := newAnalysisFixture()

	report, err := svc.Report(context.Background(), adminCaller, analysisWeek)
	require.NoError(t, err)
	assert.Equal(t, "Informatique", report.Department)

	require.Len(t, report.Rooms, 2)
	assert.Equal(t, int64(1), report.Rooms[0].RoomID)
	assert.Equal(t, 2, report.Rooms[0].Occupied)
	assert.Equal(t, 20, report.Rooms[0].Available)
	assert.Equal(t, 10.0, report.Rooms[0].Rate)
	assert.Equal(t, 5.0, report.Rooms[1].Rate)

	require.Len(t, report.Trainers, 2)
	assert.Equal(t, 2.0, report.Trainers[0].WeeklyLoad)
	assert.Equal(t, 1.0, report.Trainers[1].WeeklyLoad)

	require.Len(t, report.Blocks, 5)
	assert.Equal(t, dto.BlockUsage{Start: "08:00:00", Count: 2}, report.Blocks[0])
	assert.Equal(t, dto.BlockUsage{Start: "16:15:00", Count: 0}, report.Blocks[3])
	assert.Equal(t, dto.BlockUsage{Start: "09:00:00", Count: 1}, report.Blocks[4])

	assert.Contains(t, report.Recommendations, "Salle Salle 1 sous-utilisée (10.00%). Considérer une réorganisation.")
	assert.Contains(t, report.Recommendations, "Créneau 10:15:00 peu utilisé. Envisager une redistribution.")
}

func TestReorganizeProposals(t *testing.T) {
	_, svc := newAnalysisFixture()

	resp, err := svc.Reorganize(context.Background(), chiefInfo, analysisWeek)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.ConflictCount)
	require.Len(t, resp.Proposals, 2)
	assert.Equal(t, "1_2", resp.Proposals[0].ConflictID)
	assert.Equal(t, solutionSplitCourses, resp.Proposals[0].Solution)
	assert.Equal(t, solutionChangeSlot, resp.Proposals[1].Solution)
	assert.Equal(t, feasibilityHigh, resp.Proposals[1].Feasibility)
	assert.Equal(t, feasibilityLow, resp.Feasibility)
}

func TestOverallFeasibility(t *testing.T) {
	assert.Equal(t, feasibilityNone, overallFeasibility(nil))

	high := dto.ReorganizationProposal{Feasibility: feasibilityHigh}
	medium := dto.ReorganizationProposal{Feasibility: feasibilityMedium}
	assert.Equal(t, feasibilityVery, overallFeasibility([]dto.ReorganizationProposal{high}))
	assert.Equal(t, feasibilityModerately, overallFeasibility([]dto.ReorganizationProposal{high, high, medium}))
	assert.Equal(t, feasibilityLow, overallFeasibility([]dto.ReorganizationProposal{high, medium}))
}

func TestAnalysisAuthorization(t *testing.T) {
	_, svc := newAnalysisFixture()
	ctx := context.Background()

	_, err := svc.Analyze(ctx, chiefGestion, analysisWeek)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	bad := analysisWeek
	bad.DateEnd = "2024-01-01"
	_, err = svc.Report(ctx, chiefInfo, bad)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	missing := analysisWeek
	missing.DepartmentID = 9
	_, err = svc.Report(ctx, adminCaller, missing)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
