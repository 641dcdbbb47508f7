package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
)

// Reorganization vocabulary.
const (
	solutionChangeSlot    = "changement_creneau"
	solutionSplitCourses  = "separation_cours"
	feasibilityHigh       = "haute"
	feasibilityMedium     = "moyenne"
	feasibilityNone       = "aucune_action_requise"
	feasibilityVery       = "tres_faisable"
	feasibilityModerately = "moderement_faisable"
	feasibilityLow        = "peu_faisable"
)

// AnalysisService reports on the persisted timetable of a department.
type AnalysisService struct {
	registry  *RegistryService
	conflicts *ConflictService
	sessions  sessionStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnalysisService wires timetable analysis.
func NewAnalysisService(registry *RegistryService, conflicts *ConflictService, sessions sessionStore, validate *validator.Validate, logger *zap.Logger) *AnalysisService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{registry: registry, conflicts: conflicts, sessions: sessions, validator: validate, logger: logger}
}

func (s *AnalysisService) authorize(ctx context.Context, caller models.Caller, req dto.AnalysisRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid analysis payload")
	}
	if req.DateEnd < req.DateStart {
		return appErrors.Clone(appErrors.ErrValidation, "date_fin must not be before date_debut")
	}
	visible, all, err := s.registry.VisibleDepartments(ctx, caller)
	if err != nil {
		return err
	}
	if all {
		return nil
	}
	for _, id := range visible {
		if id == req.DepartmentID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("caller does not chair department %d", req.DepartmentID))
}

// departmentSessions loads the sessions of the department's years starting
// within the period.
func (s *AnalysisService) departmentSessions(ctx context.Context, req dto.AnalysisRequest) ([]models.SessionDetail, error) {
	deptID := req.DepartmentID
	sessions, err := s.sessions.ListAll(ctx, nil, models.SessionFilter{YearDepartmentID: &deptID, DateFrom: req.DateStart, DateTo: req.DateEnd})
	if err != nil {
		return nil, internalError(err, "failed to load department sessions")
	}
	return assembleDetails(ctx, s.registry, s.sessions, sessions)
}

// Analyze counts sessions per trainer, flags imbalances and lists clashes.
func (s *AnalysisService) Analyze(ctx context.Context, caller models.Caller, req dto.AnalysisRequest) (*dto.AnalysisResponse, error) {
	if err := s.authorize(ctx, caller, req); err != nil {
		return nil, err
	}
	sessions, err := s.departmentSessions(ctx, req)
	if err != nil {
		return nil, err
	}

	loads := trainerDistribution(sessions)
	resp := &dto.AnalysisResponse{
		TotalSessions: len(sessions),
		Distribution:  loads,
		Conflicts:     s.conflicts.DetectPairs(sessions),
		Suggestions:   []string{},
	}
	if resp.Conflicts == nil {
		resp.Conflicts = []dto.PairConflict{}
	}
	if len(loads) > 0 {
		total := 0
		for _, l := range loads {
			total += l.Sessions
		}
		mean := float64(total) / float64(len(loads))
		for _, l := range loads {
			n := float64(l.Sessions)
			switch {
			case n > mean*1.5:
				resp.Suggestions = append(resp.Suggestions, fmt.Sprintf("Formateur %s surchargé (%d créneaux)", l.Name, l.Sessions))
			case n < mean*0.5:
				resp.Suggestions = append(resp.Suggestions, fmt.Sprintf("Formateur %s sous-utilisé (%d créneaux)", l.Name, l.Sessions))
			}
		}
	}
	return resp, nil
}

func trainerDistribution(sessions []models.SessionDetail) []dto.TrainerLoad {
	byID := make(map[int64]*dto.TrainerLoad)
	for _, sess := range sessions {
		for _, c := range sess.Competencies {
			if c.TrainerID == nil {
				continue
			}
			load, ok := byID[*c.TrainerID]
			if !ok {
				load = &dto.TrainerLoad{TrainerID: *c.TrainerID, Name: c.TrainerName()}
				byID[*c.TrainerID] = load
			}
			load.Sessions++
		}
	}
	out := make([]dto.TrainerLoad, 0, len(byID))
	for _, l := range byID {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrainerID < out[j].TrainerID })
	return out
}

// Report computes room occupancy, trainer weekly load and block usage.
func (s *AnalysisService) Report(ctx context.Context, caller models.Caller, req dto.AnalysisRequest) (*dto.OccupancyReport, error) {
	if err := s.authorize(ctx, caller, req); err != nil {
		return nil, err
	}

	var (
		dept     *models.Department
		rooms    []models.Room
		trainers []models.Trainer
		sessions []models.SessionDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.registry.Department(gctx, req.DepartmentID)
		if err != nil {
			return err
		}
		dept = d
		if d.BuildingID == nil {
			return nil
		}
		rooms, err = s.registry.BuildingRooms(gctx, *d.BuildingID)
		return err
	})
	g.Go(func() error {
		var err error
		trainers, err = s.registry.DepartmentTrainers(gctx, req.DepartmentID)
		return err
	})
	g.Go(func() error {
		var err error
		sessions, err = s.departmentSessions(gctx, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	from, _ := parseDate(req.DateStart)
	to, _ := parseDate(req.DateEnd)
	workingDays := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !isWeekend(d) {
			workingDays++
		}
	}
	possible := workingDays * len(departmentBlocks)
	weeks := int(to.Sub(from).Hours()/24)/7 + 1

	report := &dto.OccupancyReport{
		DateStart:       req.DateStart,
		DateEnd:         req.DateEnd,
		Department:      dept.Name,
		Rooms:           []dto.RoomOccupancy{},
		Trainers:        []dto.TrainerLoad{},
		Recommendations: []string{},
	}

	roomUse := make(map[int64]int)
	trainerUse := make(map[int64]int)
	startUse := make(map[string]int)
	for _, sess := range sessions {
		startUse[sess.TimeStart]++
		for _, c := range sess.Competencies {
			if c.RoomID != nil {
				roomUse[*c.RoomID]++
			}
			if c.TrainerID != nil {
				trainerUse[*c.TrainerID]++
			}
		}
	}

	for _, room := range rooms {
		occ := roomUse[room.ID]
		rate := 0.0
		if possible > 0 {
			rate = round2(float64(occ) / float64(possible) * 100)
		}
		report.Rooms = append(report.Rooms, dto.RoomOccupancy{RoomID: room.ID, Name: room.Name, Rate: rate, Occupied: occ, Available: possible})
	}
	for _, t := range trainers {
		n := trainerUse[t.ID]
		report.Trainers = append(report.Trainers, dto.TrainerLoad{TrainerID: t.ID, Name: t.FullName(), Sessions: n, WeeklyLoad: round1(float64(n) / float64(weeks))})
	}
	report.Blocks = blockUsage(startUse)
	report.Recommendations = recommendations(report)
	return report, nil
}

// blockUsage lists the standard block starts first, then any other start.
func blockUsage(starts map[string]int) []dto.BlockUsage {
	out := make([]dto.BlockUsage, 0, len(departmentBlocks)+len(starts))
	standard := make(map[string]struct{}, len(departmentBlocks))
	for _, b := range departmentBlocks {
		key := formatClock(b.start)
		standard[key] = struct{}{}
		out = append(out, dto.BlockUsage{Start: key, Count: starts[key]})
	}
	var extra []string
	for key := range starts {
		if _, ok := standard[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		out = append(out, dto.BlockUsage{Start: key, Count: starts[key]})
	}
	return out
}

func recommendations(report *dto.OccupancyReport) []string {
	out := []string{}
	for _, r := range report.Rooms {
		switch {
		case r.Rate < 30:
			out = append(out, fmt.Sprintf("Salle %s sous-utilisée (%.2f%%). Considérer une réorganisation.", r.Name, r.Rate))
		case r.Rate > 90:
			out = append(out, fmt.Sprintf("Salle %s sur-utilisée (%.2f%%). Risque de saturation.", r.Name, r.Rate))
		}
	}
	if len(report.Trainers) > 0 {
		sum := 0.0
		for _, t := range report.Trainers {
			sum += t.WeeklyLoad
		}
		mean := sum / float64(len(report.Trainers))
		for _, t := range report.Trainers {
			switch {
			case t.WeeklyLoad > mean*1.5:
				out = append(out, fmt.Sprintf("Formateur %s surchargé (%.1f créneaux/sem). Redistribuer la charge.", t.Name, t.WeeklyLoad))
			case t.WeeklyLoad < mean*0.5:
				out = append(out, fmt.Sprintf("Formateur %s sous-utilisé (%.1f créneaux/sem). Potentiel d'optimisation.", t.Name, t.WeeklyLoad))
			}
		}
	}
	if len(report.Blocks) > 0 {
		total := 0
		for _, b := range report.Blocks {
			total += b.Count
		}
		mean := float64(total) / float64(len(report.Blocks))
		for _, b := range report.Blocks {
			if float64(b.Count) < mean*0.5 {
				out = append(out, fmt.Sprintf("Créneau %s peu utilisé. Envisager une redistribution.", b.Start))
			}
		}
	}
	return out
}

// Reorganize turns detected clashes into resolution proposals.
func (s *AnalysisService) Reorganize(ctx context.Context, caller models.Caller, req dto.AnalysisRequest) (*dto.ReorganizationResponse, error) {
	if err := s.authorize(ctx, caller, req); err != nil {
		return nil, err
	}
	sessions, err := s.departmentSessions(ctx, req)
	if err != nil {
		return nil, err
	}
	conflicts := s.conflicts.DetectPairs(sessions)
	resp := &dto.ReorganizationResponse{ConflictCount: len(conflicts), Proposals: []dto.ReorganizationProposal{}}
	for _, c := range conflicts {
		id := fmt.Sprintf("%d_%d", c.FirstID, c.SecondID)
		switch c.Type {
		case dto.PairConflictTrainer:
			resp.Proposals = append(resp.Proposals, dto.ReorganizationProposal{
				ConflictID:  id,
				Solution:    solutionChangeSlot,
				Description: "Déplacer un des cours vers un créneau libre",
				Feasibility: feasibilityHigh,
			})
		case dto.PairConflictYear:
			resp.Proposals = append(resp.Proposals, dto.ReorganizationProposal{
				ConflictID:  id,
				Solution:    solutionSplitCourses,
				Description: "Séparer les cours sur des créneaux différents",
				Feasibility: feasibilityMedium,
			})
		}
	}
	resp.Feasibility = overallFeasibility(resp.Proposals)
	return resp, nil
}

func overallFeasibility(proposals []dto.ReorganizationProposal) string {
	if len(proposals) == 0 {
		return feasibilityNone
	}
	high := 0
	for _, p := range proposals {
		if p.Feasibility == feasibilityHigh {
			high++
		}
	}
	ratio := float64(high) / float64(len(proposals))
	switch {
	case ratio > 0.8:
		return feasibilityVery
	case ratio > 0.5:
		return feasibilityModerately
	default:
		return feasibilityLow
	}
}
