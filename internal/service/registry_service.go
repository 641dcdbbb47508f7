package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
)

type departmentReader interface {
	FindByID(ctx context.Context, id int64) (*models.Department, error)
	ListByChief(ctx context.Context, trainerID int64) ([]models.Department, error)
	IsChief(ctx context.Context, trainerID, departmentID int64) (bool, error)
}

type trainerReader interface {
	FindByUserID(ctx context.Context, userID int64) (*models.Trainer, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.Trainer, error)
	ListByDepartment(ctx context.Context, departmentID int64) ([]models.Trainer, error)
}

type tradeReader interface {
	FindByID(ctx context.Context, id int64) (*models.Trade, error)
}

type competencyReader interface {
	ListByIDs(ctx context.Context, ids []int64) ([]models.CompetencyDetail, error)
	ListByTrade(ctx context.Context, tradeID int64) ([]models.CompetencyDetail, error)
	ListByDepartments(ctx context.Context, departmentIDs []int64) ([]models.CompetencyDetail, error)
}

type trainingYearReader interface {
	FindByID(ctx context.Context, id int64) (*models.TrainingYear, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.TrainingYear, error)
	ListByDepartment(ctx context.Context, departmentID int64) ([]models.TrainingYear, error)
}

type roomReader interface {
	ListByBuilding(ctx context.Context, buildingID int64) ([]models.Room, error)
}

// RegistryService exposes read-only views over departments, trainers, trades,
// competencies, years and rooms, and gates scheduling writes on department
// chairmanship.
type RegistryService struct {
	departments  departmentReader
	trainers     trainerReader
	trades       tradeReader
	competencies competencyReader
	years        trainingYearReader
	rooms        roomReader
	logger       *zap.Logger
}

// NewRegistryService wires the registry readers.
func NewRegistryService(departments departmentReader, trainers trainerReader, trades tradeReader, competencies competencyReader, years trainingYearReader, rooms roomReader, logger *zap.Logger) *RegistryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryService{
		departments:  departments,
		trainers:     trainers,
		trades:       trades,
		competencies: competencies,
		years:        years,
		rooms:        rooms,
		logger:       logger,
	}
}

// ResolveCaller maps the authenticated user onto its trainer profile. Users
// without one cannot write schedules.
func (s *RegistryService) ResolveCaller(ctx context.Context, caller models.Caller) (*models.Trainer, error) {
	if caller.UserID == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	trainer, err := s.trainers.FindByUserID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no trainer profile is attached to this account")
		}
		return nil, internalError(err, "failed to resolve trainer")
	}
	return trainer, nil
}

// IsChiefOf reports whether the trainer chairs the department.
func (s *RegistryService) IsChiefOf(ctx context.Context, trainerID, departmentID int64) (bool, error) {
	ok, err := s.departments.IsChief(ctx, trainerID, departmentID)
	if err != nil {
		return false, internalError(err, "failed to check department chief")
	}
	return ok, nil
}

// DepartmentsManagedBy lists the departments chaired by the trainer.
func (s *RegistryService) DepartmentsManagedBy(ctx context.Context, trainerID int64) ([]models.Department, error) {
	depts, err := s.departments.ListByChief(ctx, trainerID)
	if err != nil {
		return nil, internalError(err, "failed to load managed departments")
	}
	return depts, nil
}

// ManagedDepartments lists the departments chaired by the caller.
func (s *RegistryService) ManagedDepartments(ctx context.Context, caller models.Caller) ([]models.Department, error) {
	trainer, err := s.ResolveCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.DepartmentsManagedBy(ctx, trainer.ID)
}

// VisibleDepartments returns the department scope of read endpoints. Admins
// and directors see everything, reported as all=true.
func (s *RegistryService) VisibleDepartments(ctx context.Context, caller models.Caller) (ids []int64, all bool, err error) {
	if caller.Role == models.RoleAdmin || caller.Role == models.RoleDirector {
		return nil, true, nil
	}
	depts, err := s.ManagedDepartments(ctx, caller)
	if err != nil {
		return nil, false, err
	}
	if len(depts) == 0 {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "caller does not chair any department")
	}
	ids = make([]int64, 0, len(depts))
	for _, d := range depts {
		ids = append(ids, d.ID)
	}
	return ids, false, nil
}

// LoadCompetencies resolves competencies in one batched lookup. Unknown ids
// are a validation error.
func (s *RegistryService) LoadCompetencies(ctx context.Context, ids []int64) (map[int64]models.CompetencyDetail, error) {
	ids = uniqueIDs(ids)
	out := make(map[int64]models.CompetencyDetail, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := s.competencies.ListByIDs(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load competencies")
	}
	for _, item := range items {
		out[item.ID] = item
	}
	var missing []string
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown competencies: "+strings.Join(missing, ", "))
	}
	return out, nil
}

// Year returns a training year or 404.
func (s *RegistryService) Year(ctx context.Context, id int64) (*models.TrainingYear, error) {
	year, err := s.years.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training year not found")
		}
		return nil, internalError(err, "failed to load training year")
	}
	return year, nil
}

// Years batches year lookups by id.
func (s *RegistryService) Years(ctx context.Context, ids []int64) (map[int64]models.TrainingYear, error) {
	out := make(map[int64]models.TrainingYear)
	if len(ids) == 0 {
		return out, nil
	}
	years, err := s.years.ListByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, internalError(err, "failed to load training years")
	}
	for _, y := range years {
		out[y.ID] = y
	}
	return out, nil
}

// Trade returns a trade or 404.
func (s *RegistryService) Trade(ctx context.Context, id int64) (*models.Trade, error) {
	trade, err := s.trades.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trade not found")
		}
		return nil, internalError(err, "failed to load trade")
	}
	return trade, nil
}

// Department returns a department or 404.
func (s *RegistryService) Department(ctx context.Context, id int64) (*models.Department, error) {
	dept, err := s.departments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, internalError(err, "failed to load department")
	}
	return dept, nil
}

// TradeCompetencies lists the competencies of a trade.
func (s *RegistryService) TradeCompetencies(ctx context.Context, tradeID int64) ([]models.CompetencyDetail, error) {
	items, err := s.competencies.ListByTrade(ctx, tradeID)
	if err != nil {
		return nil, internalError(err, "failed to load trade competencies")
	}
	return items, nil
}

// AuthorizeScheduling checks that the caller chairs every department owning
// the competencies and the year. When none can be derived the caller must
// chair at least one department.
func (s *RegistryService) AuthorizeScheduling(ctx context.Context, caller models.Caller, year *models.TrainingYear, competencies []models.CompetencyDetail) (*models.Trainer, error) {
	trainer, err := s.ResolveCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	required := make(map[int64]struct{})
	for _, c := range competencies {
		required[c.DepartmentID] = struct{}{}
	}
	if year != nil && year.DepartmentID != nil {
		required[*year.DepartmentID] = struct{}{}
	}

	if len(required) == 0 {
		managed, err := s.DepartmentsManagedBy(ctx, trainer.ID)
		if err != nil {
			return nil, err
		}
		if len(managed) == 0 {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only a department chief can schedule sessions")
		}
		return trainer, nil
	}

	deptIDs := make([]int64, 0, len(required))
	for id := range required {
		deptIDs = append(deptIDs, id)
	}
	sort.Slice(deptIDs, func(i, j int) bool { return deptIDs[i] < deptIDs[j] })
	for _, id := range deptIDs {
		ok, err := s.IsChiefOf(ctx, trainer.ID, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Info("scheduling write refused", zap.Int64("trainer_id", trainer.ID), zap.Int64("department_id", id))
			return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("caller does not chair department %d", id))
		}
	}
	return trainer, nil
}

// AuthorizeDepartment checks that the caller chairs the department.
func (s *RegistryService) AuthorizeDepartment(ctx context.Context, caller models.Caller, departmentID int64) (*models.Trainer, error) {
	trainer, err := s.ResolveCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	ok, err := s.IsChiefOf(ctx, trainer.ID, departmentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("caller does not chair department %d", departmentID))
	}
	return trainer, nil
}

// DepartmentTrainers lists trainers teaching in the department, by id.
func (s *RegistryService) DepartmentTrainers(ctx context.Context, departmentID int64) ([]models.Trainer, error) {
	trainers, err := s.trainers.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, internalError(err, "failed to load department trainers")
	}
	return trainers, nil
}

// Trainers batches trainer lookups by id.
func (s *RegistryService) Trainers(ctx context.Context, ids []int64) (map[int64]models.Trainer, error) {
	out := make(map[int64]models.Trainer)
	if len(ids) == 0 {
		return out, nil
	}
	trainers, err := s.trainers.ListByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, internalError(err, "failed to load trainers")
	}
	for _, t := range trainers {
		out[t.ID] = t
	}
	return out, nil
}

// DepartmentYears lists the training years of a department.
func (s *RegistryService) DepartmentYears(ctx context.Context, departmentID int64) ([]models.TrainingYear, error) {
	years, err := s.years.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, internalError(err, "failed to load department years")
	}
	return years, nil
}

// DepartmentCompetencies lists the competencies of the department's trades.
func (s *RegistryService) DepartmentCompetencies(ctx context.Context, departmentID int64) ([]models.CompetencyDetail, error) {
	items, err := s.competencies.ListByDepartments(ctx, []int64{departmentID})
	if err != nil {
		return nil, internalError(err, "failed to load department competencies")
	}
	return items, nil
}

// BuildingRooms lists the rooms of a building.
func (s *RegistryService) BuildingRooms(ctx context.Context, buildingID int64) ([]models.Room, error) {
	rooms, err := s.rooms.ListByBuilding(ctx, buildingID)
	if err != nil {
		return nil, internalError(err, "failed to load rooms")
	}
	return rooms, nil
}
