package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// sessionStore is the persistence surface shared by every scheduling writer.
type sessionStore interface {
	FindByID(ctx context.Context, id int64) (*models.Session, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.QueryerContext, id int64) (*models.Session, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	ListAll(ctx context.Context, exec sqlx.QueryerContext, filter models.SessionFilter) ([]models.Session, error)
	Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	Update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error
	DeleteByYearAndRange(ctx context.Context, exec sqlx.ExtContext, yearID int64, from, to string) (int64, error)
	AttachCompetencies(ctx context.Context, exec sqlx.ExtContext, sessionID int64, competencyIDs []int64) error
	ReplaceCompetencies(ctx context.Context, exec sqlx.ExtContext, sessionID int64, competencyIDs []int64) error
	ListCompetencyLinks(ctx context.Context, sessionIDs []int64) ([]models.SessionCompetency, error)
	ListBusyWindows(ctx context.Context, exec sqlx.QueryerContext, q models.OccupancyQuery) ([]models.BusyWindow, error)
	ListCompetencyWindows(ctx context.Context, exec sqlx.QueryerContext, competencyIDs []int64, from, to string) ([]models.CompetencyWindow, error)
	LockDates(ctx context.Context, exec sqlx.ExtContext, dates []string) error
}

// RunState is a step of a generation run.
type RunState string

const (
	RunPending           RunState = "PENDING"
	RunValidatingRights  RunState = "VALIDATING_RIGHTS"
	RunCheckingConflicts RunState = "CHECKING_CONFLICTS"
	RunPersisting        RunState = "PERSISTING"
	RunDone              RunState = "DONE"
	RunRejected          RunState = "REJECTED"
)

// Generation strategies.
const (
	StrategyUnlimited  = "unlimited"
	StrategyCapped     = "capped"
	StrategyDepartment = "department"
)

// generationRun tracks one allocator invocation. It is request scoped.
type generationRun struct {
	id       string
	strategy string
	state    RunState
	started  time.Time
	logger   *zap.Logger
}

func newGenerationRun(strategy string, logger *zap.Logger) *generationRun {
	id := uuid.NewString()
	run := &generationRun{
		id:       id,
		strategy: strategy,
		state:    RunPending,
		started:  time.Now(),
		logger:   logger.With(zap.String("run_id", id), zap.String("strategy", strategy)),
	}
	run.logger.Debug("generation run state", zap.String("state", string(run.state)))
	return run
}

func (r *generationRun) advance(state RunState) {
	r.state = state
	r.logger.Debug("generation run state", zap.String("state", string(state)))
}

// reject moves the run to REJECTED and passes err through.
func (r *generationRun) reject(err error) error {
	r.state = RunRejected
	r.logger.Info("generation run rejected", zap.Duration("elapsed", time.Since(r.started)), zap.Error(err))
	return err
}

func (r *generationRun) finish(created int) {
	r.state = RunDone
	r.logger.Info("generation run done", zap.Int("created", created), zap.Duration("elapsed", time.Since(r.started)))
}

// withTx runs fn inside one transaction, rolling back when it fails.
func withTx(ctx context.Context, provider txProvider, fn func(tx *sqlx.Tx) error) (err error) {
	if provider == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := provider.BeginTxx(ctx, nil)
	if err != nil {
		return internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return internalError(err, "failed to commit transaction")
	}
	return nil
}

func internalError(err error, message string) error {
	return appErrors.WrapAs(err, appErrors.ErrInternal, message)
}

// conflictError wraps the itemised conflicts into a 422 domain error.
func conflictError(message string, conflicts []models.SessionConflict, suggestions []models.SlotSuggestion) error {
	return appErrors.Wrap(&models.ConflictError{Message: message, Conflicts: conflicts, Suggestions: suggestions},
		appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, message)
}

// writeAudit stores an audit row inside the caller's transaction.
func writeAudit(ctx context.Context, audit auditWriter, exec sqlx.ExtContext, caller models.Caller, action, resource string, resourceID int64, oldValues, newValues any, meta models.AuditMeta) error {
	if audit == nil {
		return nil
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if caller.UserID != 0 {
		userID := caller.UserID
		entry.UserID = &userID
	}
	if resourceID != 0 {
		id := strconv.FormatInt(resourceID, 10)
		entry.ResourceID = &id
	}
	var err error
	if oldValues != nil {
		if entry.OldValues, err = json.Marshal(oldValues); err != nil {
			return err
		}
	}
	if newValues != nil {
		if entry.NewValues, err = json.Marshal(newValues); err != nil {
			return err
		}
	}
	return audit.Create(ctx, exec, entry)
}

// spanDates lists every date from start to end inclusive.
func spanDates(start, end string) ([]string, error) {
	from, err := parseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(end)
	if err != nil {
		return nil, err
	}
	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, formatDate(d))
	}
	return dates, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// authorizeRead lets admins and directors read everything and chiefs read
// sessions touching one of their departments.
func authorizeRead(ctx context.Context, registry *RegistryService, caller models.Caller, year *models.TrainingYear, competencies []models.CompetencyDetail) error {
	visible, all, err := registry.VisibleDepartments(ctx, caller)
	if err != nil {
		return err
	}
	if all {
		return nil
	}
	allowed := make(map[int64]struct{}, len(visible))
	for _, id := range visible {
		allowed[id] = struct{}{}
	}
	derived := 0
	if year != nil && year.DepartmentID != nil {
		derived++
		if _, ok := allowed[*year.DepartmentID]; ok {
			return nil
		}
	}
	for _, c := range competencies {
		derived++
		if _, ok := allowed[c.DepartmentID]; ok {
			return nil
		}
	}
	if derived == 0 {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "session belongs to a department you do not manage")
}
