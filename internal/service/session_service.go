package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
)

// maxSessionSpanDays caps how many dates a single session may cover.
const maxSessionSpanDays = 31

// SessionConfig tunes listing defaults.
type SessionConfig struct {
	DefaultPageSize int
}

// SessionService implements timetable CRUD and week duplication.
type SessionService struct {
	registry  *RegistryService
	quotas    *QuotaService
	conflicts *ConflictService
	sessions  sessionStore
	audit     auditWriter
	tx        txProvider
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       SessionConfig
}

// NewSessionService wires session CRUD.
func NewSessionService(
	registry *RegistryService,
	quotas *QuotaService,
	conflicts *ConflictService,
	sessions sessionStore,
	audit auditWriter,
	tx txProvider,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg SessionConfig,
) *SessionService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 50
	}
	return &SessionService{
		registry:  registry,
		quotas:    quotas,
		conflicts: conflicts,
		sessions:  sessions,
		audit:     audit,
		tx:        tx,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// sessionInput is a validated create or update request.
type sessionInput struct {
	session      models.Session
	start        int
	end          int
	dates        []string
	competencies []models.CompetencyDetail
	year         *models.TrainingYear
}

func (in sessionInput) proposal(exclude *int64) SlotProposal {
	p := SlotProposal{
		TrainingYearID:   in.session.TrainingYearID,
		DateStart:        in.session.DateStart,
		DateEnd:          in.session.DateEnd,
		Start:            in.start,
		End:              in.end,
		ExcludeSessionID: exclude,
	}
	p.TrainerIDs, p.RoomIDs = competencyResources(in.competencies)
	return p
}

func (in sessionInput) competencyIDs() []int64 {
	ids := make([]int64, 0, len(in.competencies))
	for _, c := range in.competencies {
		ids = append(ids, c.ID)
	}
	return ids
}

func competencyResources(comps []models.CompetencyDetail) (trainers, rooms []int64) {
	for _, c := range comps {
		if c.TrainerID != nil {
			trainers = append(trainers, *c.TrainerID)
		}
		if c.RoomID != nil {
			rooms = append(rooms, *c.RoomID)
		}
	}
	return uniqueIDs(trainers), uniqueIDs(rooms)
}

func (s *SessionService) prepare(ctx context.Context, req dto.SessionRequest) (*sessionInput, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid session payload")
	}
	start, err := parseClock(req.TimeStart)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	end, err := parseClock(req.TimeEnd)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if end <= start {
		return nil, appErrors.Clone(appErrors.ErrValidation, "heure_fin must be after heure_debut")
	}
	if req.DateEnd < req.DateStart {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_fin must not be before date_debut")
	}
	dates, err := spanDates(req.DateStart, req.DateEnd)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if len(dates) > maxSessionSpanDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("a session cannot span more than %d days", maxSessionSpanDays))
	}

	year, err := s.registry.Year(ctx, req.TrainingYearID)
	if err != nil {
		return nil, err
	}
	comps, err := s.registry.LoadCompetencies(ctx, req.Competencies)
	if err != nil {
		return nil, err
	}
	ordered := make([]models.CompetencyDetail, 0, len(comps))
	for _, id := range uniqueIDs(req.Competencies) {
		ordered = append(ordered, comps[id])
	}
	return &sessionInput{
		session: models.Session{
			TrainingYearID: req.TrainingYearID,
			DateStart:      req.DateStart,
			DateEnd:        req.DateEnd,
			TimeStart:      formatClock(start),
			TimeEnd:        formatClock(end),
		},
		start:        start,
		end:          end,
		dates:        dates,
		competencies: ordered,
		year:         year,
	}, nil
}

// Create stores a session and its competency links after checking the
// year, trainers and rooms involved are free.
func (s *SessionService) Create(ctx context.Context, caller models.Caller, req dto.SessionRequest, meta models.AuditMeta) (*models.SessionDetail, error) {
	in, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := s.registry.AuthorizeScheduling(ctx, caller, in.year, in.competencies); err != nil {
		return nil, err
	}

	session := in.session
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.sessions.LockDates(ctx, tx, in.dates); err != nil {
			return internalError(err, "failed to lock session dates")
		}
		conflicts, err := s.conflicts.Check(ctx, tx, in.proposal(nil))
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return conflictError("the session conflicts with existing bookings", conflicts, nil)
		}
		if err := s.sessions.Create(ctx, tx, &session); err != nil {
			return internalError(err, "failed to create session")
		}
		if err := s.sessions.AttachCompetencies(ctx, tx, session.ID, in.competencyIDs()); err != nil {
			return internalError(err, "failed to link session competencies")
		}
		return s.record(ctx, tx, caller, models.AuditActionSessionCreate, session.ID, nil, req, meta)
	})
	if err != nil {
		return nil, err
	}

	s.quotas.Invalidate(ctx, in.competencyIDs())
	s.metrics.RecordSessionsCreated("manual", 1)
	return &models.SessionDetail{Session: session, Year: in.year, Competencies: in.competencies}, nil
}

// Update rewrites a session and replaces its competency links. The session
// never conflicts with itself.
func (s *SessionService) Update(ctx context.Context, caller models.Caller, id int64, req dto.SessionRequest, meta models.AuditMeta) (*models.SessionDetail, error) {
	existing, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	in, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := s.registry.AuthorizeScheduling(ctx, caller, existing.Year, existing.Competencies); err != nil {
		return nil, err
	}
	if _, err := s.registry.AuthorizeScheduling(ctx, caller, in.year, in.competencies); err != nil {
		return nil, err
	}

	session := in.session
	session.ID = id
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		oldDates, err := spanDates(existing.DateStart, existing.DateEnd)
		if err != nil {
			return internalError(err, "stored session has invalid dates")
		}
		if err := s.sessions.LockDates(ctx, tx, append(oldDates, in.dates...)); err != nil {
			return internalError(err, "failed to lock session dates")
		}
		if _, err := s.sessions.FindByIDForUpdate(ctx, tx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "session not found")
			}
			return internalError(err, "failed to lock session")
		}
		conflicts, err := s.conflicts.Check(ctx, tx, in.proposal(&id))
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return conflictError("the session conflicts with existing bookings", conflicts, nil)
		}
		if err := s.sessions.Update(ctx, tx, &session); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "session not found")
			}
			return internalError(err, "failed to update session")
		}
		if err := s.sessions.ReplaceCompetencies(ctx, tx, id, in.competencyIDs()); err != nil {
			return internalError(err, "failed to replace session competencies")
		}
		return s.record(ctx, tx, caller, models.AuditActionSessionUpdate, id, existing.Session, req, meta)
	})
	if err != nil {
		return nil, err
	}

	touched := in.competencyIDs()
	for _, c := range existing.Competencies {
		touched = append(touched, c.ID)
	}
	s.quotas.Invalidate(ctx, touched)
	session.CreatedAt = existing.CreatedAt
	return &models.SessionDetail{Session: session, Year: in.year, Competencies: in.competencies}, nil
}

// Delete removes a session and its links.
func (s *SessionService) Delete(ctx context.Context, caller models.Caller, id int64, meta models.AuditMeta) error {
	existing, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	if _, err := s.registry.AuthorizeScheduling(ctx, caller, existing.Year, existing.Competencies); err != nil {
		return err
	}
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		dates, err := spanDates(existing.DateStart, existing.DateEnd)
		if err != nil {
			return internalError(err, "stored session has invalid dates")
		}
		if err := s.sessions.LockDates(ctx, tx, dates); err != nil {
			return internalError(err, "failed to lock session dates")
		}
		if err := s.sessions.Delete(ctx, tx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "session not found")
			}
			return internalError(err, "failed to delete session")
		}
		return s.record(ctx, tx, caller, models.AuditActionSessionDelete, id, existing.Session, nil, meta)
	})
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(existing.Competencies))
	for _, c := range existing.Competencies {
		ids = append(ids, c.ID)
	}
	s.quotas.Invalidate(ctx, ids)
	return nil
}

// Get returns a session with its year and competencies.
func (s *SessionService) Get(ctx context.Context, caller models.Caller, id int64) (*models.SessionDetail, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, internalError(err, "failed to load session")
	}
	details, err := s.details(ctx, []models.Session{*session})
	if err != nil {
		return nil, err
	}
	detail := details[0]
	if err := authorizeRead(ctx, s.registry, caller, detail.Year, detail.Competencies); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns the sessions visible to the caller, by date then start time.
func (s *SessionService) List(ctx context.Context, caller models.Caller, query dto.SessionListQuery) ([]models.SessionDetail, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, validationError(err, "invalid list filters")
	}
	visible, all, err := s.registry.VisibleDepartments(ctx, caller)
	if err != nil {
		return nil, nil, err
	}
	filter := models.SessionFilter{
		TrainingYearID: query.TrainingYearID,
		DateFrom:       query.DateFrom,
		DateTo:         query.DateTo,
		Page:           query.Page,
		PageSize:       query.PageSize,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = s.cfg.DefaultPageSize
	}
	if !all {
		filter.DepartmentIDs = visible
	}
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list sessions")
	}
	details, err := s.details(ctx, sessions)
	if err != nil {
		return nil, nil, err
	}
	return details, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListForTrainer returns the sessions of a trainer within a period.
func (s *SessionService) ListForTrainer(ctx context.Context, caller models.Caller, trainerID int64, period dto.PeriodQuery) ([]models.SessionDetail, error) {
	if err := s.checkPeriod(period); err != nil {
		return nil, err
	}
	visible, all, err := s.registry.VisibleDepartments(ctx, caller)
	if err != nil {
		return nil, err
	}
	filter := models.SessionFilter{TrainerID: &trainerID, DateFrom: period.DateFrom, DateTo: period.DateTo}
	if !all {
		filter.DepartmentIDs = visible
	}
	return s.listAll(ctx, filter)
}

// ListForYear returns the sessions of a training year within a period.
func (s *SessionService) ListForYear(ctx context.Context, caller models.Caller, yearID int64, period dto.PeriodQuery) ([]models.SessionDetail, error) {
	if err := s.checkPeriod(period); err != nil {
		return nil, err
	}
	year, err := s.registry.Year(ctx, yearID)
	if err != nil {
		return nil, err
	}
	visible, all, err := s.registry.VisibleDepartments(ctx, caller)
	if err != nil {
		return nil, err
	}
	filter := models.SessionFilter{TrainingYearID: &year.ID, DateFrom: period.DateFrom, DateTo: period.DateTo}
	if !all {
		filter.DepartmentIDs = visible
	}
	return s.listAll(ctx, filter)
}

// MyCourses returns the sessions taught by the calling trainer.
func (s *SessionService) MyCourses(ctx context.Context, caller models.Caller, period dto.PeriodQuery) ([]models.SessionDetail, error) {
	if err := s.checkPeriod(period); err != nil {
		return nil, err
	}
	trainer, err := s.registry.ResolveCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.listAll(ctx, models.SessionFilter{TrainerID: &trainer.ID, DateFrom: period.DateFrom, DateTo: period.DateTo})
}

func (s *SessionService) checkPeriod(period dto.PeriodQuery) error {
	if err := s.validator.Struct(period); err != nil {
		return validationError(err, "invalid period")
	}
	from, err := parseDate(period.DateFrom)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	to, err := parseDate(period.DateTo)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if to.Before(from) {
		return appErrors.Clone(appErrors.ErrValidation, "date_fin must not be before date_debut")
	}
	if to.Sub(from) > maxSessionSpanDays*24*time.Hour {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("a period cannot exceed %d days", maxSessionSpanDays))
	}
	return nil
}

func (s *SessionService) listAll(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, error) {
	sessions, err := s.sessions.ListAll(ctx, nil, filter)
	if err != nil {
		return nil, internalError(err, "failed to list sessions")
	}
	return s.details(ctx, sessions)
}

// DuplicateWeek copies the sessions of a year from one week onto another.
// Copies that would conflict are skipped, so repeating the call is a no-op.
func (s *SessionService) DuplicateWeek(ctx context.Context, caller models.Caller, req dto.DuplicateWeekRequest, meta models.AuditMeta) (*dto.DuplicateWeekResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid duplication payload")
	}
	srcDay, _ := parseDate(req.SourceWeek)
	dstDay, _ := parseDate(req.TargetWeek)
	source := mondayOf(srcDay)
	target := mondayOf(dstDay)
	if source.Equal(target) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and target weeks must differ")
	}
	shift := int(target.Sub(source).Hours() / 24)

	year, err := s.registry.Year(ctx, req.TrainingYearID)
	if err != nil {
		return nil, err
	}
	sourceEnd := source.AddDate(0, 0, 6)
	sessions, err := s.sessions.ListAll(ctx, nil, models.SessionFilter{TrainingYearID: &year.ID, DateFrom: formatDate(source), DateTo: formatDate(sourceEnd)})
	if err != nil {
		return nil, internalError(err, "failed to load source week")
	}
	if len(sessions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no session found in the source week")
	}
	details, err := s.details(ctx, sessions)
	if err != nil {
		return nil, err
	}
	var all []models.CompetencyDetail
	for _, d := range details {
		all = append(all, d.Competencies...)
	}
	if _, err := s.registry.AuthorizeScheduling(ctx, caller, year, all); err != nil {
		return nil, err
	}

	resp := &dto.DuplicateWeekResponse{SourceWeek: formatDate(source), TargetWeek: formatDate(target), Created: []models.SessionDetail{}, Skipped: []dto.SkippedCopy{}}
	targetEnd := target.AddDate(0, 0, 6)
	lastDate := formatDate(targetEnd)
	for _, d := range details {
		end, _ := parseDate(d.DateEnd)
		if shifted := formatDate(end.AddDate(0, 0, shift)); shifted > lastDate {
			lastDate = shifted
		}
	}

	var stale []int64
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		dates, err := spanDates(formatDate(target), lastDate)
		if err != nil {
			return internalError(err, "failed to compute target dates")
		}
		if err := s.sessions.LockDates(ctx, tx, dates); err != nil {
			return internalError(err, "failed to lock target week")
		}
		if req.Replace {
			cleared, err := s.targetCompetencies(ctx, tx, year.ID, formatDate(target), formatDate(targetEnd))
			if err != nil {
				return err
			}
			stale = cleared
			deleted, err := s.sessions.DeleteByYearAndRange(ctx, tx, year.ID, formatDate(target), formatDate(targetEnd))
			if err != nil {
				return internalError(err, "failed to clear target week")
			}
			resp.Deleted = int(deleted)
		}

		trainers, rooms := competencyResources(all)
		occ, err := s.conflicts.Snapshot(ctx, tx, models.OccupancyQuery{
			DateFrom:   formatDate(target),
			DateTo:     lastDate,
			YearIDs:    []int64{year.ID},
			TrainerIDs: trainers,
			RoomIDs:    rooms,
		})
		if err != nil {
			return err
		}

		for _, d := range details {
			copied, proposal, err := shiftSession(d, shift)
			if err != nil {
				return internalError(err, "stored session has invalid slot")
			}
			if conflicts := occ.Conflicts(proposal); len(conflicts) > 0 {
				resp.Skipped = append(resp.Skipped, dto.SkippedCopy{SourceSessionID: d.ID, Date: copied.DateStart, TimeStart: copied.TimeStart, TimeEnd: copied.TimeEnd, Conflicts: conflicts})
				continue
			}
			ids := make([]int64, 0, len(d.Competencies))
			for _, c := range d.Competencies {
				ids = append(ids, c.ID)
			}
			if err := s.sessions.Create(ctx, tx, &copied); err != nil {
				return internalError(err, "failed to copy session")
			}
			if err := s.sessions.AttachCompetencies(ctx, tx, copied.ID, ids); err != nil {
				return internalError(err, "failed to link copied session")
			}
			occ.Claim(proposal, copied.ID)
			resp.Created = append(resp.Created, models.SessionDetail{Session: copied, Year: year, Competencies: d.Competencies})
		}

		summary := map[string]any{"semaine_source": resp.SourceWeek, "semaine_cible": resp.TargetWeek, "creees": len(resp.Created), "ignorees": len(resp.Skipped), "supprimees": resp.Deleted}
		return s.record(ctx, tx, caller, models.AuditActionDuplicate, year.ID, nil, summary, meta)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(all)+len(stale))
	for _, c := range all {
		ids = append(ids, c.ID)
	}
	s.quotas.Invalidate(ctx, uniqueIDs(append(ids, stale...)))
	s.metrics.RecordSessionsCreated("duplicate", len(resp.Created))
	s.logger.Info("week duplicated",
		zap.Int64("training_year_id", year.ID),
		zap.String("source", resp.SourceWeek),
		zap.String("target", resp.TargetWeek),
		zap.Int("created", len(resp.Created)),
		zap.Int("skipped", len(resp.Skipped)),
	)
	return resp, nil
}

// targetCompetencies lists the competencies linked to a year's sessions
// starting within [from, to], read before those sessions are cleared.
func (s *SessionService) targetCompetencies(ctx context.Context, tx *sqlx.Tx, yearID int64, from, to string) ([]int64, error) {
	sessions, err := s.sessions.ListAll(ctx, tx, models.SessionFilter{TrainingYearID: &yearID, DateFrom: from, DateTo: to})
	if err != nil {
		return nil, internalError(err, "failed to load target week")
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	sessionIDs := make([]int64, 0, len(sessions))
	for _, sess := range sessions {
		sessionIDs = append(sessionIDs, sess.ID)
	}
	links, err := s.sessions.ListCompetencyLinks(ctx, sessionIDs)
	if err != nil {
		return nil, internalError(err, "failed to load target week competencies")
	}
	ids := make([]int64, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.CompetencyID)
	}
	return uniqueIDs(ids), nil
}

func shiftSession(d models.SessionDetail, shift int) (models.Session, SlotProposal, error) {
	from, err := parseDate(d.DateStart)
	if err != nil {
		return models.Session{}, SlotProposal{}, err
	}
	to, err := parseDate(d.DateEnd)
	if err != nil {
		return models.Session{}, SlotProposal{}, err
	}
	start, err := parseClock(d.TimeStart)
	if err != nil {
		return models.Session{}, SlotProposal{}, err
	}
	end, err := parseClock(d.TimeEnd)
	if err != nil {
		return models.Session{}, SlotProposal{}, err
	}
	copied := models.Session{
		TrainingYearID: d.TrainingYearID,
		DateStart:      formatDate(from.AddDate(0, 0, shift)),
		DateEnd:        formatDate(to.AddDate(0, 0, shift)),
		TimeStart:      formatClock(start),
		TimeEnd:        formatClock(end),
	}
	p := SlotProposal{TrainingYearID: copied.TrainingYearID, DateStart: copied.DateStart, DateEnd: copied.DateEnd, Start: start, End: end}
	p.TrainerIDs, p.RoomIDs = competencyResources(d.Competencies)
	return copied, p, nil
}

// details resolves years and competencies of sessions in batches.
func (s *SessionService) details(ctx context.Context, sessions []models.Session) ([]models.SessionDetail, error) {
	return assembleDetails(ctx, s.registry, s.sessions, sessions)
}

type linkReader interface {
	ListCompetencyLinks(ctx context.Context, sessionIDs []int64) ([]models.SessionCompetency, error)
}

func assembleDetails(ctx context.Context, registry *RegistryService, links linkReader, sessions []models.Session) ([]models.SessionDetail, error) {
	out := make([]models.SessionDetail, 0, len(sessions))
	if len(sessions) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(sessions))
	yearIDs := make([]int64, 0, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
		yearIDs = append(yearIDs, sess.TrainingYearID)
	}
	rows, err := links.ListCompetencyLinks(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load session competencies")
	}
	bySession := make(map[int64][]int64, len(sessions))
	compIDs := make([]int64, 0, len(rows))
	for _, l := range rows {
		bySession[l.SessionID] = append(bySession[l.SessionID], l.CompetencyID)
		compIDs = append(compIDs, l.CompetencyID)
	}
	comps, err := registry.LoadCompetencies(ctx, compIDs)
	if err != nil {
		return nil, err
	}
	years, err := registry.Years(ctx, yearIDs)
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		detail := models.SessionDetail{Session: sess, Competencies: []models.CompetencyDetail{}}
		if y, ok := years[sess.TrainingYearID]; ok {
			year := y
			detail.Year = &year
		}
		for _, id := range bySession[sess.ID] {
			detail.Competencies = append(detail.Competencies, comps[id])
		}
		out = append(out, detail)
	}
	return out, nil
}

func (s *SessionService) record(ctx context.Context, exec sqlx.ExtContext, caller models.Caller, action string, id int64, oldValues, newValues any, meta models.AuditMeta) error {
	resource := models.AuditResourceSession
	if action == models.AuditActionDuplicate {
		resource = models.AuditResourceYear
	}
	if err := writeAudit(ctx, s.audit, exec, caller, action, resource, id, oldValues, newValues, meta); err != nil {
		return internalError(err, "failed to record audit log")
	}
	return nil
}
