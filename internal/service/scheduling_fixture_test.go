package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/models"
)

func int64Ptr(v int64) *int64 { return &v }

var (
	chiefInfo    = models.Caller{UserID: 100, Role: models.RoleDepartmentHead}
	chiefGestion = models.Caller{UserID: 200, Role: models.RoleDepartmentHead}
	plainTrainer = models.Caller{UserID: 101, Role: models.RoleTrainer}
	adminCaller  = models.Caller{UserID: 1, Role: models.RoleAdmin}
)

type fakeDepartments struct {
	items map[int64]models.Department
}

func (f *fakeDepartments) FindByID(ctx context.Context, id int64) (*models.Department, error) {
	d, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &d, nil
}

func (f *fakeDepartments) ListByChief(ctx context.Context, trainerID int64) ([]models.Department, error) {
	var out []models.Department
	for _, d := range f.items {
		if d.ChiefTrainerID != nil && *d.ChiefTrainerID == trainerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDepartments) IsChief(ctx context.Context, trainerID, departmentID int64) (bool, error) {
	d, ok := f.items[departmentID]
	return ok && d.ChiefTrainerID != nil && *d.ChiefTrainerID == trainerID, nil
}

type fakeTrainers struct {
	items        map[int64]models.Trainer
	byDepartment map[int64][]int64
}

func (f *fakeTrainers) FindByUserID(ctx context.Context, userID int64) (*models.Trainer, error) {
	for _, t := range f.items {
		if t.UserID == userID {
			out := t
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTrainers) ListByIDs(ctx context.Context, ids []int64) ([]models.Trainer, error) {
	var out []models.Trainer
	for _, id := range ids {
		if t, ok := f.items[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTrainers) ListByDepartment(ctx context.Context, departmentID int64) ([]models.Trainer, error) {
	var out []models.Trainer
	for _, id := range f.byDepartment[departmentID] {
		out = append(out, f.items[id])
	}
	return out, nil
}

type fakeTrades struct {
	items map[int64]models.Trade
}

func (f *fakeTrades) FindByID(ctx context.Context, id int64) (*models.Trade, error) {
	t, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

type fakeCompetencies struct {
	items map[int64]models.CompetencyDetail
}

func (f *fakeCompetencies) sorted(keep func(models.CompetencyDetail) bool) []models.CompetencyDetail {
	var out []models.CompetencyDetail
	for _, c := range f.items {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeCompetencies) ListByIDs(ctx context.Context, ids []int64) ([]models.CompetencyDetail, error) {
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return f.sorted(func(c models.CompetencyDetail) bool { _, ok := wanted[c.ID]; return ok }), nil
}

func (f *fakeCompetencies) ListByTrade(ctx context.Context, tradeID int64) ([]models.CompetencyDetail, error) {
	return f.sorted(func(c models.CompetencyDetail) bool { return c.TradeID == tradeID }), nil
}

func (f *fakeCompetencies) ListByDepartments(ctx context.Context, departmentIDs []int64) ([]models.CompetencyDetail, error) {
	return f.sorted(func(c models.CompetencyDetail) bool { return containsInt64(departmentIDs, c.DepartmentID) }), nil
}

type fakeYears struct {
	items map[int64]models.TrainingYear
}

func (f *fakeYears) FindByID(ctx context.Context, id int64) (*models.TrainingYear, error) {
	y, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &y, nil
}

func (f *fakeYears) ListByIDs(ctx context.Context, ids []int64) ([]models.TrainingYear, error) {
	var out []models.TrainingYear
	for _, id := range ids {
		if y, ok := f.items[id]; ok {
			out = append(out, y)
		}
	}
	return out, nil
}

func (f *fakeYears) ListByDepartment(ctx context.Context, departmentID int64) ([]models.TrainingYear, error) {
	var out []models.TrainingYear
	for _, y := range f.items {
		if y.DepartmentID != nil && *y.DepartmentID == departmentID {
			out = append(out, y)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeRooms struct {
	items []models.Room
}

func (f *fakeRooms) ListByBuilding(ctx context.Context, buildingID int64) ([]models.Room, error) {
	var out []models.Room
	for _, r := range f.items {
		if r.BuildingID == buildingID {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeSessionStore keeps sessions in memory and answers the occupancy
// queries the way the SQL repository does.
type fakeSessionStore struct {
	sessions map[int64]*models.Session
	links    map[int64][]int64
	comps    *fakeCompetencies
	years    *fakeYears
	nextID   int64
	locked   [][]string
}

func newFakeSessionStore(comps *fakeCompetencies, years *fakeYears) *fakeSessionStore {
	return &fakeSessionStore{sessions: map[int64]*models.Session{}, links: map[int64][]int64{}, comps: comps, years: years}
}

// seed stores a session and returns its id.
func (f *fakeSessionStore) seed(yearID int64, dateStart, dateEnd, timeStart, timeEnd string, competencyIDs ...int64) int64 {
	f.nextID++
	f.sessions[f.nextID] = &models.Session{ID: f.nextID, TrainingYearID: yearID, DateStart: dateStart, DateEnd: dateEnd, TimeStart: timeStart, TimeEnd: timeEnd}
	f.links[f.nextID] = append([]int64(nil), competencyIDs...)
	return f.nextID
}

func (f *fakeSessionStore) ordered() []models.Session {
	out := make([]models.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DateStart != out[j].DateStart {
			return out[i].DateStart < out[j].DateStart
		}
		if out[i].TimeStart != out[j].TimeStart {
			return out[i].TimeStart < out[j].TimeStart
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (f *fakeSessionStore) matches(s models.Session, filter models.SessionFilter) bool {
	year := f.years.items[s.TrainingYearID]
	if len(filter.DepartmentIDs) > 0 {
		ok := year.DepartmentID != nil && containsInt64(filter.DepartmentIDs, *year.DepartmentID)
		for _, id := range f.links[s.ID] {
			if containsInt64(filter.DepartmentIDs, f.comps.items[id].DepartmentID) {
				ok = true
			}
		}
		if !ok {
			return false
		}
	}
	if filter.YearDepartmentID != nil && (year.DepartmentID == nil || *year.DepartmentID != *filter.YearDepartmentID) {
		return false
	}
	if filter.TrainingYearID != nil && s.TrainingYearID != *filter.TrainingYearID {
		return false
	}
	if filter.TrainerID != nil {
		ok := false
		for _, id := range f.links[s.ID] {
			if c := f.comps.items[id]; c.TrainerID != nil && *c.TrainerID == *filter.TrainerID {
				ok = true
			}
		}
		if !ok {
			return false
		}
	}
	if filter.DateFrom != "" && s.DateStart < filter.DateFrom {
		return false
	}
	if filter.DateTo != "" && s.DateStart > filter.DateTo {
		return false
	}
	return true
}

func (f *fakeSessionStore) FindByID(ctx context.Context, id int64) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *s
	return &out, nil
}

func (f *fakeSessionStore) FindByIDForUpdate(ctx context.Context, exec sqlx.QueryerContext, id int64) (*models.Session, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeSessionStore) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	all, _ := f.ListAll(ctx, nil, filter)
	total := len(all)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeSessionStore) ListAll(ctx context.Context, exec sqlx.QueryerContext, filter models.SessionFilter) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.ordered() {
		if f.matches(s, filter) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	f.nextID++
	session.ID = f.nextID
	stored := *session
	f.sessions[session.ID] = &stored
	return nil
}

func (f *fakeSessionStore) Update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if _, ok := f.sessions[session.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *session
	f.sessions[session.ID] = &stored
	return nil
}

func (f *fakeSessionStore) Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	if _, ok := f.sessions[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.sessions, id)
	delete(f.links, id)
	return nil
}

func (f *fakeSessionStore) DeleteByYearAndRange(ctx context.Context, exec sqlx.ExtContext, yearID int64, from, to string) (int64, error) {
	var n int64
	for id, s := range f.sessions {
		if s.TrainingYearID == yearID && s.DateStart >= from && s.DateStart <= to {
			delete(f.sessions, id)
			delete(f.links, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionStore) AttachCompetencies(ctx context.Context, exec sqlx.ExtContext, sessionID int64, competencyIDs []int64) error {
	f.links[sessionID] = append(f.links[sessionID], competencyIDs...)
	return nil
}

func (f *fakeSessionStore) ReplaceCompetencies(ctx context.Context, exec sqlx.ExtContext, sessionID int64, competencyIDs []int64) error {
	f.links[sessionID] = append([]int64(nil), competencyIDs...)
	return nil
}

func (f *fakeSessionStore) ListCompetencyLinks(ctx context.Context, sessionIDs []int64) ([]models.SessionCompetency, error) {
	var out []models.SessionCompetency
	for _, sid := range sessionIDs {
		for _, cid := range f.links[sid] {
			out = append(out, models.SessionCompetency{SessionID: sid, CompetencyID: cid})
		}
	}
	return out, nil
}

func (f *fakeSessionStore) ListBusyWindows(ctx context.Context, exec sqlx.QueryerContext, q models.OccupancyQuery) ([]models.BusyWindow, error) {
	var out []models.BusyWindow
	for _, s := range f.ordered() {
		if q.ExcludeSessionID != nil && s.ID == *q.ExcludeSessionID {
			continue
		}
		if !datesIntersect(s.DateStart, s.DateEnd, q.DateFrom, q.DateTo) {
			continue
		}
		base := models.BusyWindow{SessionID: s.ID, TrainingYearID: s.TrainingYearID, DateStart: s.DateStart, DateEnd: s.DateEnd, TimeStart: s.TimeStart, TimeEnd: s.TimeEnd}
		if containsInt64(q.YearIDs, s.TrainingYearID) {
			out = append(out, base)
		}
		for _, cid := range f.links[s.ID] {
			c := f.comps.items[cid]
			trainerHit := c.TrainerID != nil && containsInt64(q.TrainerIDs, *c.TrainerID)
			roomHit := c.RoomID != nil && containsInt64(q.RoomIDs, *c.RoomID)
			if !trainerHit && !roomHit {
				continue
			}
			w := base
			w.CompetencyID = int64Ptr(cid)
			w.TrainerID = c.TrainerID
			w.RoomID = c.RoomID
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) ListCompetencyWindows(ctx context.Context, exec sqlx.QueryerContext, competencyIDs []int64, from, to string) ([]models.CompetencyWindow, error) {
	var out []models.CompetencyWindow
	for _, s := range f.ordered() {
		if from != "" && s.DateStart < from {
			continue
		}
		if to != "" && s.DateStart > to {
			continue
		}
		for _, cid := range f.links[s.ID] {
			if containsInt64(competencyIDs, cid) {
				out = append(out, models.CompetencyWindow{CompetencyID: cid, SessionID: s.ID, DateStart: s.DateStart, TimeStart: s.TimeStart, TimeEnd: s.TimeEnd})
			}
		}
	}
	return out, nil
}

func (f *fakeSessionStore) LockDates(ctx context.Context, exec sqlx.ExtContext, dates []string) error {
	f.locked = append(f.locked, dates)
	return nil
}

func containsInt64(items []int64, id int64) bool {
	for _, item := range items {
		if item == id {
			return true
		}
	}
	return false
}

type schedulingTxProvider struct {
	db *sqlx.DB
}

func (p *schedulingTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

func newSchedulingTx(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &schedulingTxProvider{db: sqlx.NewDb(db, "sqlmock")}, mock
}

// schedulingWorld is a two-department institute:
//
//	department 1 (Informatique, building 1) chaired by trainer 10 (user 100)
//	department 2 (Gestion) chaired by trainer 20 (user 200)
//	competency 101: 10h, trainer 10, room 1    competency 102: 6h, trainer 11, room 2
//	competency 103: 4h, trainer 10, room 1     competency 201: 8h, trainer 20, room 3
//	year 1 (DEV101) in department 1, year 2 (GES101) in department 2
type schedulingWorld struct {
	departments  *fakeDepartments
	trainers     *fakeTrainers
	trades       *fakeTrades
	competencies *fakeCompetencies
	years        *fakeYears
	rooms        *fakeRooms
	store        *fakeSessionStore
	audit        *auditRecorderStub
	registry     *RegistryService
	quotas       *QuotaService
	conflicts    *ConflictService
}

func newSchedulingWorld() *schedulingWorld {
	w := &schedulingWorld{
		departments: &fakeDepartments{items: map[int64]models.Department{
			1: {ID: 1, Name: "Informatique", BuildingID: int64Ptr(1), ChiefTrainerID: int64Ptr(10)},
			2: {ID: 2, Name: "Gestion", ChiefTrainerID: int64Ptr(20)},
		}},
		trainers: &fakeTrainers{
			items: map[int64]models.Trainer{
				10: {ID: 10, LastName: "Alami", FirstName: "Sara", UserID: 100},
				11: {ID: 11, LastName: "Bennani", FirstName: "Omar", UserID: 101},
				20: {ID: 20, LastName: "Chraibi", FirstName: "Nadia", UserID: 200},
			},
			byDepartment: map[int64][]int64{1: {10, 11}, 2: {20}},
		},
		trades: &fakeTrades{items: map[int64]models.Trade{
			1: {ID: 1, Title: "Développement digital", DepartmentID: 1},
			2: {ID: 2, Title: "Gestion des entreprises", DepartmentID: 2},
		}},
		competencies: &fakeCompetencies{items: map[int64]models.CompetencyDetail{
			101: competencyFixture(101, "Algorithmique", 10, 1, 1, 10, 1),
			102: competencyFixture(102, "Réseaux", 6, 1, 1, 11, 2),
			103: competencyFixture(103, "Bases de données", 4, 1, 1, 10, 1),
			201: competencyFixture(201, "Comptabilité", 8, 2, 2, 20, 3),
		}},
		years: &fakeYears{items: map[int64]models.TrainingYear{
			1: {ID: 1, Title: "DEV101", Year: "2023-2024", DepartmentID: int64Ptr(1)},
			2: {ID: 2, Title: "GES101", Year: "2023-2024", DepartmentID: int64Ptr(2)},
		}},
		rooms: &fakeRooms{items: []models.Room{
			{ID: 1, Name: "Salle 1", Capacity: 24, BuildingID: 1},
			{ID: 2, Name: "Salle 2", Capacity: 24, BuildingID: 1},
			{ID: 3, Name: "Salle 3", Capacity: 30, BuildingID: 2},
		}},
		audit: &auditRecorderStub{},
	}
	for id, c := range w.competencies.items {
		trainer := w.trainers.items[*c.TrainerID]
		c.TrainerLastName, c.TrainerFirstName = trainer.LastName, trainer.FirstName
		w.competencies.items[id] = c
	}
	w.store = newFakeSessionStore(w.competencies, w.years)
	w.registry = NewRegistryService(w.departments, w.trainers, w.trades, w.competencies, w.years, w.rooms, zap.NewNop())
	w.quotas = NewQuotaService(w.store, w.registry, nil, nil, zap.NewNop())
	w.conflicts = NewConflictService(w.store, nil, zap.NewNop())
	return w
}

func competencyFixture(id int64, name string, quota float64, tradeID, deptID, trainerID, roomID int64) models.CompetencyDetail {
	return models.CompetencyDetail{
		Competency: models.Competency{
			ID:          id,
			Code:        fmt.Sprintf("C%d", id),
			Name:        name,
			HourlyQuota: quota,
			TradeID:     tradeID,
			TrainerID:   int64Ptr(trainerID),
			RoomID:      int64Ptr(roomID),
		},
		DepartmentID: deptID,
	}
}

func (w *schedulingWorld) planner(tx txProvider) *PlannerService {
	return NewPlannerService(w.registry, w.quotas, w.conflicts, w.store, w.audit, tx, nil, nil, zap.NewNop(), PlannerConfig{})
}

func (w *schedulingWorld) sessionService(tx txProvider) *SessionService {
	return NewSessionService(w.registry, w.quotas, w.conflicts, w.store, w.audit, tx, nil, nil, zap.NewNop(), SessionConfig{})
}
