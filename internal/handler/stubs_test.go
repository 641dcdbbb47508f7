package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/middleware"
	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
)

type sessionServiceStub struct {
	caller    models.Caller
	request   dto.SessionRequest
	updatedID int64
	query     dto.SessionListQuery
	period    dto.PeriodQuery
	called    string
	err       error
}

func (s *sessionServiceStub) Create(_ context.Context, caller models.Caller, req dto.SessionRequest, _ models.AuditMeta) (*models.SessionDetail, error) {
	s.called, s.caller, s.request = "create", caller, req
	if s.err != nil {
		return nil, s.err
	}
	return &models.SessionDetail{Session: models.Session{ID: 12, TrainingYearID: req.TrainingYearID, DateStart: req.DateStart, DateEnd: req.DateEnd, TimeStart: req.TimeStart, TimeEnd: req.TimeEnd}}, nil
}

func (s *sessionServiceStub) Update(_ context.Context, caller models.Caller, id int64, req dto.SessionRequest, _ models.AuditMeta) (*models.SessionDetail, error) {
	s.called, s.caller, s.updatedID, s.request = "update", caller, id, req
	if s.err != nil {
		return nil, s.err
	}
	return &models.SessionDetail{Session: models.Session{ID: id}}, nil
}

func (s *sessionServiceStub) Delete(_ context.Context, caller models.Caller, id int64, _ models.AuditMeta) error {
	s.called, s.caller, s.updatedID = "delete", caller, id
	return s.err
}

func (s *sessionServiceStub) Get(_ context.Context, caller models.Caller, id int64) (*models.SessionDetail, error) {
	s.called, s.caller = "get", caller
	if s.err != nil {
		return nil, s.err
	}
	return &models.SessionDetail{Session: models.Session{ID: id}}, nil
}

func (s *sessionServiceStub) List(_ context.Context, caller models.Caller, query dto.SessionListQuery) ([]models.SessionDetail, *models.Pagination, error) {
	s.called, s.caller, s.query = "list", caller, query
	if s.err != nil {
		return nil, nil, s.err
	}
	return []models.SessionDetail{{Session: models.Session{ID: 1}}}, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, nil
}

func (s *sessionServiceStub) ListForTrainer(_ context.Context, caller models.Caller, trainerID int64, period dto.PeriodQuery) ([]models.SessionDetail, error) {
	s.called, s.caller, s.updatedID, s.period = "trainer", caller, trainerID, period
	return []models.SessionDetail{}, s.err
}

func (s *sessionServiceStub) ListForYear(_ context.Context, caller models.Caller, yearID int64, period dto.PeriodQuery) ([]models.SessionDetail, error) {
	s.called, s.caller, s.updatedID, s.period = "year", caller, yearID, period
	return []models.SessionDetail{}, s.err
}

func (s *sessionServiceStub) MyCourses(_ context.Context, caller models.Caller, period dto.PeriodQuery) ([]models.SessionDetail, error) {
	s.called, s.caller, s.period = "mine", caller, period
	return []models.SessionDetail{}, s.err
}

func (s *sessionServiceStub) DuplicateWeek(_ context.Context, caller models.Caller, req dto.DuplicateWeekRequest, _ models.AuditMeta) (*dto.DuplicateWeekResponse, error) {
	s.called, s.caller = "duplicate", caller
	if s.err != nil {
		return nil, s.err
	}
	return &dto.DuplicateWeekResponse{SourceWeek: req.SourceWeek, TargetWeek: req.TargetWeek}, nil
}

type plannerServiceStub struct {
	strategy string
	request  dto.PlanRequest
	dept     dto.DepartmentGenerateRequest
	result   *dto.PlanResponse
	err      error
}

func (p *plannerServiceStub) GenerateUnlimited(_ context.Context, _ models.Caller, req dto.PlanRequest, _ models.AuditMeta) (*dto.PlanResponse, error) {
	p.strategy, p.request = "unlimited", req
	return p.result, p.err
}

func (p *plannerServiceStub) GenerateCapped(_ context.Context, _ models.Caller, req dto.PlanRequest, _ models.AuditMeta) (*dto.PlanResponse, error) {
	p.strategy, p.request = "capped", req
	return p.result, p.err
}

func (p *plannerServiceStub) GenerateForDepartment(_ context.Context, _ models.Caller, req dto.DepartmentGenerateRequest, _ models.AuditMeta) (*dto.PlanResponse, error) {
	p.strategy, p.dept = "department", req
	return p.result, p.err
}

type rescheduleServiceStub struct {
	sessionID int64
	request   dto.MoveSessionRequest
	err       error
}

func (r *rescheduleServiceStub) Move(_ context.Context, _ models.Caller, sessionID int64, req dto.MoveSessionRequest, _ models.AuditMeta) (*dto.MoveSessionResponse, error) {
	r.sessionID, r.request = sessionID, req
	if r.err != nil {
		return nil, r.err
	}
	return &dto.MoveSessionResponse{
		SessionID: sessionID,
		Previous:  dto.SlotView{DateStart: "2024-01-08", DateEnd: "2024-01-08", TimeStart: "08:00:00", TimeEnd: "10:00:00"},
		Current:   dto.SlotView{DateStart: req.NewDate, DateEnd: req.NewDate, TimeStart: req.NewTimeStart, TimeEnd: req.NewTimeEnd},
		Reason:    req.Reason,
	}, nil
}

func (r *rescheduleServiceStub) History(_ context.Context, _ models.Caller, sessionID int64) ([]models.AuditLog, error) {
	r.sessionID = sessionID
	return []models.AuditLog{{ID: "a1", Action: models.AuditActionSessionMove}}, r.err
}

type quotaServiceStub struct {
	ids     []int64
	tradeID int64
	err     error
}

func (q *quotaServiceStub) StatusesFor(_ context.Context, _ models.Caller, ids []int64) ([]models.QuotaStatus, error) {
	q.ids = ids
	out := make([]models.QuotaStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.QuotaStatus{CompetencyID: id, Status: models.QuotaStatusInProgress})
	}
	return out, q.err
}

func (q *quotaServiceStub) CompetenciesWithQuota(_ context.Context, _ models.Caller, tradeID int64) ([]models.QuotaStatus, error) {
	q.tradeID = tradeID
	return []models.QuotaStatus{}, q.err
}

func (q *quotaServiceStub) TradeStatistics(_ context.Context, _ models.Caller, tradeID int64) (*models.TradeStatistics, error) {
	q.tradeID = tradeID
	if q.err != nil {
		return nil, q.err
	}
	return &models.TradeStatistics{TradeID: tradeID, TotalQuota: 20}, nil
}

type departmentDirectoryStub struct {
	caller models.Caller
}

func (d *departmentDirectoryStub) ManagedDepartments(_ context.Context, caller models.Caller) ([]models.Department, error) {
	d.caller = caller
	return []models.Department{{ID: 1, Name: "Informatique"}}, nil
}

type analysisServiceStub struct {
	request dto.AnalysisRequest
	err     error
}

func (a *analysisServiceStub) Analyze(_ context.Context, _ models.Caller, req dto.AnalysisRequest) (*dto.AnalysisResponse, error) {
	a.request = req
	if a.err != nil {
		return nil, a.err
	}
	return &dto.AnalysisResponse{TotalSessions: 3}, nil
}

func (a *analysisServiceStub) Report(_ context.Context, _ models.Caller, req dto.AnalysisRequest) (*dto.OccupancyReport, error) {
	a.request = req
	if a.err != nil {
		return nil, a.err
	}
	return &dto.OccupancyReport{Department: "Informatique"}, nil
}

func (a *analysisServiceStub) Reorganize(_ context.Context, _ models.Caller, req dto.AnalysisRequest) (*dto.ReorganizationResponse, error) {
	a.request = req
	if a.err != nil {
		return nil, a.err
	}
	return &dto.ReorganizationResponse{Feasibility: "aucune_action_requise"}, nil
}

type authServiceStub struct {
	loginReq models.LoginRequest
	meID     int64
	logout   string
}

func (a *authServiceStub) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	a.loginReq = req
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "access"}, nil
}

func (a *authServiceStub) RefreshToken(_ context.Context, _ models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "renewed"}, nil
}

func (a *authServiceStub) Logout(_ context.Context, refreshToken string, _ int64, _ models.LoginRequest) error {
	a.logout = refreshToken
	return nil
}

func (a *authServiceStub) Me(_ context.Context, userID int64) (*models.UserInfo, error) {
	a.meID = userID
	return &models.UserInfo{ID: userID, Email: "chef@ista.ma", Role: models.RoleDepartmentHead}, nil
}

type auditWriterStub struct {
	mu      sync.Mutex
	actions []string
}

func (a *auditWriterStub) Create(_ context.Context, _ sqlx.ExtContext, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, log.Action)
	return nil
}

type pingerStub struct {
	err error
}

func (p pingerStub) PingContext(context.Context) error { return p.err }

type testAPI struct {
	router     *gin.Engine
	sessions   *sessionServiceStub
	planner    *plannerServiceStub
	reschedule *rescheduleServiceStub
	quotas     *quotaServiceStub
	depts      *departmentDirectoryStub
	analysis   *analysisServiceStub
	auth       *authServiceStub
	audit      *auditWriterStub
}

// headerAuth trusts X-Test-Role and X-Test-User in place of a bearer token.
func headerAuth(c *gin.Context) {
	role := c.GetHeader("X-Test-Role")
	if role == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false})
		return
	}
	userID, _ := strconv.ParseInt(c.GetHeader("X-Test-User"), 10, 64)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: models.UserRole(role)})
	c.Next()
}

func newTestAPI(db Pinger) *testAPI {
	gin.SetMode(gin.TestMode)
	api := &testAPI{
		router:     gin.New(),
		sessions:   &sessionServiceStub{},
		planner:    &plannerServiceStub{},
		reschedule: &rescheduleServiceStub{},
		quotas:     &quotaServiceStub{},
		depts:      &departmentDirectoryStub{},
		analysis:   &analysisServiceStub{},
		auth:       &authServiceStub{},
		audit:      &auditWriterStub{},
	}
	RegisterRoutes(api.router, Handlers{
		Auth:       NewAuthHandler(api.auth),
		Sessions:   NewSessionHandler(api.sessions),
		Planner:    NewPlannerHandler(api.planner),
		Reschedule: NewRescheduleHandler(api.reschedule),
		Quotas:     NewQuotaHandler(api.quotas, api.depts),
		Analysis:   NewAnalysisHandler(api.analysis),
		Metrics:    NewMetricsHandler(http.NotFoundHandler(), db),
	}, RouteOptions{Prefix: "/api/v1", Authenticate: headerAuth, Audit: api.audit})
	return api
}

func (a *testAPI) do(t *testing.T, method, path, body string, role models.UserRole, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("X-Test-Role", string(role))
		req.Header.Set("X-Test-User", strconv.FormatInt(userID, 10))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

var errBoom = errors.New("boom")
