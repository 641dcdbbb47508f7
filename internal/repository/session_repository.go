package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edt-api/internal/models"
)

const sessionColumns = `s.id, s.training_year_id, to_char(s.date_start, 'YYYY-MM-DD') AS date_start, to_char(s.date_end, 'YYYY-MM-DD') AS date_end, to_char(s.time_start, 'HH24:MI:SS') AS time_start, to_char(s.time_end, 'HH24:MI:SS') AS time_end, s.created_at, s.updated_at`

// advisoryLockPrefix namespaces the per-date advisory locks taken by writers.
const advisoryLockPrefix = "edt:"

// SessionRepository persists timetable sessions and their competency links.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) queryer(exec sqlx.QueryerContext) sqlx.QueryerContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// FindByID loads a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions s WHERE s.id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

// FindByIDForUpdate loads and row-locks a session inside a transaction.
func (r *SessionRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.QueryerContext, id int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions s WHERE s.id = $1 FOR UPDATE`
	var session models.Session
	if err := sqlx.GetContext(ctx, r.queryer(exec), &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session for update: %w", err)
	}
	return &session, nil
}

func buildSessionFilter(filter models.SessionFilter) (string, []interface{}) {
	base := "FROM sessions s WHERE 1=1"
	var conditions []string
	var args []interface{}

	if len(filter.DepartmentIDs) > 0 {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(`(s.training_year_id IN (SELECT ty.id FROM training_years ty WHERE ty.department_id = ANY($%d)) OR EXISTS (SELECT 1 FROM session_competencies sc JOIN competencies c ON c.id = sc.competency_id JOIN trades t ON t.id = c.trade_id WHERE sc.session_id = s.id AND t.department_id = ANY($%d)))`, idx, idx))
		args = append(args, pq.Array(filter.DepartmentIDs))
	}
	if filter.YearDepartmentID != nil {
		conditions = append(conditions, fmt.Sprintf("s.training_year_id IN (SELECT ty.id FROM training_years ty WHERE ty.department_id = $%d)", len(args)+1))
		args = append(args, *filter.YearDepartmentID)
	}
	if filter.TrainingYearID != nil {
		conditions = append(conditions, fmt.Sprintf("s.training_year_id = $%d", len(args)+1))
		args = append(args, *filter.TrainingYearID)
	}
	if filter.TrainerID != nil {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM session_competencies sc JOIN competencies c ON c.id = sc.competency_id WHERE sc.session_id = s.id AND c.trainer_id = $%d)", len(args)+1))
		args = append(args, *filter.TrainerID)
	}
	if filter.DateFrom != "" {
		conditions = append(conditions, fmt.Sprintf("s.date_start >= $%d", len(args)+1))
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		conditions = append(conditions, fmt.Sprintf("s.date_start <= $%d", len(args)+1))
		args = append(args, filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	return base, args
}

// List returns sessions matching the filter ordered by date and start time,
// paginated, together with the total count.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	base, args := buildSessionFilter(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY s.date_start ASC, s.time_start ASC, s.id ASC LIMIT %d OFFSET %d", sessionColumns, base, size, offset)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// ListAll returns every session matching the filter without pagination.
func (r *SessionRepository) ListAll(ctx context.Context, exec sqlx.QueryerContext, filter models.SessionFilter) ([]models.Session, error) {
	base, args := buildSessionFilter(filter)
	query := fmt.Sprintf("SELECT %s %s ORDER BY s.date_start ASC, s.time_start ASC, s.id ASC", sessionColumns, base)
	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, r.queryer(exec), &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list all sessions: %w", err)
	}
	return sessions, nil
}

// Create inserts a session and fills its generated identifier and timestamps.
func (r *SessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	now := time.Now().UTC()
	const query = `INSERT INTO sessions (training_year_id, date_start, date_end, time_start, time_end, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`
	if err := exec.QueryRowxContext(ctx, query, session.TrainingYearID, session.DateStart, session.DateEnd, session.TimeStart, session.TimeEnd, now).Scan(&session.ID); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	session.CreatedAt = now
	session.UpdatedAt = now
	return nil
}

// Update rewrites the slot of a session. It returns sql.ErrNoRows when the
// session does not exist.
func (r *SessionRepository) Update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET training_year_id = $2, date_start = $3, date_end = $4, time_start = $5, time_end = $6, updated_at = $7 WHERE id = $1`
	res, err := exec.ExecContext(ctx, query, session.ID, session.TrainingYearID, session.DateStart, session.DateEnd, session.TimeStart, session.TimeEnd, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a session; links cascade.
func (r *SessionRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	res, err := exec.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireAffected(res)
}

// DeleteByYearAndRange removes every session of a year starting within the range.
func (r *SessionRepository) DeleteByYearAndRange(ctx context.Context, exec sqlx.ExtContext, yearID int64, from, to string) (int64, error) {
	const query = `DELETE FROM sessions WHERE training_year_id = $1 AND date_start BETWEEN $2 AND $3`
	res, err := exec.ExecContext(ctx, query, yearID, from, to)
	if err != nil {
		return 0, fmt.Errorf("delete sessions by range: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete sessions by range: %w", err)
	}
	return affected, nil
}

// AttachCompetencies links competencies to a session.
func (r *SessionRepository) AttachCompetencies(ctx context.Context, exec sqlx.ExtContext, sessionID int64, competencyIDs []int64) error {
	if len(competencyIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO session_competencies (session_id, competency_id, created_at) SELECT $1, unnest($2::bigint[]), NOW() ON CONFLICT DO NOTHING`
	if _, err := exec.ExecContext(ctx, query, sessionID, pq.Array(competencyIDs)); err != nil {
		return fmt.Errorf("attach session competencies: %w", err)
	}
	return nil
}

// ReplaceCompetencies swaps the full set of links of a session.
func (r *SessionRepository) ReplaceCompetencies(ctx context.Context, exec sqlx.ExtContext, sessionID int64, competencyIDs []int64) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM session_competencies WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear session competencies: %w", err)
	}
	return r.AttachCompetencies(ctx, exec, sessionID, competencyIDs)
}

// ListCompetencyLinks returns the links of the given sessions.
func (r *SessionRepository) ListCompetencyLinks(ctx context.Context, sessionIDs []int64) ([]models.SessionCompetency, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT session_id, competency_id FROM session_competencies WHERE session_id = ANY($1) ORDER BY session_id, competency_id`
	var links []models.SessionCompetency
	if err := r.db.SelectContext(ctx, &links, query, pq.Array(sessionIDs)); err != nil {
		return nil, fmt.Errorf("list session competencies: %w", err)
	}
	return links, nil
}

// ListBusyWindows returns every persisted session overlapping the date range
// that involves one of the listed years, trainers or rooms. Sessions with
// several competencies yield one row per competency.
func (r *SessionRepository) ListBusyWindows(ctx context.Context, exec sqlx.QueryerContext, q models.OccupancyQuery) ([]models.BusyWindow, error) {
	query := `SELECT s.id AS session_id, s.training_year_id, to_char(s.date_start, 'YYYY-MM-DD') AS date_start, to_char(s.date_end, 'YYYY-MM-DD') AS date_end, to_char(s.time_start, 'HH24:MI:SS') AS time_start, to_char(s.time_end, 'HH24:MI:SS') AS time_end, sc.competency_id, c.trainer_id, c.room_id
FROM sessions s
LEFT JOIN session_competencies sc ON sc.session_id = s.id
LEFT JOIN competencies c ON c.id = sc.competency_id
WHERE s.date_start <= $2 AND s.date_end >= $1 AND (s.training_year_id = ANY($3) OR c.trainer_id = ANY($4) OR c.room_id = ANY($5))`
	args := []interface{}{q.DateFrom, q.DateTo, pq.Array(nonNil(q.YearIDs)), pq.Array(nonNil(q.TrainerIDs)), pq.Array(nonNil(q.RoomIDs))}
	if q.ExcludeSessionID != nil {
		query += " AND s.id <> $6"
		args = append(args, *q.ExcludeSessionID)
	}
	query += " ORDER BY s.date_start, s.time_start, s.id"

	var windows []models.BusyWindow
	if err := sqlx.SelectContext(ctx, r.queryer(exec), &windows, query, args...); err != nil {
		return nil, fmt.Errorf("list busy windows: %w", err)
	}
	return windows, nil
}

// ListCompetencyWindows returns the scheduled slots of the given competencies.
// Empty bounds leave the date range open.
func (r *SessionRepository) ListCompetencyWindows(ctx context.Context, exec sqlx.QueryerContext, competencyIDs []int64, from, to string) ([]models.CompetencyWindow, error) {
	if len(competencyIDs) == 0 {
		return nil, nil
	}
	query := `SELECT sc.competency_id, s.id AS session_id, to_char(s.date_start, 'YYYY-MM-DD') AS date_start, to_char(s.time_start, 'HH24:MI:SS') AS time_start, to_char(s.time_end, 'HH24:MI:SS') AS time_end
FROM session_competencies sc
JOIN sessions s ON s.id = sc.session_id
WHERE sc.competency_id = ANY($1)`
	args := []interface{}{pq.Array(competencyIDs)}
	if from != "" {
		args = append(args, from)
		query += fmt.Sprintf(" AND s.date_start >= $%d", len(args))
	}
	if to != "" {
		args = append(args, to)
		query += fmt.Sprintf(" AND s.date_start <= $%d", len(args))
	}
	query += " ORDER BY sc.competency_id, s.date_start, s.time_start"

	var windows []models.CompetencyWindow
	if err := sqlx.SelectContext(ctx, r.queryer(exec), &windows, query, args...); err != nil {
		return nil, fmt.Errorf("list competency windows: %w", err)
	}
	return windows, nil
}

// LockDates takes a transaction-scoped advisory lock per date, in sorted order
// so concurrent writers cannot deadlock.
func (r *SessionRepository) LockDates(ctx context.Context, exec sqlx.ExtContext, dates []string) error {
	keys := uniqueSorted(dates)
	for _, date := range keys {
		if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, advisoryLockPrefix+date); err != nil {
			return fmt.Errorf("lock date %s: %w", date, err)
		}
	}
	return nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
