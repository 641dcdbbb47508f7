package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edt-api/internal/models"
)

const competencyDetailSelect = `SELECT c.id, c.name, c.code, COALESCE(c.competency_number, '') AS competency_number, c.hourly_quota, c.trade_id, c.trainer_id, c.room_id,
	t.title AS trade_title, t.department_id,
	COALESCE(u.last_name, '') AS trainer_last_name, COALESCE(u.first_name, '') AS trainer_first_name,
	COALESCE(r.name, '') AS room_name
FROM competencies c
JOIN trades t ON t.id = c.trade_id
LEFT JOIN trainers tr ON tr.id = c.trainer_id
LEFT JOIN users u ON u.id = tr.user_id
LEFT JOIN rooms r ON r.id = c.room_id`

// CompetencyRepository loads competencies joined with their trade,
// department, trainer and room in one query.
type CompetencyRepository struct {
	db *sqlx.DB
}

// NewCompetencyRepository constructs a CompetencyRepository.
func NewCompetencyRepository(db *sqlx.DB) *CompetencyRepository {
	return &CompetencyRepository{db: db}
}

// ListByIDs returns the details of the given competencies.
func (r *CompetencyRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.CompetencyDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.CompetencyDetail
	if err := r.db.SelectContext(ctx, &items, competencyDetailSelect+` WHERE c.id = ANY($1) ORDER BY c.id ASC`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list competencies by ids: %w", err)
	}
	return items, nil
}

// ListByTrade returns the competencies of a trade.
func (r *CompetencyRepository) ListByTrade(ctx context.Context, tradeID int64) ([]models.CompetencyDetail, error) {
	var items []models.CompetencyDetail
	if err := r.db.SelectContext(ctx, &items, competencyDetailSelect+` WHERE c.trade_id = $1 ORDER BY c.id ASC`, tradeID); err != nil {
		return nil, fmt.Errorf("list competencies by trade: %w", err)
	}
	return items, nil
}

// ListByDepartments returns the competencies of every trade owned by the departments.
func (r *CompetencyRepository) ListByDepartments(ctx context.Context, departmentIDs []int64) ([]models.CompetencyDetail, error) {
	if len(departmentIDs) == 0 {
		return nil, nil
	}
	var items []models.CompetencyDetail
	if err := r.db.SelectContext(ctx, &items, competencyDetailSelect+` WHERE t.department_id = ANY($1) ORDER BY c.id ASC`, pq.Array(departmentIDs)); err != nil {
		return nil, fmt.Errorf("list competencies by departments: %w", err)
	}
	return items, nil
}
