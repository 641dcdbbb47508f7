package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edt-api/internal/models"
)

// TrainingYearRepository reads training years (années).
type TrainingYearRepository struct {
	db *sqlx.DB
}

// NewTrainingYearRepository constructs a TrainingYearRepository.
func NewTrainingYearRepository(db *sqlx.DB) *TrainingYearRepository {
	return &TrainingYearRepository{db: db}
}

// FindByID returns a training year by id.
func (r *TrainingYearRepository) FindByID(ctx context.Context, id int64) (*models.TrainingYear, error) {
	const query = `SELECT id, title, year, department_id FROM training_years WHERE id = $1`
	var year models.TrainingYear
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find training year: %w", err)
	}
	return &year, nil
}

// ListByDepartment returns the years attached to a department.
func (r *TrainingYearRepository) ListByDepartment(ctx context.Context, departmentID int64) ([]models.TrainingYear, error) {
	const query = `SELECT id, title, year, department_id FROM training_years WHERE department_id = $1 ORDER BY id ASC`
	var years []models.TrainingYear
	if err := r.db.SelectContext(ctx, &years, query, departmentID); err != nil {
		return nil, fmt.Errorf("list training years by department: %w", err)
	}
	return years, nil
}

// ListByIDs returns the training years with the given ids.
func (r *TrainingYearRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.TrainingYear, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, title, year, department_id FROM training_years WHERE id = ANY($1) ORDER BY id ASC`
	var years []models.TrainingYear
	if err := r.db.SelectContext(ctx, &years, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list training years by ids: %w", err)
	}
	return years, nil
}
