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

const trainerSelect = `SELECT tr.id, tr.user_id, tr.specialty_id, u.last_name, u.first_name FROM trainers tr JOIN users u ON u.id = tr.user_id`

// TrainerRepository reads trainer profiles joined with their user names.
type TrainerRepository struct {
	db *sqlx.DB
}

// NewTrainerRepository constructs a TrainerRepository.
func NewTrainerRepository(db *sqlx.DB) *TrainerRepository {
	return &TrainerRepository{db: db}
}

// FindByID returns a trainer by id.
func (r *TrainerRepository) FindByID(ctx context.Context, id int64) (*models.Trainer, error) {
	var trainer models.Trainer
	if err := r.db.GetContext(ctx, &trainer, trainerSelect+` WHERE tr.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find trainer: %w", err)
	}
	return &trainer, nil
}

// FindByUserID resolves the trainer attached to a user account.
func (r *TrainerRepository) FindByUserID(ctx context.Context, userID int64) (*models.Trainer, error) {
	var trainer models.Trainer
	if err := r.db.GetContext(ctx, &trainer, trainerSelect+` WHERE tr.user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find trainer by user: %w", err)
	}
	return &trainer, nil
}

// ListByIDs returns the trainers with the given ids.
func (r *TrainerRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Trainer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var trainers []models.Trainer
	if err := r.db.SelectContext(ctx, &trainers, trainerSelect+` WHERE tr.id = ANY($1) ORDER BY tr.id ASC`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list trainers by ids: %w", err)
	}
	return trainers, nil
}

// ListByDepartment returns the trainers teaching a competency of the
// department's trades, ordered by id.
func (r *TrainerRepository) ListByDepartment(ctx context.Context, departmentID int64) ([]models.Trainer, error) {
	query := trainerSelect + ` WHERE tr.id IN (SELECT c.trainer_id FROM competencies c JOIN trades t ON t.id = c.trade_id WHERE t.department_id = $1 AND c.trainer_id IS NOT NULL) ORDER BY tr.id ASC`
	var trainers []models.Trainer
	if err := r.db.SelectContext(ctx, &trainers, query, departmentID); err != nil {
		return nil, fmt.Errorf("list trainers by department: %w", err)
	}
	return trainers, nil
}
