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

const departmentColumns = `id, name, building_id, trainer_id`

// DepartmentRepository reads departments and their chiefs.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs a DepartmentRepository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// FindByID returns a department by id.
func (r *DepartmentRepository) FindByID(ctx context.Context, id int64) (*models.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE id = $1`
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &dept, nil
}

// ListByChief returns the departments chaired by a trainer.
func (r *DepartmentRepository) ListByChief(ctx context.Context, trainerID int64) ([]models.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE trainer_id = $1 ORDER BY name ASC, id ASC`
	var depts []models.Department
	if err := r.db.SelectContext(ctx, &depts, query, trainerID); err != nil {
		return nil, fmt.Errorf("list departments by chief: %w", err)
	}
	return depts, nil
}

// IsChief reports whether the trainer chairs the department.
func (r *DepartmentRepository) IsChief(ctx context.Context, trainerID, departmentID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM departments WHERE id = $1 AND trainer_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, departmentID, trainerID); err != nil {
		return false, fmt.Errorf("check department chief: %w", err)
	}
	return exists, nil
}

// ListByIDs returns the departments with the given ids.
func (r *DepartmentRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Department, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE id = ANY($1) ORDER BY id ASC`
	var depts []models.Department
	if err := r.db.SelectContext(ctx, &depts, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list departments by ids: %w", err)
	}
	return depts, nil
}
