package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edt-api/internal/models"
)

// RoomRepository reads rooms (salles).
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// ListByBuilding returns the rooms of a building.
func (r *RoomRepository) ListByBuilding(ctx context.Context, buildingID int64) ([]models.Room, error) {
	const query = `SELECT id, name, capacity, building_id FROM rooms WHERE building_id = $1 ORDER BY id ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, buildingID); err != nil {
		return nil, fmt.Errorf("list rooms by building: %w", err)
	}
	return rooms, nil
}
