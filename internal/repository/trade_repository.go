package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edt-api/internal/models"
)

// TradeRepository reads trades (métiers).
type TradeRepository struct {
	db *sqlx.DB
}

// NewTradeRepository constructs a TradeRepository.
func NewTradeRepository(db *sqlx.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// FindByID returns a trade by id.
func (r *TradeRepository) FindByID(ctx context.Context, id int64) (*models.Trade, error) {
	const query = `SELECT id, title, COALESCE(duration, '') AS duration, level_id, department_id FROM trades WHERE id = $1`
	var trade models.Trade
	if err := r.db.GetContext(ctx, &trade, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find trade: %w", err)
	}
	return &trade, nil
}
