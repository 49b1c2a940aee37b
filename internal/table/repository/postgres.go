package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.RestaurantTable, error) {
	var t model.RestaurantTable
	query := `SELECT * FROM restaurant_tables WHERE id = $1`
	if err := r.DB.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, errors.Wrap(err, "find table")
	}
	return &t, nil
}

func (r *PGRepository) ListByBranch(ctx context.Context, branchID string) ([]model.RestaurantTable, error) {
	var tables []model.RestaurantTable
	query := `SELECT * FROM restaurant_tables WHERE branch_id = $1 ORDER BY table_number ASC`
	if err := r.DB.SelectContext(ctx, &tables, query, branchID); err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	return tables, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id string, version int, status model.TableStatus, at time.Time) (bool, error) {
	query := `
        UPDATE restaurant_tables
        SET status = $1, version = version + 1, updated_at = $2
        WHERE id = $3 AND version = $4
    `
	res, err := r.DB.ExecContext(ctx, query, string(status), at, id, version)
	if err != nil {
		return false, errors.Wrap(err, "update table status")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "table status rows affected")
	}
	return rows == 1, nil
}
