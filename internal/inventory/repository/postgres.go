package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/fekuna/omnipos-order-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) ListByProduct(ctx context.Context, productID string) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	query := `SELECT * FROM stock_movements WHERE product_id = $1 ORDER BY created_at ASC`
	if err := r.DB.SelectContext(ctx, &movements, query, productID); err != nil {
		return nil, errors.Wrap(err, "select product movements")
	}
	return movements, nil
}

func (r *PGRepository) ListByBranch(ctx context.Context, branchID string) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	query := `SELECT * FROM stock_movements WHERE branch_id = $1 ORDER BY created_at ASC`
	if err := r.DB.SelectContext(ctx, &movements, query, branchID); err != nil {
		return nil, errors.Wrap(err, "select branch movements")
	}
	return movements, nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var items []model.StockMovement
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.BranchID != "" {
		conditions = append(conditions, "branch_id = :branch_id")
		args["branch_id"] = f.BranchID
	}
	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_movements" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count movements")
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return nil, 0, errors.Wrap(err, "scan movement count")
		}
	}

	query := "SELECT * FROM stock_movements" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, errors.Wrap(err, "prepare movement list")
	}
	defer nstmt.Close()

	if err := nstmt.SelectContext(ctx, &items, args); err != nil {
		return nil, 0, errors.Wrap(err, "select movements")
	}
	return items, count, nil
}

func (r *PGRepository) AppendMovements(ctx context.Context, movements []*model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin movement tx")
	}
	defer tx.Rollback()

	if err := insertMovements(ctx, tx, movements); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit movements")
}

// insertMovements runs inside the caller transaction.
func insertMovements(ctx context.Context, tx *sqlx.Tx, movements []*model.StockMovement) error {
	query := `
        INSERT INTO stock_movements (
            id, branch_id, product_id, movement_type, quantity,
            quantity_before, quantity_after, reason,
            reference_type, reference_id, created_by, created_at
        )
        VALUES (
            :id, :branch_id, :product_id, :movement_type, :quantity,
            :quantity_before, :quantity_after, :reason,
            :reference_type, :reference_id, :created_by, :created_at
        )
    `
	for _, m := range movements {
		if _, err := tx.NamedExecContext(ctx, query, m); err != nil {
			return errors.Wrapf(err, "insert movement for product %s", m.ProductID)
		}
	}
	return nil
}
