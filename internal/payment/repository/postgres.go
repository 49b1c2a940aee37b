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

func (r *PGRepository) Create(ctx context.Context, p *model.Payment) error {
	query := `
        INSERT INTO payments (
            id, branch_id, order_id, amount, tip, method, status,
            reference_id, refund_of, failure_reason, processed_by, created_at, resolved_at
        )
        VALUES (
            :id, :branch_id, :order_id, :amount, :tip, :method, :status,
            :reference_id, :refund_of, :failure_reason, :processed_by, :created_at, :resolved_at
        )
    `
	_, err := r.DB.NamedExecContext(ctx, query, p)
	return errors.Wrap(err, "insert payment")
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	var p model.Payment
	err := r.DB.GetContext(ctx, &p, `SELECT * FROM payments WHERE id = $1 LIMIT 1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, errors.Wrap(err, "select payment")
	}
	return &p, nil
}

func (r *PGRepository) ListByOrder(ctx context.Context, orderID string) ([]model.Payment, error) {
	var payments []model.Payment
	query := `SELECT * FROM payments WHERE order_id = $1 ORDER BY created_at ASC`
	if err := r.DB.SelectContext(ctx, &payments, query, orderID); err != nil {
		return nil, errors.Wrap(err, "select order payments")
	}
	return payments, nil
}

// Resolve only touches pending records, so a resolved payment is never rewritten.
func (r *PGRepository) Resolve(ctx context.Context, id string, status model.PaymentState, failureReason *string, at time.Time) (bool, error) {
	query := `
        UPDATE payments
        SET status = $1, failure_reason = $2, resolved_at = $3
        WHERE id = $4 AND status = 'pending'
    `
	res, err := r.DB.ExecContext(ctx, query, string(status), failureReason, at, id)
	if err != nil {
		return false, errors.Wrap(err, "resolve payment")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "resolve payment rows affected")
	}
	return rows == 1, nil
}

func (r *PGRepository) ListPending(ctx context.Context, branchID string, createdBefore time.Time) ([]model.Payment, error) {
	var payments []model.Payment
	query := `
        SELECT * FROM payments
        WHERE branch_id = $1 AND status = 'pending' AND created_at < $2
        ORDER BY created_at ASC
    `
	if err := r.DB.SelectContext(ctx, &payments, query, branchID, createdBefore); err != nil {
		return nil, errors.Wrap(err, "list pending payments")
	}
	return payments, nil
}
