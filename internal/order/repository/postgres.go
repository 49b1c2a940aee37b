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

func (r *PGRepository) Create(ctx context.Context, o *model.Order) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin order tx")
	}
	defer tx.Rollback()

	orderQuery := `
        INSERT INTO orders (
            id, branch_id, order_number, status, order_type, table_id, customer_id,
            special_requests, subtotal, tax, service_charge, discount, total,
            payment_status, created_by, version, created_at, updated_at
        )
        VALUES (
            :id, :branch_id, :order_number, :status, :order_type, :table_id, :customer_id,
            :special_requests, :subtotal, :tax, :service_charge, :discount, :total,
            :payment_status, :created_by, :version, :created_at, :updated_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, orderQuery, o); err != nil {
		return errors.Wrap(err, "insert order")
	}

	itemQuery := `
        INSERT INTO order_items (
            id, order_id, product_id, name, quantity, unit_price, subtotal,
            modifiers, notes, status, updated_at
        )
        VALUES (
            :id, :order_id, :product_id, :name, :quantity, :unit_price, :subtotal,
            :modifiers, :notes, :status, :updated_at
        )
    `
	for i := range o.Items {
		if _, err := tx.NamedExecContext(ctx, itemQuery, &o.Items[i]); err != nil {
			return errors.Wrap(err, "insert order item")
		}
	}

	return errors.Wrap(tx.Commit(), "commit order")
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	err := r.DB.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1 LIMIT 1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, errors.Wrap(err, "select order")
	}

	err = r.DB.SelectContext(ctx, &o.Items, `SELECT * FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, errors.Wrap(err, "select order items")
	}
	return &o, nil
}

func (r *PGRepository) ListActive(ctx context.Context, branchID string) ([]model.Order, error) {
	var orders []model.Order
	query := `
        SELECT * FROM orders
        WHERE branch_id = $1 AND status NOT IN ('completed', 'cancelled')
        ORDER BY created_at ASC
    `
	if err := r.DB.SelectContext(ctx, &orders, query, branchID); err != nil {
		return nil, errors.Wrap(err, "select active orders")
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	itemQuery, args, err := sqlx.In(`SELECT * FROM order_items WHERE order_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "build item query")
	}
	// Rebind for Postgres ($1, $2...)
	itemQuery = r.DB.Rebind(itemQuery)

	var items []model.OrderItem
	if err := r.DB.SelectContext(ctx, &items, itemQuery, args...); err != nil {
		return nil, errors.Wrap(err, "select active order items")
	}
	for _, item := range items {
		if i, ok := index[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return orders, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id string, from model.OrderStatus, version int, to model.OrderStatus, at time.Time) (bool, error) {
	query := `
        UPDATE orders
        SET status = $1, version = version + 1, updated_at = $2
        WHERE id = $3 AND status = $4 AND version = $5
    `
	res, err := r.DB.ExecContext(ctx, query, string(to), at, id, string(from), version)
	if err != nil {
		return false, errors.Wrap(err, "update order status")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "order status rows affected")
	}
	return rows == 1, nil
}

func (r *PGRepository) UpdateItemStatus(ctx context.Context, orderID, itemID string, from, to model.ItemStatus, at time.Time) (bool, error) {
	query := `
        UPDATE order_items
        SET status = $1, updated_at = $2
        WHERE id = $3 AND order_id = $4 AND status = $5
    `
	res, err := r.DB.ExecContext(ctx, query, string(to), at, itemID, orderID, string(from))
	if err != nil {
		return false, errors.Wrap(err, "update item status")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "item status rows affected")
	}
	return rows == 1, nil
}

func (r *PGRepository) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE orders SET payment_status = $1, updated_at = $2 WHERE id = $3`, string(status), at, id)
	return errors.Wrap(err, "update payment status")
}
