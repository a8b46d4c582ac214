package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tehshkola/apiserver/types"
)

// OrderRepository handles persistence for shop orders.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, user_name, product_id, product_name, COALESCE(size, ''), price, status, created_at`

func scanOrder(row interface{ Scan(...any) error }) (types.Order, error) {
	var order types.Order
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.UserName,
		&order.ProductID,
		&order.ProductName,
		&order.Size,
		&order.Price,
		&order.Status,
		&order.CreatedAt,
	)
	return order, err
}

// Create inserts a new order. Orders start in pending status.
func (r *OrderRepository) Create(ctx context.Context, order types.Order) (types.Order, error) {
	order.Status = types.OrderPending
	order.CreatedAt = time.Now()

	const query = `
		INSERT INTO orders (user_id, user_name, product_id, product_name, size, price, status, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		order.UserID,
		order.UserName,
		order.ProductID,
		order.ProductName,
		order.Size,
		order.Price,
		order.Status,
		order.CreatedAt,
	).Scan(&order.ID); err != nil {
		return types.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) Get(ctx context.Context, id int) (types.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Order{}, ErrNotFound
		}
		return types.Order{}, err
	}
	return order, nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]types.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]types.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// Transition moves an order from one status to another, but only if the
// order is currently in the expected source status. The predicate and the
// write are one statement, so concurrent cancellations of the same order
// race for a single winner; only the winner may issue the refund. ok is
// false when the order was not in the source status (or does not exist).
func (r *OrderRepository) Transition(ctx context.Context, id int, from, to types.OrderStatus) (bool, error) {
	const query = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM orders WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
