package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	domain "github.com/Zhima-Mochi/sweetshop/internal/domain/order"
)

const orderColumns = `id, customer_id, sweet_id, sweet_name, quantity::text, unit, amount, currency,
	COALESCE(gateway_order_id, ''), payment_id, status, failure_reason, created_at, updated_at`

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders (id, customer_id, sweet_id, sweet_name, quantity, unit, amount, currency,
			gateway_order_id, payment_id, status, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13, $14)`,
		o.ID, o.CustomerID, o.SweetID, o.SweetName, o.Quantity.String(), o.Unit, o.Amount, o.Currency,
		o.GatewayOrderID, o.PaymentID, string(o.Status), o.FailureReason, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("postgres: insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, mapOrderErr("get", err)
	}
	return o, nil
}

func (r *OrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	if gatewayOrderID == "" {
		return nil, domain.ErrNotFound
	}
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE gateway_order_id = $1`, gatewayOrderID))
	if err != nil {
		return nil, mapOrderErr("find", err)
	}
	return o, nil
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order, expected domain.Status) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET payment_id = $2, status = $3, failure_reason = $4, updated_at = $5
		WHERE id = $1 AND status = $6`,
		o.ID, o.PaymentID, string(o.Status), o.FailureReason, o.UpdatedAt, string(expected),
	)
	if err != nil {
		return fmt.Errorf("postgres: update order: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: update order: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func mapOrderErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("postgres: %s order: %w", op, err)
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o        domain.Order
		quantity string
		status   string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.SweetID, &o.SweetName, &quantity, &o.Unit, &o.Amount, &o.Currency,
		&o.GatewayOrderID, &o.PaymentID, &status, &o.FailureReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return nil, fmt.Errorf("postgres: order quantity %q: %w", quantity, err)
	}
	o.Quantity = q
	o.Status = domain.Status(status)
	o.CreatedAt, o.UpdatedAt = o.CreatedAt.UTC(), o.UpdatedAt.UTC()
	return &o, nil
}
