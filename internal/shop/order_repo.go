package shop

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepo struct{ DB *pgxpool.Pool }

// Create persists the order and its frozen items in one transaction. Pricing
// fields must already be derived from the items.
func (r *OrderRepo) Create(ctx context.Context, o *Order) error {
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, shipping_address, payment_method,
			items_price, tax_price, shipping_price, total_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, addr, o.PaymentMethod,
		o.ItemsPrice, o.TaxPrice, o.ShippingPrice, o.TotalPrice, string(o.Status)).
		Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, name, qty, unit_price, image)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, o.ID, it.ProductID, it.Name, it.Qty, it.UnitPrice, it.Image); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (*Order, error) {
	o, err := r.scanOrder(r.DB.QueryRow(ctx, `
		SELECT id, user_id, shipping_address, payment_method,
			items_price, tax_price, shipping_price, total_price,
			is_paid, paid_at, payment_result, is_delivered, delivered_at,
			status, created_at, updated_at
		FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ListByUser returns the caller's orders, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, shipping_address, payment_method,
			items_price, tax_price, shipping_price, total_price,
			is_paid, paid_at, payment_result, is_delivered, delivered_at,
			status, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MarkPaid flips is_paid with a compare-and-set on the current value: the
// single UPDATE only matches while is_paid is still false, so whichever of
// the racing confirmation channels lands first wins and the loser observes a
// clean no-op. Returns applied=false (and no error) when the order was
// already paid.
func (r *OrderRepo) MarkPaid(ctx context.Context, orderID string, paidAt time.Time, res PaymentResult) (bool, error) {
	blob, err := json.Marshal(res)
	if err != nil {
		return false, err
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET is_paid = TRUE, paid_at = $2, payment_result = $3, updated_at = now()
		WHERE id = $1 AND is_paid = FALSE`, orderID, paidAt, blob)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}
	var paid bool
	err = r.DB.QueryRow(ctx, `SELECT is_paid FROM orders WHERE id = $1`, orderID).Scan(&paid)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return false, nil // already paid; idempotent no-op
}

// RecordPaymentFailure stores the processor's failure detail without touching
// is_paid. A failure arriving after a success is dropped so it cannot
// overwrite the winning payment result.
func (r *OrderRepo) RecordPaymentFailure(ctx context.Context, orderID string, res PaymentResult) error {
	blob, err := json.Marshal(res)
	if err != nil {
		return err
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_result = $2, updated_at = now()
		WHERE id = $1 AND is_paid = FALSE`, orderID, blob)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := r.DB.QueryRow(ctx, `SELECT TRUE FROM orders WHERE id = $1`, orderID).Scan(&exists); errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
	}
	return nil
}

// MarkDelivered is deliberately unconditional: setting it twice is harmless.
func (r *OrderRepo) MarkDelivered(ctx context.Context, orderID string, at time.Time) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET is_delivered = TRUE, delivered_at = $2, status = $3, updated_at = now()
		WHERE id = $1`, orderID, at, string(StatusDelivered))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func (r *OrderRepo) scanOrder(row rowScanner) (*Order, error) {
	var (
		o        Order
		addr     []byte
		result   []byte
		status   string
	)
	err := row.Scan(&o.ID, &o.UserID, &addr, &o.PaymentMethod,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &o.PaidAt, &result, &o.IsDelivered, &o.DeliveredAt,
		&status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = DeliveryStatus(status)
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return nil, err
	}
	if len(result) > 0 {
		o.PaymentResult = &PaymentResult{}
		if err := json.Unmarshal(result, o.PaymentResult); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

func (r *OrderRepo) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, name, qty, unit_price, image
		FROM order_items WHERE order_id = $1`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	o.Items = []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.Qty, &it.UnitPrice, &it.Image); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}
