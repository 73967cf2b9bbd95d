package shop

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryRepo mutates product stock only through conditional single-row
// updates, so racing checkouts can never drive stock negative.
type InventoryRepo struct{ DB *pgxpool.Pool }

func (r *InventoryRepo) Product(ctx context.Context, productID string) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, image, price, stock, created_at, updated_at
		FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &p.Image, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Decrement takes qty units of stock atomically; the UPDATE matches only
// while enough stock remains.
func (r *InventoryRepo) Decrement(ctx context.Context, productID string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var stock int
		err := r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("product %s: have %d, want %d: %w", productID, stock, qty, ErrInsufficientStock)
	}
	return nil
}

// DecrementClamped drains stock down to zero at most. The reconciler uses it
// when a retried decrement still lacks stock: the order already shipped past
// the check, so the remaining shortfall can only be logged, not recovered.
func (r *InventoryRepo) DecrementClamped(ctx context.Context, productID string, qty int) (applied int, err error) {
	err = r.DB.QueryRow(ctx, `
		WITH before AS (
			SELECT stock FROM products WHERE id = $1 FOR UPDATE
		)
		UPDATE products SET stock = GREATEST(stock - $2, 0), updated_at = now()
		WHERE id = $1
		RETURNING (SELECT LEAST(before.stock, $2::int) FROM before)`,
		productID, qty).Scan(&applied)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return applied, err
}

func (r *InventoryRepo) Increment(ctx context.Context, productID string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
