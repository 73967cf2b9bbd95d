package shop

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CartRepo keeps one cart per user (unique index on user_id). Every mutation
// runs in a single transaction that locks the cart row first, so concurrent
// requests for the same user's cart cannot lose updates.
type CartRepo struct{ DB *pgxpool.Pool }

// Get returns the caller's cart, lazily treating a missing or expired cart as
// empty. It never returns ErrNotFound.
func (r *CartRepo) Get(ctx context.Context, userID string) (*Cart, error) {
	c := &Cart{UserID: userID, Items: []CartItem{}}
	err := r.DB.QueryRow(ctx, `
		SELECT id, total, expires_at, created_at, updated_at
		FROM carts WHERE user_id = $1`, userID).
		Scan(&c.ID, &c.Total, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(c.ExpiresAt) {
		// soft TTL: an expired cart reads as empty
		c.Items = []CartItem{}
		c.Total = 0
		return c, nil
	}

	rows, err := r.DB.Query(ctx, `
		SELECT ci.id, ci.product_id, p.name, ci.qty, ci.unit_price
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.Qty, &it.UnitPrice); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

// AddItem creates the cart on first use, then inserts the line item or bumps
// its quantity. Unit price is read from the product row, never from the client.
func (r *CartRepo) AddItem(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	if qty < 1 {
		return nil, &ValidationError{Msg: "qty must be at least 1"}
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cartID, err := lockCart(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}

	var price float64
	err = tx.QueryRow(ctx, `SELECT price FROM products WHERE id = $1`, productID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cart_items(id, cart_id, product_id, qty, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty, unit_price = EXCLUDED.unit_price`,
		uuid.NewString(), cartID, productID, qty, price)
	if err != nil {
		return nil, err
	}

	if err := refreshCart(ctx, tx, cartID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

func (r *CartRepo) UpdateItem(ctx context.Context, userID, itemID string, qty int) (*Cart, error) {
	if qty < 1 {
		return nil, &ValidationError{Msg: "qty must be at least 1"}
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cartID, err := lockCart(ctx, tx, userID, false)
	if err != nil {
		return nil, err
	}
	ct, err := tx.Exec(ctx, `UPDATE cart_items SET qty = $3 WHERE id = $1 AND cart_id = $2`,
		itemID, cartID, qty)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	if err := refreshCart(ctx, tx, cartID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

func (r *CartRepo) RemoveItem(ctx context.Context, userID, itemID string) (*Cart, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cartID, err := lockCart(ctx, tx, userID, false)
	if err != nil {
		return nil, err
	}
	ct, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	if err := refreshCart(ctx, tx, cartID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

// Clear empties the cart without deleting the row.
func (r *CartRepo) Clear(ctx context.Context, userID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cartID, err := lockCart(ctx, tx, userID, false)
	if errors.Is(err, ErrNotFound) {
		return nil // nothing to clear
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return err
	}
	if err := refreshCart(ctx, tx, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lockCart serializes per-cart mutations via FOR UPDATE, creating the cart on
// demand when create is set. An expired cart is reset here, before the
// mutation runs, so refreshCart's new expiry window cannot resurrect stale
// line items.
func lockCart(ctx context.Context, tx pgx.Tx, userID string, create bool) (string, error) {
	var (
		cartID    string
		expiresAt time.Time
	)
	err := tx.QueryRow(ctx, `SELECT id, expires_at FROM carts WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&cartID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if !create {
			return "", ErrNotFound
		}
		cartID = uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO carts(id, user_id, total, expires_at)
			VALUES ($1, $2, 0, now() + interval '30 days')
			ON CONFLICT (user_id) DO NOTHING`, cartID, userID); err != nil {
			return "", err
		}
		// a racing insert may have won; lock whichever row exists now
		if err := tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&cartID); err != nil {
			return "", err
		}
		return cartID, nil
	}
	if err != nil {
		return "", err
	}
	if time.Now().After(expiresAt) {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return "", err
		}
	}
	return cartID, nil
}

// refreshCart recomputes the derived total and pushes the expiry window out.
func refreshCart(ctx context.Context, tx pgx.Tx, cartID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE carts SET
			total = (SELECT COALESCE(SUM(qty * unit_price), 0) FROM cart_items WHERE cart_id = $1),
			expires_at = now() + interval '30 days',
			updated_at = now()
		WHERE id = $1`, cartID)
	return err
}
