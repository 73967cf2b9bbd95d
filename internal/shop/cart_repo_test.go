package shop

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// repo tests run against a real postgres with db/schema.sql applied;
// set TEST_POSTGRES_DSN to enable them.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedProduct(t *testing.T, db *pgxpool.Pool, name string, price float64, stock int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(context.Background(), `
		INSERT INTO products(id, name, price, stock) VALUES ($1, $2, $3, $4)`,
		id, name, price, stock)
	require.NoError(t, err)
	return id
}

func TestCartAddUpdateRemove(t *testing.T) {
	db := testPool(t)
	ctx := context.Background()
	repo := &CartRepo{DB: db}

	userID := uuid.NewString()
	prod := seedProduct(t, db, "Widget", 10, 5)

	cart, err := repo.AddItem(ctx, userID, prod, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.InDelta(t, 20.0, cart.Total, 1e-9)

	// same product again bumps qty instead of adding a line
	cart, err = repo.AddItem(ctx, userID, prod, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 3, cart.Items[0].Qty)

	cart, err = repo.UpdateItem(ctx, userID, cart.Items[0].ID, 1)
	require.NoError(t, err)
	require.InDelta(t, 10.0, cart.Total, 1e-9)

	cart, err = repo.RemoveItem(ctx, userID, cart.Items[0].ID)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
	require.Zero(t, cart.Total)
}

func TestExpiredCartReadsEmptyAndResetsOnMutation(t *testing.T) {
	db := testPool(t)
	ctx := context.Background()
	repo := &CartRepo{DB: db}

	userID := uuid.NewString()
	stale := seedProduct(t, db, "Stale Widget", 10, 5)
	fresh := seedProduct(t, db, "Fresh Gadget", 30, 5)

	// build a cart, then push it past its expiry
	_, err := repo.AddItem(ctx, userID, stale, 2)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `
		UPDATE carts SET expires_at = now() - interval '1 day' WHERE user_id = $1`, userID)
	require.NoError(t, err)

	cart, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, cart.Items, "expired cart reads as empty")
	require.Zero(t, cart.Total)

	// the next mutation must not resurrect the stale line items
	cart, err = repo.AddItem(ctx, userID, fresh, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, fresh, cart.Items[0].ProductID)
	require.InDelta(t, 30.0, cart.Total, 1e-9)
}

func TestExpiredCartNotCheckedOut(t *testing.T) {
	db := testPool(t)
	ctx := context.Background()
	repo := &CartRepo{DB: db}

	userID := uuid.NewString()
	prod := seedProduct(t, db, "Bygone", 10, 5)

	_, err := repo.AddItem(ctx, userID, prod, 1)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `
		UPDATE carts SET expires_at = now() - interval '1 hour' WHERE user_id = $1`, userID)
	require.NoError(t, err)

	checkout := &Checkout{Carts: repo, Orders: newFakeOrders(), Inventory: newFakeInventory(), Service: "test"}
	_, err = checkout.CreateOrder(ctx, userID, Address{Street: "1 Main St", City: "Springfield", Country: "US"}, MethodStripe)
	require.ErrorIs(t, err, ErrEmptyCart)
}
