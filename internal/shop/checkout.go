package shop

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Store interfaces the services consume. The pgx repos implement them; tests
// swap in fakes.

type CartStore interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Clear(ctx context.Context, userID string) error
}

type OrderStore interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	MarkPaid(ctx context.Context, orderID string, paidAt time.Time, res PaymentResult) (bool, error)
	RecordPaymentFailure(ctx context.Context, orderID string, res PaymentResult) error
	MarkDelivered(ctx context.Context, orderID string, at time.Time) error
}

type InventoryStore interface {
	Product(ctx context.Context, productID string) (*Product, error)
	Decrement(ctx context.Context, productID string, qty int) error
}

// Checkout turns the caller's cart into an immutable order: validate stock,
// snapshot items, persist, decrement stock, clear the cart.
type Checkout struct {
	Carts     CartStore
	Orders    OrderStore
	Inventory InventoryStore
	Producer  EventPublisher
	Service   string
}

func (c *Checkout) CreateOrder(ctx context.Context, userID string, addr Address, paymentMethod string) (*Order, error) {
	if !ValidPaymentMethod(paymentMethod) {
		return nil, &ValidationError{Msg: fmt.Sprintf("unsupported payment method: %s", paymentMethod)}
	}

	cart, err := c.Carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// Validate stock and snapshot each line item in one pass. Name, price and
	// image are frozen here; later product edits never touch this order. The
	// conditional decrement below closes the window this check leaves open.
	items := make([]OrderItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		p, err := c.Inventory.Product(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Stock < it.Qty {
			return nil, &InsufficientStockError{ProductName: p.Name}
		}
		items = append(items, OrderItem{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			Name:      p.Name,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			Image:     p.Image,
		})
	}

	pricing := ComputePricing(items)
	order := &Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           items,
		ShippingAddress: addr,
		PaymentMethod:   paymentMethod,
		ItemsPrice:      pricing.ItemsPrice,
		TaxPrice:        pricing.TaxPrice,
		ShippingPrice:   pricing.ShippingPrice,
		TotalPrice:      pricing.TotalPrice,
		Status:          StatusPending,
	}
	if err := c.Orders.Create(ctx, order); err != nil {
		return nil, err
	}

	// The order exists from here on. Decrement failures must surface for
	// reconciliation, never be skipped silently.
	var failed []ItemQty
	for _, it := range items {
		if err := c.Inventory.Decrement(ctx, it.ProductID, it.Qty); err != nil {
			log.Printf("checkout order=%s: stock decrement product=%s qty=%d failed: %v",
				order.ID, it.ProductID, it.Qty, err)
			failed = append(failed, ItemQty{ProductID: it.ProductID, Qty: it.Qty})
		}
	}
	if len(failed) > 0 {
		publishEvent(c.Producer, c.Service, TopicStockAdjustFails, EventStockAdjustFails,
			order.ID, traceID(ctx), StockAdjustFailedPayload{
				OrderID: order.ID,
				Items:   failed,
				Reason:  "DECREMENT_FAILED",
			})
	}

	if err := c.Carts.Clear(ctx, userID); err != nil {
		// order and stock already settled; a stale cart is an annoyance, not
		// a correctness problem
		log.Printf("checkout order=%s: clear cart user=%s: %v", order.ID, userID, err)
	}

	itemQtys := make([]ItemQty, 0, len(items))
	for _, it := range items {
		itemQtys = append(itemQtys, ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	publishEvent(c.Producer, c.Service, TopicOrderCreated, EventOrderCreated,
		order.ID, traceID(ctx), OrderCreatedPayload{
			OrderID:    order.ID,
			UserID:     userID,
			Items:      itemQtys,
			TotalPrice: order.TotalPrice,
		})
	return order, nil
}
