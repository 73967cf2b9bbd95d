// Package reconciler closes the checkout partial-failure gap: when an order
// was persisted but one of its stock decrements failed, the API publishes a
// stock-adjust-failed event and this consumer settles the inventory ledger.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
	"github.com/ariefcatur/go-shop-api.git/internal/shop"
	kafkago "github.com/segmentio/kafka-go"
)

type InventoryStore interface {
	Decrement(ctx context.Context, productID string, qty int) error
	DecrementClamped(ctx context.Context, productID string, qty int) (int, error)
}

type Service struct {
	Inventory InventoryStore
	Dedup     shop.Deduper
	Service   string
}

const dedupScope = "reconciler"

// HandleStockAdjustFailed retries each failed decrement. A conditional retry
// first; if stock still falls short the order has already outrun the ledger,
// so the remainder is clamped to zero and the shortfall logged for manual
// follow-up. Returning nil commits the offset.
func (s *Service) HandleStockAdjustFailed(ctx context.Context, m kafkago.Message) error {
	var env shop.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("reconciler: drop undecodable message: %v", err)
		return nil
	}
	if env.EventType != shop.EventStockAdjustFails {
		return nil
	}

	if s.Dedup != nil {
		if seen, err := s.Dedup.Seen(ctx, dedupScope, env.EventID); err == nil && seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[shop.StockAdjustFailedPayload](env.Payload)
	if err != nil {
		log.Printf("reconciler: drop bad payload event=%s: %v", env.EventID, err)
		return nil
	}

	for _, it := range p.Items {
		err := s.Inventory.Decrement(ctx, it.ProductID, it.Qty)
		if err == nil {
			log.Printf("reconciler order=%s: settled product=%s qty=%d", p.OrderID, it.ProductID, it.Qty)
			continue
		}
		if errors.Is(err, shop.ErrInsufficientStock) {
			applied, cerr := s.Inventory.DecrementClamped(ctx, it.ProductID, it.Qty)
			if cerr != nil {
				return cerr // retry the whole event
			}
			log.Printf("reconciler order=%s: product=%s oversold, applied=%d of %d, shortfall=%d",
				p.OrderID, it.ProductID, applied, it.Qty, it.Qty-applied)
			continue
		}
		if errors.Is(err, shop.ErrNotFound) {
			log.Printf("reconciler order=%s: product=%s gone, skipping", p.OrderID, it.ProductID)
			continue
		}
		return err // transient store error; leave uncommitted for retry
	}

	// mark only after the whole event settled, so a retried delivery is not
	// shadowed by its own failed attempt
	if s.Dedup != nil {
		if err := s.Dedup.Mark(ctx, dedupScope, env.EventID); err != nil {
			log.Printf("reconciler: dedup mark event=%s: %v", env.EventID, err)
		}
	}
	return nil
}
