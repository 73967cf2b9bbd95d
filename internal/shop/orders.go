package shop

import (
	"context"
	"time"
)

// Orders covers the read side plus the admin delivery update. Ownership is
// enforced here, not in the handlers: only the owner or an admin may read an
// order.
type Orders struct {
	Store    OrderStore
	Producer EventPublisher
	Service  string
}

func (s *Orders) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	return s.Store.ListByUser(ctx, userID)
}

func (s *Orders) GetForCaller(ctx context.Context, userID, role, orderID string) (*Order, error) {
	order, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && role != "admin" {
		return nil, ErrForbidden
	}
	return order, nil
}

// MarkDelivered is admin-gated at the router; setting it twice is harmless.
func (s *Orders) MarkDelivered(ctx context.Context, orderID string) (*Order, error) {
	if err := s.Store.MarkDelivered(ctx, orderID, time.Now().UTC()); err != nil {
		return nil, err
	}
	order, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	publishEvent(s.Producer, s.Service, TopicOrderDelivered, EventOrderDelivered,
		orderID, traceID(ctx), OrderDeliveredPayload{OrderID: orderID})
	return order, nil
}
