package shop

import (
	"context"
	"encoding/json"
	"time"

	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventOrderPaid        = "OrderPaid"
	EventPaymentFailed    = "PaymentFailed"
	EventOrderDelivered   = "OrderDelivered"
	EventStockAdjustFails = "StockAdjustFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	Items      []ItemQty `json:"items"`
	TotalPrice float64   `json:"total_price"`
}

type OrderPaidPayload struct {
	OrderID    string  `json:"order_id"`
	IntentID   string  `json:"intent_id"`
	TotalPrice float64 `json:"total_price"`
}

type PaymentFailedPayload struct {
	OrderID  string `json:"order_id"`
	IntentID string `json:"intent_id"`
	Reason   string `json:"reason"`
}

type OrderDeliveredPayload struct {
	OrderID string `json:"order_id"`
}

// StockAdjustFailedPayload records decrements that could not be applied after
// an order was already persisted. The reconciler consumes these and retries.
type StockAdjustFailedPayload struct {
	OrderID string    `json:"order_id"`
	Items   []ItemQty `json:"items"`
	Reason  string    `json:"reason"`
}

// EventPublisher is satisfied by kafka.Producer; fakes stand in for tests.
type EventPublisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

func publishEvent(pub EventPublisher, producer, topic, eventType, orderID, traceID string, payload any) {
	if pub == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	pub.Publish(topic, PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// TraceID pulls the request id through to published events.
type traceKey struct{}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}
