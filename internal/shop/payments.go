package shop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/stripe"
)

// ProcessorClient is the slice of the payment processor the engine needs.
// stripe.Client implements it.
type ProcessorClient interface {
	CreateIntent(ctx context.Context, p stripe.CreateIntentParams) (*stripe.Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*stripe.Intent, error)
}

// Deduper is a best-effort seen-before filter for webhook deliveries.
// redisx.Dedup implements it; the paid-flag CAS stays the real guard.
type Deduper interface {
	Seen(ctx context.Context, scope, id string) (bool, error)
	Mark(ctx context.Context, scope, id string) error
}

const dedupScope = "payments"

// StatusCache drops a cached order-status view so the next poll reads the DB.
// redisx.StatusCache implements it.
type StatusCache interface {
	Invalidate(ctx context.Context, orderID string)
}

// Payments reconciles order payment state against the processor. Confirmation
// reaches it on two independent channels, the synchronous client confirm and
// the asynchronous webhook; both funnel into the same markPaid compare-and-set
// so exactly one of them wins, whichever arrives first.
type Payments struct {
	Orders    OrderStore
	Processor ProcessorClient
	Dedup     Deduper
	Status    StatusCache
	Producer  EventPublisher
	Service   string
}

type IntentRef struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
}

// CreateIntent opens a processor charge for the caller's unpaid order. The
// order id rides in the intent metadata so webhook events can find their way
// back.
func (p *Payments) CreateIntent(ctx context.Context, userID, orderID string) (*IntentRef, error) {
	order, err := p.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return nil, ErrAlreadyPaid
	}
	intent, err := p.Processor.CreateIntent(ctx, stripe.CreateIntentParams{
		Amount:      AmountCents(order.TotalPrice),
		Currency:    "usd",
		Description: fmt.Sprintf("Payment for order #%s", order.ID),
		Metadata: map[string]string{
			"order_id": order.ID,
			"user_id":  order.UserID,
		},
	})
	if err != nil {
		return nil, p.processorErr(err)
	}
	return &IntentRef{PaymentIntentID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// ConfirmPayment is the client-confirmed path: the caller hands us a
// transaction id, we verify it against the processor ourselves, then apply
// the paid transition. Racing against the webhook is fine; the transition is
// a no-op for the loser.
func (p *Payments) ConfirmPayment(ctx context.Context, userID, userEmail, intentID, orderID string) (*Order, error) {
	intent, err := p.Processor.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, p.processorErr(err)
	}
	if intent.Status != IntentSucceeded {
		return nil, &PaymentVerificationError{Reason: fmt.Sprintf("payment not succeeded, status: %s", intent.Status)}
	}
	order, err := p.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	email := intent.ReceiptEmail
	if email == "" {
		email = userEmail
	}
	if err := p.markPaid(ctx, order.ID, PaymentResult{
		ID:           intent.ID,
		Status:       intent.Status,
		UpdateTime:   time.Now().UTC().Format(time.RFC3339),
		EmailAddress: email,
	}, order.TotalPrice); err != nil {
		return nil, err
	}

	return p.Orders.Get(ctx, order.ID)
}

// HandleWebhook dispatches an already signature-verified processor event.
// Unknown kinds are acknowledged without any state change so the processor
// stops retrying them.
func (p *Payments) HandleWebhook(ctx context.Context, ev *stripe.Event) error {
	if p.Dedup != nil {
		if seen, err := p.Dedup.Seen(ctx, dedupScope, ev.ID); err == nil && seen {
			return nil
		}
	}

	var err error
	switch ev.Type {
	case stripe.EventPaymentIntentSucceeded:
		err = p.webhookSucceeded(ctx, ev)
	case stripe.EventPaymentIntentFailed:
		err = p.webhookFailed(ctx, ev)
	case stripe.EventChargeSucceeded:
		log.Printf("charge succeeded: event=%s", ev.ID)
	default:
		log.Printf("unhandled event type: %s", ev.Type)
	}
	if err != nil {
		// leave the event unmarked; the processor's retry must be processed
		return err
	}

	// mark only after the event settled, so a failed attempt cannot shadow
	// its own retry
	if p.Dedup != nil {
		if merr := p.Dedup.Mark(ctx, dedupScope, ev.ID); merr != nil {
			log.Printf("webhook dedup mark event=%s: %v", ev.ID, merr)
		}
	}
	return nil
}

func (p *Payments) webhookSucceeded(ctx context.Context, ev *stripe.Event) error {
	intent, err := ev.Intent()
	if err != nil {
		return err
	}
	orderID := intent.Metadata["order_id"]
	if orderID == "" {
		log.Printf("webhook event=%s: no order id in intent metadata", ev.ID)
		return nil
	}
	order, err := p.Orders.Get(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		log.Printf("webhook event=%s: order %s not found", ev.ID, orderID)
		return nil
	}
	if err != nil {
		return err
	}
	return p.markPaid(ctx, order.ID, PaymentResult{
		ID:           intent.ID,
		Status:       intent.Status,
		UpdateTime:   time.Now().UTC().Format(time.RFC3339),
		EmailAddress: intent.ReceiptEmail,
	}, order.TotalPrice)
}

func (p *Payments) webhookFailed(ctx context.Context, ev *stripe.Event) error {
	intent, err := ev.Intent()
	if err != nil {
		return err
	}
	orderID := intent.Metadata["order_id"]
	if orderID == "" {
		return nil
	}
	log.Printf("payment failed for order %s (intent %s)", orderID, intent.ID)
	err = p.Orders.RecordPaymentFailure(ctx, orderID, PaymentResult{
		ID:         intent.ID,
		Status:     "failed",
		UpdateTime: time.Now().UTC().Format(time.RFC3339),
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	publishEvent(p.Producer, p.Service, TopicPaymentFailed, EventPaymentFailed,
		orderID, traceID(ctx), PaymentFailedPayload{
			OrderID:  orderID,
			IntentID: intent.ID,
			Reason:   intent.LastPaymentError,
		})
	return nil
}

// MarkPaidManually is the trusted manual path: the payment result blob comes
// from the caller, no processor round trip. The same compare-and-set applies,
// so re-confirming an already paid order stays a no-op.
func (p *Payments) MarkPaidManually(ctx context.Context, userID, role, orderID string, res PaymentResult) (*Order, error) {
	order, err := p.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && role != "admin" {
		return nil, ErrForbidden
	}
	if err := p.markPaid(ctx, order.ID, res, order.TotalPrice); err != nil {
		return nil, err
	}
	return p.Orders.Get(ctx, order.ID)
}

// IntentStatus is a passthrough status probe against the processor.
func (p *Payments) IntentStatus(ctx context.Context, intentID string) (*stripe.Intent, error) {
	intent, err := p.Processor.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, p.processorErr(err)
	}
	return intent, nil
}

// markPaid applies the at-most-once paid transition. applied=false means a
// racing confirmation already won; side effects (event publish) fire only for
// the winner.
func (p *Payments) markPaid(ctx context.Context, orderID string, res PaymentResult, total float64) error {
	applied, err := p.Orders.MarkPaid(ctx, orderID, time.Now().UTC(), res)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	if p.Status != nil {
		// drop the cached status view so polls see the paid order immediately
		p.Status.Invalidate(ctx, orderID)
	}
	publishEvent(p.Producer, p.Service, TopicOrderPaid, EventOrderPaid,
		orderID, traceID(ctx), OrderPaidPayload{
			OrderID:    orderID,
			IntentID:   res.ID,
			TotalPrice: total,
		})
	return nil
}

func (p *Payments) ownedOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	order, err := p.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// the original surface reports someone else's order as missing, not
	// forbidden, on the payment endpoints
	if order.UserID != userID {
		return nil, ErrNotFound
	}
	return order, nil
}

func (p *Payments) processorErr(err error) error {
	if errors.Is(err, stripe.ErrTimeout) {
		return ErrUpstreamTimeout
	}
	return &PaymentVerificationError{Reason: err.Error()}
}
