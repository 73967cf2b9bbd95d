package shop

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/stripe"
	kafkago "github.com/segmentio/kafka-go"
)

// In-memory stores with the same conditional-update semantics as the pgx
// repos, safe for concurrent use so the race tests exercise the services for
// real.

type fakeCarts struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

func newFakeCarts() *fakeCarts { return &fakeCarts{carts: map[string]*Cart{}} }

func (f *fakeCarts) put(userID string, items ...CartItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[userID] = &Cart{
		ID:     "cart-" + userID,
		UserID: userID,
		Items:  items,
		Total:  CartTotal(items),
	}
}

func (f *fakeCarts) Get(ctx context.Context, userID string) (*Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[userID]
	if !ok {
		return &Cart{UserID: userID, Items: []CartItem{}}, nil
	}
	cp := *c
	cp.Items = append([]CartItem(nil), c.Items...)
	return &cp, nil
}

func (f *fakeCarts) Clear(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.carts[userID]; ok {
		c.Items = nil
		c.Total = 0
	}
	return nil
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]*Order
	seq    int
}

func newFakeOrders() *fakeOrders { return &fakeOrders{orders: map[string]*Order{}} }

func cloneOrder(o *Order) *Order {
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	if o.PaymentResult != nil {
		r := *o.PaymentResult
		cp.PaymentResult = &r
	}
	return &cp
}

func (f *fakeOrders) Create(ctx context.Context, o *Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	o.CreatedAt = time.Now().Add(time.Duration(f.seq) * time.Millisecond)
	o.UpdatedAt = o.CreatedAt
	f.orders[o.ID] = cloneOrder(o)
	return nil
}

func (f *fakeOrders) Get(ctx context.Context, orderID string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (f *fakeOrders) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeOrders) MarkPaid(ctx context.Context, orderID string, paidAt time.Time, res PaymentResult) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false, ErrNotFound
	}
	if o.IsPaid {
		return false, nil
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	r := res
	o.PaymentResult = &r
	return true, nil
}

func (f *fakeOrders) RecordPaymentFailure(ctx context.Context, orderID string, res PaymentResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.IsPaid {
		return nil
	}
	r := res
	o.PaymentResult = &r
	return nil
}

func (f *fakeOrders) MarkDelivered(ctx context.Context, orderID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.IsDelivered = true
	o.DeliveredAt = &at
	o.Status = StatusDelivered
	return nil
}

type fakeInventory struct {
	mu       sync.Mutex
	products map[string]*Product
	// forceFail makes every Decrement fail, for the partial-failure path
	forceFail bool
}

func newFakeInventory(products ...*Product) *fakeInventory {
	f := &fakeInventory{products: map[string]*Product{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeInventory) Product(ctx context.Context, productID string) (*Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeInventory) Decrement(ctx context.Context, productID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forceFail {
		return fmt.Errorf("store unavailable")
	}
	p, ok := f.products[productID]
	if !ok {
		return ErrNotFound
	}
	if p.Stock < qty {
		return fmt.Errorf("product %s: have %d, want %d: %w", productID, p.Stock, qty, ErrInsufficientStock)
	}
	p.Stock -= qty
	return nil
}

func (f *fakeInventory) stock(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[productID].Stock
}

type publishedEvent struct {
	Topic string
	Key   string
	Value []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Publish(topic string, key, value []byte, headers ...kafkago.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{Topic: topic, Key: string(key), Value: value})
}

func (f *fakePublisher) byTopic(topic string) []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedEvent
	for _, e := range f.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type fakeProcessor struct {
	mu          sync.Mutex
	intents     map[string]*stripe.Intent
	createErr   error
	retrieveErr error
	created     []stripe.CreateIntentParams
}

func newFakeProcessor(intents ...*stripe.Intent) *fakeProcessor {
	f := &fakeProcessor{intents: map[string]*stripe.Intent{}}
	for _, in := range intents {
		f.intents[in.ID] = in
	}
	return f
}

func (f *fakeProcessor) CreateIntent(ctx context.Context, p stripe.CreateIntentParams) (*stripe.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, p)
	in := &stripe.Intent{
		ID:           fmt.Sprintf("pi_%d", len(f.created)),
		ClientSecret: "cs_test",
		Status:       "requires_payment_method",
		Amount:       p.Amount,
		Currency:     p.Currency,
		Metadata:     p.Metadata,
	}
	f.intents[in.ID] = in
	return in, nil
}

func (f *fakeProcessor) RetrieveIntent(ctx context.Context, id string) (*stripe.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	in, ok := f.intents[id]
	if !ok {
		return nil, fmt.Errorf("stripe: no such payment_intent: %s", id)
	}
	cp := *in
	return &cp, nil
}

type fakeStatusCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (f *fakeStatusCache) Invalidate(ctx context.Context, orderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, orderID)
}

func (f *fakeStatusCache) drops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...)
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDedup() *fakeDedup { return &fakeDedup{seen: map[string]bool{}} }

func (f *fakeDedup) Seen(ctx context.Context, scope, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[scope+":"+id], nil
}

func (f *fakeDedup) Mark(ctx context.Context, scope, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[scope+":"+id] = true
	return nil
}
