package shop

import "time"

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// PaymentResult is the processor's view of the charge, frozen onto the order
// when the paid transition applies (or when a failure is recorded).
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address,omitempty"`
}

// Order items are a frozen copy of the product at checkout time. Later product
// edits never change historical orders.
type OrderItem struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	Image     string  `json:"image"`
}

type Order struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Items           []OrderItem    `json:"items"`
	ShippingAddress Address        `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
	ItemsPrice      float64        `json:"items_price"`
	TaxPrice        float64        `json:"tax_price"`
	ShippingPrice   float64        `json:"shipping_price"`
	TotalPrice      float64        `json:"total_price"`
	IsPaid          bool           `json:"is_paid"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	PaymentResult   *PaymentResult `json:"payment_result,omitempty"`
	IsDelivered     bool           `json:"is_delivered"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
	Status          DeliveryStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type Pricing struct {
	ItemsPrice    float64
	TaxPrice      float64
	ShippingPrice float64
	TotalPrice    float64
}

const (
	taxRate           = 0.10
	freeShippingAbove = 100.0
	flatShippingPrice = 10.0
)

// ComputePricing derives the order pricing from its items: 10% tax on the
// items subtotal, free shipping at 100 and above, flat 10 below.
func ComputePricing(items []OrderItem) Pricing {
	var sub float64
	for _, it := range items {
		sub += it.UnitPrice * float64(it.Qty)
	}
	p := Pricing{ItemsPrice: sub, TaxPrice: sub * taxRate}
	if sub < freeShippingAbove {
		p.ShippingPrice = flatShippingPrice
	}
	p.TotalPrice = p.ItemsPrice + p.TaxPrice + p.ShippingPrice
	return p
}

// CartTotal is the derived cart total, recomputed on every mutation.
func CartTotal(items []CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.UnitPrice * float64(it.Qty)
	}
	return total
}

// AmountCents converts a price to the processor's minor units.
func AmountCents(price float64) int64 {
	return int64(price*100 + 0.5)
}
