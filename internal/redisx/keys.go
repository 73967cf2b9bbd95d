package redisx

import "time"

const (
	// Dedup webhook event processing: dedup:{service}:{event_id}.
	// Fast path only; the paid-flag CAS in postgres stays the source of truth.
	KeyDedup = "dedup:%s:%s"

	// Cache status order: order_status:{order_id} -> {"status":..,"is_paid":..,"is_delivered":..}
	KeyOrderStatus = "order_status:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLStatusCache = 5 * time.Minute
)
