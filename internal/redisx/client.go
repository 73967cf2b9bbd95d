package redisx

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
}

// Dedup is a best-effort seen-before check over redis. Losing a key only
// costs a redundant (idempotent) reprocess, so errors degrade to "not seen".
type Dedup struct {
	R *redis.Client
}

func (d Dedup) Seen(ctx context.Context, scope, id string) (bool, error) {
	n, err := d.R.Exists(ctx, fmt.Sprintf(KeyDedup, scope, id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d Dedup) Mark(ctx context.Context, scope, id string) error {
	return d.R.Set(ctx, fmt.Sprintf(KeyDedup, scope, id), "1", TTLDedup).Err()
}

// StatusCache invalidates cached order-status views. A failed delete only
// leaves the stale view until its TTL runs out.
type StatusCache struct {
	R *redis.Client
}

func (c StatusCache) Invalidate(ctx context.Context, orderID string) {
	if err := c.R.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err(); err != nil {
		log.Printf("status cache invalidate order=%s: %v", orderID, err)
	}
}
