// Package cache provides the fetch cache: raw sheet payloads keyed by
// (sheet id, tab id) with a time-to-live.
package cache

import (
	"context"
	"time"
)

// Store is a byte cache with per-entry TTL. Implementations must be safe for
// concurrent use. A miss is reported as ok=false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
