// Package cache provides the two caches behind the recommendation pipeline:
// a load-once table cache for the restaurant catalogue and a persistent
// key-value cache for LLM responses.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned when an operation is attempted on a closed cache.
var ErrClosed = errors.New("cache closed")

// ResponseCache stores serialized LLM responses keyed by request
// fingerprint. Writes are overwrite-on-collision upserts; a zero TTL means
// entries never expire. Implementations must treat their own failures as
// recoverable: callers handle any error as a miss.
type ResponseCache interface {
	// Get returns the cached value for key, or ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set upserts the value for key with the given TTL (0 = no expiry).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases the backing store.
	Close() error
}
