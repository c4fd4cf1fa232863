package cache

import (
	"context"
	"time"
)

// Cache is a string-keyed store with optional per-key expiry. Values are
// JSON-encoded, so anything serializable can go in. Get reports whether the
// key existed, keeping "absent" distinct from a stored zero value.
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, dest any) (bool, error)
	Delete(ctx context.Context, key string) error
}
