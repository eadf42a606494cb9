// Package lock provides a small Redis-backed mutex used to serialize
// multi-instance critical sections: job budget allocation, per-referrer
// reward grants, and scheduler sweep claims.
package lock

import (
	"context"
	"time"
)

// Locker acquires named locks with a TTL. TryLock never blocks: it either
// acquires the lock and returns ok=true with an unlock func, or returns
// ok=false when another holder has it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context), ok bool, err error)
}
