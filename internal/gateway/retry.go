package gateway

import (
	"context"
	"time"

	"github.com/jpillora/backoff"

	apperr "taskpay/escrow-service/internal/errors"
)

// RetryPolicy bounds retries of transient gateway failures with
// exponential backoff. It is plain data injected where needed, so tests
// can substitute a tight policy deterministically.
type RetryPolicy struct {
	MaxAttempts int
	Min         time.Duration
	Max         time.Duration
}

// DefaultRetryPolicy is used by the payment ledger in production.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 4,
	Min:         500 * time.Millisecond,
	Max:         8 * time.Second,
}

// Do runs fn, retrying only on unavailable errors, up to MaxAttempts.
// Rejections and other errors pass through untouched. Exhausted retries
// surface as PAYMENT_PENDING_RETRY so the caller knows the payment is
// parked, not failed.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	b := &backoff.Backoff{Min: p.Min, Max: p.Max, Jitter: true}
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsUnavailable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return apperr.Wrap(apperr.CodePaymentPendingRetry, err,
				"gateway unavailable after %d attempts", attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
}
