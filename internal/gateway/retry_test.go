package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/gateway"
)

var tight = gateway.RetryPolicy{
	MaxAttempts: 3,
	Min:         time.Millisecond,
	Max:         2 * time.Millisecond,
}

// ── Do — retry behavior ────────────────────────────────────────────────────

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	var calls int
	err := tight.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("Do = (%v, %d calls), want (nil, 1)", err, calls)
	}
}

func TestDo_RetriesUnavailable(t *testing.T) {
	var calls int
	err := tight.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return gateway.Unavailable(errors.New("503"), "provider down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do should succeed on the third attempt: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_BoundedAttempts(t *testing.T) {
	var calls int
	err := tight.Do(context.Background(), func() error {
		calls++
		return gateway.Unavailable(errors.New("503"), "provider down")
	})
	if calls != tight.MaxAttempts {
		t.Errorf("calls = %d, want exactly MaxAttempts %d", calls, tight.MaxAttempts)
	}
	if !apperr.Is(err, apperr.CodePaymentPendingRetry) {
		t.Errorf("exhausted retries: got %v, want PAYMENT_PENDING_RETRY", err)
	}
}

func TestDo_NoRetryOnRejection(t *testing.T) {
	var calls int
	err := tight.Do(context.Background(), func() error {
		calls++
		return gateway.Rejected("insufficient funds")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (rejections are terminal)", calls)
	}
	if !apperr.Is(err, apperr.CodeGatewayRejected) {
		t.Errorf("got %v, want GATEWAY_REJECTED", err)
	}
}

func TestDo_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := tight.Do(ctx, func() error {
		calls++
		cancel()
		return gateway.Unavailable(errors.New("503"), "provider down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 after cancellation", calls)
	}
}
