package payment

import "context"

// Store persists payments. Like the contract store, CompareAndSwap is the
// single mutation primitive: one atomic write guarded by the status the
// caller read, so duplicate webhooks and racing release paths resolve to
// exactly one applied transition.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByOrderID(ctx context.Context, gatewayOrderID string) (*Payment, error)
	ListByContract(ctx context.Context, contractID string) ([]*Payment, error)

	// CompareAndSwap persists p iff the stored row still has status
	// expect. Returns false when the guard fails; nothing was written.
	CompareAndSwap(ctx context.Context, p *Payment, expect Status) (bool, error)
}
