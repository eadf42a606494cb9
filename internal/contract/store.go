package contract

import "context"

// Store persists contracts. CompareAndSwap is the single mutation
// primitive: it writes the whole mutable state of a contract in one
// atomic update, guarded by the status the caller read — so every
// transition is one atomic write and a lost race is detected, never
// half-applied.
type Store interface {
	Create(ctx context.Context, c *Contract) error
	Get(ctx context.Context, id string) (*Contract, error)
	ListByJob(ctx context.Context, jobID string) ([]*Contract, error)

	// CompareAndSwap persists c iff the stored row still has status
	// expect and is not soft-deleted. Returns false when the guard fails;
	// in that case nothing was written.
	CompareAndSwap(ctx context.Context, c *Contract, expect Status) (bool, error)
}
