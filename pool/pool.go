package pool

import "context"

// The pool interface
type Pool interface {
	// Acquire returns a lease over one connection slot. Releasing the
	// lease puts the slot back to the Pool. Acquiring from a pool that
	// has been shut down fails with errs.ClosedErr; running out of wait
	// budget at full capacity fails with errs.ExhaustedErr.
	Acquire(ctx context.Context) (*Lease, error)

	// Shutdown closes the pool and all its slots, waiting for
	// outstanding leases up to the shutdown grace period before
	// force-closing them. After Shutdown() the pool is no longer usable.
	Shutdown(ctx context.Context) error

	// Stats returns a snapshot of the pool's slot and waiter counts.
	Stats() Stats
}
