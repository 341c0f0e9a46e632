package driver

import "context"

// Conn is one live connection to the backing store. The pool never
// inspects what is behind it; it only probes and closes.
type Conn interface {
	// Probe runs a lightweight liveness check.
	Probe(ctx context.Context) error

	// Close tears the connection down. Best-effort: callers log errors
	// instead of propagating them.
	Close(ctx context.Context) error
}

// Driver opens connections for the pool.
type Driver interface {
	Connect(ctx context.Context) (Conn, error)
}
