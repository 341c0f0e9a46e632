package dispatch

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sessiond/sessiond/driver"
	"github.com/sessiond/sessiond/pool"
)

// WorkUnit runs against one leased connection. Results are captured by
// the closure; the returned error is surfaced to the dispatch caller.
type WorkUnit func(ctx context.Context, conn driver.Conn) error

// FaultClassifier decides whether a work error means the connection
// itself is broken, as opposed to an application-level failure.
type FaultClassifier func(error) bool

// Dispatcher runs work units against pooled connections. The lease is
// released exactly once on every exit path, panics included.
type Dispatcher struct {
	pool     pool.Pool
	classify FaultClassifier
}

func New(p pool.Pool, classify FaultClassifier) *Dispatcher {
	if classify == nil {
		classify = func(error) bool { return false }
	}
	return &Dispatcher{pool: p, classify: classify}
}

// Dispatch acquires a lease within timeout, runs work, and releases the
// lease with an outcome derived from the work's error. Acquisition
// errors (errs.ExhaustedErr, errs.ClosedErr) propagate unchanged; work
// errors come back wrapped but unwrap to the original.
func (d *Dispatcher) Dispatch(ctx context.Context, timeout time.Duration, work WorkUnit) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lease, err := d.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	outcome := pool.Healthy
	defer func() {
		if rerr := lease.Release(outcome); rerr != nil {
			log.WithError(rerr).WithField("slot", lease.SlotID()).Error("lease release failed")
		}
	}()
	defer func() {
		// the connection's state is unknown after a panic mid-work;
		// discard it and let the release defer run before re-raising
		if r := recover(); r != nil {
			outcome = pool.Unhealthy
			panic(r)
		}
	}()

	if err := work(ctx, lease.Conn()); err != nil {
		if d.classify(err) {
			outcome = pool.Unhealthy
			return fmt.Errorf("work failed on broken connection: %w", err)
		}
		return fmt.Errorf("work failed: %w", err)
	}
	return nil
}
