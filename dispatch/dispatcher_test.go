package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessiond/sessiond/driver"
	"github.com/sessiond/sessiond/pool"
	"github.com/sessiond/sessiond/pool/errs"
)

var errConnDropped = errors.New("conn dropped")

func newTestDispatcher(t *testing.T, cfg pool.Config) (*Dispatcher, *pool.ConnPool, *driver.MemDriver) {
	t.Helper()
	drv := driver.NewMemDriver()
	p, err := pool.New(cfg, drv)
	require.NoError(t, err)
	require.NoError(t, p.Fill(context.Background()))

	d := New(p, func(err error) bool { return errors.Is(err, errConnDropped) })
	return d, p, drv
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDispatchRunsWorkAndReleases(t *testing.T) {
	d, p, _ := newTestDispatcher(t, pool.Config{MinSize: 1, MaxSize: 1})

	var got driver.Conn
	err := d.Dispatch(context.Background(), time.Second, func(ctx context.Context, conn driver.Conn) error {
		got = conn
		return nil
	})
	require.NoError(t, err)
	assert.NotNil(t, got)

	st := p.Stats()
	assert.Equal(t, 1, st.Idle)
	assert.Equal(t, 0, st.Leased)
}

func TestDispatchApplicationErrorKeepsSlot(t *testing.T) {
	d, p, drv := newTestDispatcher(t, pool.Config{MinSize: 1, MaxSize: 1})

	appErr := errors.New("duplicate key")
	err := d.Dispatch(context.Background(), time.Second, func(ctx context.Context, conn driver.Conn) error {
		return appErr
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErr), "work error must unwrap to the original")

	// an application error does not cost the connection
	assert.Equal(t, 1, p.Stats().Idle)
	assert.Equal(t, 1, drv.Connects())
}

func TestDispatchConnectionFaultDiscardsSlot(t *testing.T) {
	d, p, drv := newTestDispatcher(t, pool.Config{MinSize: 1, MaxSize: 1})

	err := d.Dispatch(context.Background(), time.Second, func(ctx context.Context, conn driver.Conn) error {
		return errConnDropped
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errConnDropped))

	waitFor(t, time.Second, func() bool { return p.Stats().Idle == 1 })
	assert.True(t, drv.Conns()[0].Closed())
	assert.Equal(t, 2, drv.Connects())
}

func TestDispatchReleasesOnPanic(t *testing.T) {
	d, p, drv := newTestDispatcher(t, pool.Config{MinSize: 1, MaxSize: 1})

	require.Panics(t, func() {
		_ = d.Dispatch(context.Background(), time.Second, func(ctx context.Context, conn driver.Conn) error {
			panic("handler bug")
		})
	})

	// the lease was released and the suspect connection discarded
	waitFor(t, time.Second, func() bool { return p.Stats().Idle == 1 })
	assert.Equal(t, 0, p.Stats().Leased)
	assert.True(t, drv.Conns()[0].Closed())
}

func TestDispatchExhaustedPropagatesUnchanged(t *testing.T) {
	d, p, _ := newTestDispatcher(t, pool.Config{MinSize: 1, MaxSize: 1, AcquireTimeout: 30 * time.Millisecond})

	l, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer l.Release(pool.Healthy)

	err = d.Dispatch(context.Background(), 0, func(ctx context.Context, conn driver.Conn) error {
		return nil
	})
	require.Error(t, err)
	assert.True(t, errs.IsExhaustedErr(err))
}

func TestDispatchClosedPool(t *testing.T) {
	d, p, _ := newTestDispatcher(t, pool.Config{MinSize: 1, MaxSize: 1})
	require.NoError(t, p.Shutdown(context.Background()))

	err := d.Dispatch(context.Background(), time.Second, func(ctx context.Context, conn driver.Conn) error {
		return nil
	})
	require.Error(t, err)
	assert.True(t, errs.IsClosedErr(err))
}

func TestDispatchSerializesOnSingleSlot(t *testing.T) {
	d, _, _ := newTestDispatcher(t, pool.Config{MinSize: 1, MaxSize: 1, AcquireTimeout: 2 * time.Second})

	var inFlight, maxInFlight atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.Dispatch(context.Background(), 2*time.Second, func(ctx context.Context, conn driver.Conn) error {
				n := inFlight.Add(1)
				if n > maxInFlight.Load() {
					maxInFlight.Store(n)
				}
				time.Sleep(10 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load(), "work units overlapped on a single slot")
}

func TestDispatchTimeoutCancelsWait(t *testing.T) {
	d, p, _ := newTestDispatcher(t, pool.Config{MinSize: 1, MaxSize: 1, AcquireTimeout: 5 * time.Second})

	l, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer l.Release(pool.Healthy)

	start := time.Now()
	err = d.Dispatch(context.Background(), 50*time.Millisecond, func(ctx context.Context, conn driver.Conn) error {
		return nil
	})
	require.Error(t, err)
	assert.True(t, errs.IsExhaustedErr(err))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, p.Stats().Waiters)
}
