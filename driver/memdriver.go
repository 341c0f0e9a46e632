package driver

import (
	"context"
	"sync"
)

// MemDriver is an in-memory Driver used by tests and local development.
// Connect and probe failures can be injected at any point.
type MemDriver struct {
	mu         sync.Mutex
	connectErr error
	probeErr   error
	nextID     int
	connects   int
	closes     int
	conns      []*MemConn
}

func NewMemDriver() *MemDriver {
	return &MemDriver{}
}

func (d *MemDriver) Connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connectErr != nil {
		return nil, d.connectErr
	}
	d.nextID++
	d.connects++
	c := &MemConn{d: d, id: d.nextID, probeErr: d.probeErr}
	d.conns = append(d.conns, c)
	return c, nil
}

// FailConnects makes every subsequent Connect fail with err. Pass nil to
// restore normal behavior.
func (d *MemDriver) FailConnects(err error) {
	d.mu.Lock()
	d.connectErr = err
	d.mu.Unlock()
}

// FailProbes seeds every subsequently opened connection with a probe error.
func (d *MemDriver) FailProbes(err error) {
	d.mu.Lock()
	d.probeErr = err
	d.mu.Unlock()
}

// Connects returns how many connections have been opened in total.
func (d *MemDriver) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

// Open returns how many connections are currently open.
func (d *MemDriver) Open() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects - d.closes
}

// Conns returns every connection ever opened, closed ones included.
func (d *MemDriver) Conns() []*MemConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*MemConn, len(d.conns))
	copy(out, d.conns)
	return out
}

// MemConn is a MemDriver connection.
type MemConn struct {
	d        *MemDriver
	id       int
	mu       sync.Mutex
	probeErr error
	closed   bool
}

func (c *MemConn) ID() int {
	return c.id
}

func (c *MemConn) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probeErr
}

// SetProbeErr makes this connection fail its next probes with err.
func (c *MemConn) SetProbeErr(err error) {
	c.mu.Lock()
	c.probeErr = err
	c.mu.Unlock()
}

func (c *MemConn) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.d.mu.Lock()
	c.d.closes++
	c.d.mu.Unlock()
	return nil
}

func (c *MemConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
