package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sessiond/sessiond/driver"
	"github.com/sessiond/sessiond/pool/errs"
)

const (
	// Dial budget for background slot replacement.
	replenishDialTimeout = 5 * time.Second

	// Budget for best-effort connection teardown.
	closeTimeout = 3 * time.Second
)

// Configs for pool
type Config struct {
	// The least number of open slots the pool maintains
	MinSize int

	// Max slot number in the pool; a hard ceiling enforced against
	// concurrent acquirers
	MaxSize int

	// Max time to wait for a slot when the pool is at capacity.
	// Zero means fail immediately with errs.ExhaustedErr.
	AcquireTimeout time.Duration

	// Max life time for an idle slot before it is discarded
	IdleTimeout time.Duration

	// Interval between health monitor cycles
	HealthCheckInterval time.Duration

	// How long Shutdown waits for outstanding leases before
	// force-closing them
	ShutdownGrace time.Duration
}

// the pool
type ConnPool struct {
	mu      sync.Mutex
	cfg     Config
	drv     driver.Driver
	slots   map[uint64]*slot // every slot not yet Closed
	idle    []*slot          // FIFO of idle slots available to acquirers
	waiters []chan *Lease    // FIFO, longest-waiting acquirer first
	opened  int              // slots in the map plus in-flight dials
	leased  int
	closed  bool
	nextID  uint64

	drained  chan struct{}
	drainSig bool
	degraded atomic.Bool
}

// Build pool
func New(cfg Config, drv driver.Driver) (*ConnPool, error) {
	if cfg.MinSize <= 0 || cfg.MaxSize <= 0 || cfg.MinSize > cfg.MaxSize {
		return nil, errors.New("invalid capacity settings")
	}
	if drv == nil {
		return nil, errors.New("invalid driver settings")
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}

	return &ConnPool{
		cfg:     cfg,
		drv:     drv,
		slots:   make(map[uint64]*slot),
		drained: make(chan struct{}),
	}, nil
}

// Fill dials connections until the pool holds MinSize slots. Meant for
// startup: the first dial error aborts and is returned.
func (p *ConnPool) Fill(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return errs.NewDefaultClosedErr()
		}
		if p.opened >= p.cfg.MinSize {
			p.mu.Unlock()
			return nil
		}
		p.opened++
		p.mu.Unlock()

		conn, err := p.drv.Connect(ctx)
		p.mu.Lock()
		if err != nil {
			p.opened--
			p.mu.Unlock()
			return errs.NewConnectErr(err)
		}
		if p.closed {
			p.opened--
			p.mu.Unlock()
			p.closeConn(conn)
			return errs.NewDefaultClosedErr()
		}
		s := p.newSlotLocked(conn)
		p.handBackLocked(s)
		p.mu.Unlock()
	}
}

func (p *ConnPool) Acquire(ctx context.Context) (*Lease, error) {
	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return nil, errs.NewClosedErr("acquire on closed pool")
		}
		if err := ctx.Err(); err != nil {
			p.mu.Unlock()
			return nil, errs.NewExhaustedErr("acquire canceled: " + err.Error())
		}

		s := p.popIdleLocked()
		if s == nil {
			break
		}
		// check timeout, if timeout remove
		if timeout := p.cfg.IdleTimeout; timeout > 0 && time.Since(s.lastUsed) > timeout {
			p.removeLocked(s)
			go p.closeConn(s.conn)
			continue
		}
		s.state = StateLeased
		s.lastUsed = time.Now()
		p.leased++
		p.mu.Unlock()
		return &Lease{p: p, s: s}, nil
	}

	// no idle slot; grow while below the ceiling
	if p.opened < p.cfg.MaxSize {
		p.opened++
		p.mu.Unlock()

		conn, err := p.drv.Connect(ctx)
		p.mu.Lock()
		if err != nil {
			p.opened--
			p.mu.Unlock()
			return nil, errs.NewConnectErr(err)
		}
		if p.closed {
			p.opened--
			p.mu.Unlock()
			p.closeConn(conn)
			return nil, errs.NewClosedErr("pool shut down during connect")
		}
		s := p.newSlotLocked(conn)
		s.state = StateLeased
		p.leased++
		p.mu.Unlock()
		return &Lease{p: p, s: s}, nil
	}

	// at capacity: join the waiter queue, bounded by the acquire
	// timeout and the caller's context
	wait := p.cfg.AcquireTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); wait <= 0 || d < wait {
			wait = d
		}
	}
	if wait <= 0 {
		p.mu.Unlock()
		return nil, errs.NewExhaustedErr("pool at capacity and no wait budget")
	}
	req := make(chan *Lease, 1)
	p.waiters = append(p.waiters, req)
	p.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case l, ok := <-req:
		if !ok {
			return nil, errs.NewClosedErr("pool shut down while waiting")
		}
		return l, nil
	case <-timer.C:
		p.abandonWait(req)
		return nil, errs.NewExhaustedErr("no slot available within acquire timeout")
	case <-ctx.Done():
		p.abandonWait(req)
		return nil, errs.NewExhaustedErr("acquire canceled: " + ctx.Err().Error())
	}
}

// abandonWait removes req from the waiter queue. When a release has
// already delivered a lease to req, the slot goes straight back to the
// pool so it is not leaked by the timed-out caller.
func (p *ConnPool) abandonWait(req chan *Lease) {
	p.mu.Lock()
	for i, w := range p.waiters {
		if w == req {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return
		}
	}
	p.mu.Unlock()

	select {
	case l, ok := <-req:
		if ok && l != nil {
			if err := l.Release(Healthy); err != nil {
				log.WithError(err).Error("hand-back of raced lease failed")
			}
		}
	default:
	}
}

func (p *ConnPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errs.NewClosedErr("pool already shut down")
	}
	p.closed = true
	waiters := p.waiters
	p.waiters = nil
	idle := p.idle
	p.idle = nil
	for _, s := range idle {
		p.removeLocked(s)
	}
	p.signalDrainLocked()
	outstanding := p.leased
	p.mu.Unlock()

	for _, req := range waiters {
		close(req)
	}
	for _, s := range idle {
		p.closeConn(s.conn)
	}
	if outstanding > 0 {
		log.WithField("leases", outstanding).Info("pool shutdown waiting for outstanding leases")
	}

	timer := time.NewTimer(p.cfg.ShutdownGrace)
	defer timer.Stop()
	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
	case <-timer.C:
	}

	// grace expired: reclaim whatever is still leased
	p.mu.Lock()
	var conns []driver.Conn
	for _, s := range p.slots {
		if s.state == StateLeased {
			conns = append(conns, s.conn)
			p.leased--
			p.removeLocked(s)
		}
	}
	p.signalDrainLocked()
	p.mu.Unlock()

	for _, c := range conns {
		p.closeConn(c)
	}
	if len(conns) > 0 {
		log.WithField("leases", len(conns)).Warn("force-closed outstanding leases")
	}
	return nil
}

// retire closes a broken slot and replaces it when the pool has dropped
// below MinSize.
func (p *ConnPool) retire(s *slot) {
	p.closeConn(s.conn)

	p.mu.Lock()
	p.removeLocked(s)
	needed := 0
	if !p.closed && p.opened < p.cfg.MinSize {
		needed = p.cfg.MinSize - p.opened
		p.opened += needed
	}
	p.mu.Unlock()

	for i := 0; i < needed; i++ {
		p.replenish()
	}
}

// replenish dials one connection for capacity that has already been
// reserved under the lock.
func (p *ConnPool) replenish() {
	ctx, cancel := context.WithTimeout(context.Background(), replenishDialTimeout)
	defer cancel()

	conn, err := p.drv.Connect(ctx)
	p.mu.Lock()
	if err != nil {
		p.opened--
		p.mu.Unlock()
		log.WithError(err).Warn("replacement connection failed")
		return
	}
	if p.closed {
		p.opened--
		p.mu.Unlock()
		p.closeConn(conn)
		return
	}
	s := p.newSlotLocked(conn)
	p.handBackLocked(s)
	p.mu.Unlock()
}

func (p *ConnPool) popIdleLocked() *slot {
	if len(p.idle) == 0 {
		return nil
	}
	s := p.idle[0]
	copy(p.idle, p.idle[1:])
	p.idle = p.idle[:len(p.idle)-1]
	return s
}

// handBackLocked makes s available again: the longest waiter gets it as
// a fresh lease, otherwise it joins the idle set.
func (p *ConnPool) handBackLocked(s *slot) {
	if len(p.waiters) > 0 {
		req := p.waiters[0]
		copy(p.waiters, p.waiters[1:])
		p.waiters = p.waiters[:len(p.waiters)-1]

		s.state = StateLeased
		s.lastUsed = time.Now()
		p.leased++
		req <- &Lease{p: p, s: s}
		return
	}
	s.state = StateIdle
	p.idle = append(p.idle, s)
}

func (p *ConnPool) newSlotLocked(conn driver.Conn) *slot {
	p.nextID++
	now := time.Now()
	s := &slot{
		id:        p.nextID,
		conn:      conn,
		state:     StateIdle,
		createdAt: now,
		lastUsed:  now,
	}
	p.slots[s.id] = s
	return s
}

// removeLocked transitions s to Closed and drops it from the pool's
// accounting. The connection itself is closed by the caller.
func (p *ConnPool) removeLocked(s *slot) {
	s.state = StateClosed
	delete(p.slots, s.id)
	p.opened--
}

func (p *ConnPool) signalDrainLocked() {
	if p.closed && p.leased == 0 && !p.drainSig {
		p.drainSig = true
		close(p.drained)
	}
}

func (p *ConnPool) closeConn(conn driver.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		log.WithError(err).Debug("connection close failed")
	}
}

// Lease is the exclusive right to use one slot's connection until
// Release is called. A slot has at most one outstanding lease.
type Lease struct {
	p        *ConnPool
	s        *slot
	released bool // guarded by p.mu
}

// Conn returns the leased connection.
func (l *Lease) Conn() driver.Conn {
	return l.s.conn
}

// SlotID identifies the leased slot, for logging.
func (l *Lease) SlotID() uint64 {
	return l.s.id
}

// Release returns the slot to the pool exactly once. A Healthy outcome
// makes it available to the next acquirer; Unhealthy discards it and
// schedules a replacement. A second Release fails with
// errs.DoubleReleaseErr and leaves the pool's accounting untouched.
func (l *Lease) Release(outcome Outcome) error {
	p := l.p
	p.mu.Lock()
	if l.released {
		p.mu.Unlock()
		log.WithField("slot", l.s.id).Error("lease released twice")
		return errs.NewDoubleReleaseErr("lease already released")
	}
	l.released = true
	s := l.s

	if s.state == StateClosed {
		// force-closed during shutdown; the caller still released
		// exactly once
		p.mu.Unlock()
		log.WithField("slot", s.id).Warn("lease released after forced close")
		return nil
	}

	p.leased--
	s.lastUsed = time.Now()

	if p.closed {
		p.removeLocked(s)
		p.signalDrainLocked()
		p.mu.Unlock()
		p.closeConn(s.conn)
		return nil
	}

	if outcome == Unhealthy {
		s.state = StateBroken
		p.mu.Unlock()
		log.WithField("slot", s.id).Info("slot marked broken on release")
		go p.retire(s)
		return nil
	}

	p.handBackLocked(s)
	p.mu.Unlock()
	return nil
}
