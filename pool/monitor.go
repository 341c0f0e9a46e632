package pool

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sessiond/sessiond/pool/errs"
)

const probeTimeout = 3 * time.Second

// Monitor probes the pool's idle slots on a fixed interval, evicts the
// ones that fail, and tops the pool back up toward MinSize. Leased
// slots are never touched. One monitor per pool.
type Monitor struct {
	p    *ConnPool
	stop chan struct{}
	done chan struct{}
}

func NewMonitor(p *ConnPool) *Monitor {
	return &Monitor{
		p:    p,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the monitor loop. Probe or dial failures mark the pool
// degraded but never stop the loop; it retries on the next interval.
func (m *Monitor) Start() {
	go m.run()
}

func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Monitor) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.p.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.cycle()
		}
	}
}

// cycle runs one monitor pass. Idle slots are detached from the pool
// under the lock, so an acquirer can never race a probe on the same
// slot; probing itself happens outside the lock.
func (m *Monitor) cycle() {
	p := m.p

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	detached := p.idle
	p.idle = nil
	p.mu.Unlock()

	var healthy []*slot
	probed, failed := 0, 0
	now := time.Now()
	for _, s := range detached {
		if timeout := p.cfg.IdleTimeout; timeout > 0 && now.Sub(s.lastUsed) > timeout {
			m.evict(s, nil)
			continue
		}
		probed++
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		err := s.conn.Probe(ctx)
		cancel()
		if err != nil {
			failed++
			m.evict(s, err)
			continue
		}
		healthy = append(healthy, s)
	}

	p.mu.Lock()
	if p.closed {
		for _, s := range healthy {
			p.removeLocked(s)
		}
		p.mu.Unlock()
		for _, s := range healthy {
			p.closeConn(s.conn)
		}
		return
	}
	for _, s := range healthy {
		p.handBackLocked(s)
	}
	missing := 0
	if p.opened < p.cfg.MinSize {
		missing = p.cfg.MinSize - p.opened
		p.opened += missing
	}
	p.mu.Unlock()

	// The store counts as unreachable only when replacement dials fail;
	// an evicted idle slot that was replaced fine is routine churn.
	// Every reserved dial is attempted so a failure never strands the
	// reservations behind it.
	degraded := false
	for i := 0; i < missing; i++ {
		if !m.topUp() {
			degraded = true
		}
	}

	p.degraded.Store(degraded)
	if degraded {
		log.WithFields(log.Fields{
			"probed": probed,
			"failed": failed,
		}).Warn("pool degraded")
	} else if failed > 0 {
		log.WithFields(log.Fields{
			"probed":  probed,
			"evicted": failed,
		}).Info("health cycle evicted slots")
	}
}

// evict closes a detached idle slot that expired or failed its probe.
func (m *Monitor) evict(s *slot, probeErr error) {
	p := m.p

	p.mu.Lock()
	s.state = StateBroken
	if probeErr != nil {
		s.lastErr = errs.NewProbeErr(probeErr)
	}
	p.removeLocked(s)
	p.mu.Unlock()

	if probeErr != nil {
		log.WithError(probeErr).WithField("slot", s.id).Info("idle slot failed liveness probe")
	}
	p.closeConn(s.conn)
}

// topUp dials one replacement connection for reserved capacity.
// Reports whether the dial succeeded.
func (m *Monitor) topUp() bool {
	p := m.p

	ctx, cancel := context.WithTimeout(context.Background(), replenishDialTimeout)
	defer cancel()
	conn, err := p.drv.Connect(ctx)

	p.mu.Lock()
	if err != nil {
		p.opened--
		p.mu.Unlock()
		log.WithError(err).Warn("top-up connection failed")
		return false
	}
	if p.closed {
		p.opened--
		p.mu.Unlock()
		p.closeConn(conn)
		return true
	}
	s := p.newSlotLocked(conn)
	p.handBackLocked(s)
	p.mu.Unlock()
	return true
}
