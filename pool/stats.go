package pool

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	Idle     int  `json:"idle"`
	Leased   int  `json:"leased"`
	Broken   int  `json:"broken"`
	Waiters  int  `json:"waiters"`
	Opened   int  `json:"opened"`
	Degraded bool `json:"degraded"`
}

func (p *ConnPool) Stats() Stats {
	p.mu.Lock()
	st := Stats{
		Waiters:  len(p.waiters),
		Opened:   p.opened,
		Degraded: p.degraded.Load(),
	}
	for _, s := range p.slots {
		switch s.state {
		case StateIdle:
			st.Idle++
		case StateLeased:
			st.Leased++
		case StateBroken:
			st.Broken++
		}
	}
	p.mu.Unlock()
	return st
}
