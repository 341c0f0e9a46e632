package pool

import (
	"time"

	"github.com/sessiond/sessiond/driver"
)

// State of a single slot. A slot is in exactly one state at a time;
// Closed is terminal.
type State int

const (
	StateIdle State = iota
	StateLeased
	StateBroken
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLeased:
		return "leased"
	case StateBroken:
		return "broken"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// slot is a wrapper around one store connection. Owned by the pool;
// all fields are guarded by the pool mutex.
type slot struct {
	id        uint64
	conn      driver.Conn
	state     State
	createdAt time.Time
	lastUsed  time.Time
	lastErr   error
}

// Outcome classifies a released connection.
type Outcome int

const (
	// Healthy returns the slot to the idle set.
	Healthy Outcome = iota

	// Unhealthy marks the slot broken; it is closed and never handed
	// out again.
	Unhealthy
)
