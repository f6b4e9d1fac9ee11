package lifecycle

import (
	"sync/atomic"
	"time"
)

// State is the process's position in its serve/drain lifecycle.
type State int32

const (
	Starting State = iota
	Serving
	Draining
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Serving:
		return "serving"
	case Draining:
		return "draining"
	default:
		return "unknown"
	}
}

// Tracker holds the lifecycle state shared by the health handler and the shutdown path.
// Safe for concurrent use.
type Tracker struct {
	state   atomic.Int32
	started time.Time
}

// NewTracker returns a Tracker in the Starting state.
func NewTracker() *Tracker {
	return &Tracker{started: time.Now()}
}

// MarkServing records that the listener is accepting traffic. No-op once draining.
func (t *Tracker) MarkServing() {
	t.state.CompareAndSwap(int32(Starting), int32(Serving))
}

// BeginDrain moves to Draining. Call when SIGTERM/SIGINT is received; health then answers 503.
func (t *Tracker) BeginDrain() {
	t.state.Store(int32(Draining))
}

func (t *Tracker) State() State {
	return State(t.state.Load())
}

// Ready reports whether the process should receive new traffic.
func (t *Tracker) Ready() bool {
	return t.State() == Serving
}

// Uptime is the time since the Tracker was created.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.started)
}
