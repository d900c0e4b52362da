package pipeline

import (
	"context"
	"sync"
)

// GateTransition describes what a single flow gate update did.
type GateTransition int

const (
	// GateUnchanged means the update left the gate in its current state.
	GateUnchanged GateTransition = iota
	// GateClosed means the update paused the producer.
	GateClosed
	// GateOpened means the update resumed the producer.
	GateOpened
)

func (t GateTransition) String() string {
	switch t {
	case GateClosed:
		return "closed"
	case GateOpened:
		return "opened"
	default:
		return "unchanged"
	}
}

// GateEvent is reported to a gate observer on every transition.
type GateEvent struct {
	Transition GateTransition
	// QueueLen is the work queue length observed by the transformer that caused the transition.
	QueueLen int
	High     int
	Low      int
}

// flowGate is a binary open/closed signal with hysteresis consulted by the producer
// before every emit and updated by transformers after every pull.
//
// While the gate is open, ready is a closed channel; closing the gate swaps in a fresh
// channel and reopening it closes that channel, waking every waiter at once. A waiter
// captures ready under the lock, so a reopen that happens before it starts waiting is
// never missed.
type flowGate struct {
	mu    sync.Mutex
	open  bool
	ready chan struct{}

	high int
	low  int

	onPause  func()
	observer func(GateEvent)
}

func newFlowGate(high, low int, onPause func(), observer func(GateEvent)) *flowGate {
	ready := make(chan struct{})
	close(ready)
	return &flowGate{
		open:     true,
		ready:    ready,
		high:     high,
		low:      low,
		onPause:  onPause,
		observer: observer,
	}
}

// Wait returns once the gate is open. It does not consume anything.
func (g *flowGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ready := g.ready
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	default:
	}

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return cancelled(ctx.Err())
	}
}

// Update applies the hysteresis rule to the observed queue length.
// Both comparisons, the transition and the pause accounting happen in one critical section.
func (g *flowGate) Update(queueLen int) GateTransition {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.apply(queueLen)
}

// Observe is Update with the queue length sampled inside the critical section.
// Transformers use it so a length read before a concurrent drain can never close the
// gate after the last pull, which would leave the producer waiting forever.
func (g *flowGate) Observe(queueLen func() int) GateTransition {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.apply(queueLen())
}

// apply reports a reopen to the observer before waking waiters, so no emit that follows
// a reopen can be observed ahead of it.
func (g *flowGate) apply(queueLen int) GateTransition {
	switch {
	case g.open && queueLen >= g.high:
		g.open = false
		g.ready = make(chan struct{})
		if g.onPause != nil {
			g.onPause()
		}
		g.notify(GateClosed, queueLen)
		return GateClosed
	case !g.open && queueLen <= g.low:
		g.open = true
		g.notify(GateOpened, queueLen)
		close(g.ready)
		return GateOpened
	default:
		return GateUnchanged
	}
}

func (g *flowGate) notify(tr GateTransition, queueLen int) {
	if g.observer != nil {
		g.observer(GateEvent{Transition: tr, QueueLen: queueLen, High: g.high, Low: g.low})
	}
}

// IsOpen reports the current gate state.
func (g *flowGate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}
