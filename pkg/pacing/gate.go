package pacing

import (
	"context"
	"sync"
	"time"
)

// Gate enforces a minimum interval between remote calls across the whole
// process. One Gate instance is shared by every component that makes remote
// calls; the interval is measured from the completion of the previous call,
// so callers pair Wait with Done, or use Do.
//
// The guarantee is per-process. Runs spread across several processes need
// an external shared limiter instead.
type Gate struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration

	// last is the previous call's completion time, or its start time
	// while the call is still in flight.
	last time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateClock substitutes the clock, for tests.
func WithGateClock(c Clock) GateOption {
	return func(g *Gate) { g.clock = c }
}

// NewGate creates a gate with the given minimum interval between calls.
// A non-positive interval disables the gate.
func NewGate(interval time.Duration, opts ...GateOption) *Gate {
	g := &Gate{
		clock:    SystemClock(),
		interval: interval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wait blocks until at least the minimum interval has elapsed since the
// previous call completed, then reserves the slot for the caller. When two
// runs share the gate the second caller keeps waiting until its own slot
// clears.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil || g.interval <= 0 {
		return ctx.Err()
	}
	for {
		g.mu.Lock()
		now := g.clock.Now()
		if g.last.IsZero() || !now.Before(g.last.Add(g.interval)) {
			g.last = now
			g.mu.Unlock()
			return nil
		}
		wait := g.last.Add(g.interval).Sub(now)
		g.mu.Unlock()

		if err := g.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Done records the completion of a call, restarting the interval from now.
func (g *Gate) Done() {
	if g == nil || g.interval <= 0 {
		return
	}
	g.mu.Lock()
	g.last = g.clock.Now()
	g.mu.Unlock()
}

// Do runs fn behind the gate: wait for a slot, run, record completion.
func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := g.Wait(ctx); err != nil {
		return err
	}
	defer g.Done()
	return fn(ctx)
}
