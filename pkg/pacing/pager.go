package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pager spaces successive page or chunk requests at a fixed interval. It
// wraps a token-bucket limiter with burst 1, so the first call proceeds
// immediately and each later call waits out the remainder of the interval.
//
// A nil or zero-interval Pager never waits, which keeps callers free of
// conditionals when pacing is disabled.
type Pager struct {
	limiter *rate.Limiter
}

// NewPager creates a pager with the given minimum interval between calls.
// A non-positive interval disables pacing.
func NewPager(interval time.Duration) *Pager {
	if interval <= 0 {
		return &Pager{}
	}
	return &Pager{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next request may proceed, or until ctx is done.
func (p *Pager) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
