package pacing

import (
	"math/rand"
	"sync"
	"time"

	"github.com/seekmed/medharvest/pkg/errors"
)

// Class is the backoff class of a failed remote call. Each class has its
// own wait curve because the endpoint signals mean different things: a 429
// asks for restraint, a gateway timeout means the service is drowning, a
// connection reset usually clears quickly.
type Class int

// Backoff classes.
const (
	// ClassOther covers retryable failures with no specific signal.
	ClassOther Class = iota
	ClassRateLimited
	ClassOverloaded
	ClassNetwork
)

// String implements fmt.Stringer for log fields.
func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassOverloaded:
		return "overloaded"
	case ClassNetwork:
		return "network"
	default:
		return "other"
	}
}

// ClassOf maps a classified error to its backoff class.
func ClassOf(err error) Class {
	switch {
	case errors.IsRateLimited(err):
		return ClassRateLimited
	case errors.IsOverloaded(err):
		return ClassOverloaded
	case errors.IsNetworkTransient(err):
		return ClassNetwork
	default:
		return ClassOther
	}
}

// Default policy values, matching the endpoint's published etiquette.
const (
	DefaultRetryBase     = 5 * time.Second
	DefaultRateLimitBase = 10 * time.Second
	DefaultOverloadBase  = 30 * time.Second
	DefaultNetworkBase   = 5 * time.Second
	DefaultMaxWait       = 300 * time.Second
	DefaultMaxRetries    = 3
	DefaultJitter        = 0.2
)

// Policy computes how long to wait before retrying a failed call, by
// backoff class and 0-based attempt number:
//
//	rate-limited   rateLimitBase * 3^attempt
//	overloaded     overloadBase  * 3^attempt
//	network        networkBase   * 2^attempt
//	other          (attempt+1)   * retryBase
//
// Every wait is jittered by a fractional amount and capped at maxWait.
type Policy struct {
	retryBase     time.Duration
	rateLimitBase time.Duration
	overloadBase  time.Duration
	networkBase   time.Duration
	maxWait       time.Duration
	maxRetries    int
	jitter        float64

	mu  sync.Mutex
	rng *rand.Rand
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithRetryBase sets the linear base for unclassified retryable failures.
func WithRetryBase(d time.Duration) PolicyOption {
	return func(p *Policy) { p.retryBase = d }
}

// WithRateLimitBase sets the exponential base for rate-limit responses.
func WithRateLimitBase(d time.Duration) PolicyOption {
	return func(p *Policy) { p.rateLimitBase = d }
}

// WithOverloadBase sets the exponential base for overload responses.
func WithOverloadBase(d time.Duration) PolicyOption {
	return func(p *Policy) { p.overloadBase = d }
}

// WithNetworkBase sets the exponential base for network failures.
func WithNetworkBase(d time.Duration) PolicyOption {
	return func(p *Policy) { p.networkBase = d }
}

// WithMaxWait caps every computed wait.
func WithMaxWait(d time.Duration) PolicyOption {
	return func(p *Policy) { p.maxWait = d }
}

// WithMaxRetries sets the retry budget per call.
func WithMaxRetries(n int) PolicyOption {
	return func(p *Policy) { p.maxRetries = n }
}

// WithJitter sets the fractional jitter (0 disables it, for tests that
// assert exact waits).
func WithJitter(frac float64) PolicyOption {
	return func(p *Policy) { p.jitter = frac }
}

// WithRand substitutes the jitter's random source, for deterministic tests.
func WithRand(rng *rand.Rand) PolicyOption {
	return func(p *Policy) { p.rng = rng }
}

// NewPolicy creates a backoff policy with the given options applied over
// the defaults.
func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{
		retryBase:     DefaultRetryBase,
		rateLimitBase: DefaultRateLimitBase,
		overloadBase:  DefaultOverloadBase,
		networkBase:   DefaultNetworkBase,
		maxWait:       DefaultMaxWait,
		maxRetries:    DefaultMaxRetries,
		jitter:        DefaultJitter,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxRetries returns the retry budget per call.
func (p *Policy) MaxRetries() int { return p.maxRetries }

// MaxWait returns the wait cap.
func (p *Policy) MaxWait() time.Duration { return p.maxWait }

// Wait returns the jittered, capped wait before retry number attempt for
// the given class.
func (p *Policy) Wait(class Class, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	wait := p.baseWait(class, attempt)
	if p.jitter > 0 {
		wait = time.Duration(float64(wait) * p.jitterFactor())
	}
	if wait > p.maxWait {
		wait = p.maxWait
	}
	if wait < 0 {
		wait = p.maxWait
	}
	return wait
}

// WaitFor classifies err, computes the wait, and honors a server
// Retry-After hint when it asks for more than the computed wait. The cap
// still applies; an endpoint asking for an hour gets maxWait.
func (p *Policy) WaitFor(err error, attempt int) time.Duration {
	wait := p.Wait(ClassOf(err), attempt)
	var apiErr *errors.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > wait {
		wait = min(apiErr.RetryAfter, p.maxWait)
	}
	return wait
}

// baseWait is the deterministic pre-jitter wait.
func (p *Policy) baseWait(class Class, attempt int) time.Duration {
	switch class {
	case ClassRateLimited:
		return expWait(p.rateLimitBase, 3, attempt, p.maxWait)
	case ClassOverloaded:
		return expWait(p.overloadBase, 3, attempt, p.maxWait)
	case ClassNetwork:
		return expWait(p.networkBase, 2, attempt, p.maxWait)
	default:
		return min(time.Duration(attempt+1)*p.retryBase, p.maxWait)
	}
}

// jitterFactor returns a multiplier in [1-jitter, 1+jitter].
func (p *Policy) jitterFactor() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return 1 + p.jitter*(2*p.rng.Float64()-1)
}

// expWait computes base * factor^attempt, capping at maxWait before the
// multiplication can overflow.
func expWait(base time.Duration, factor int64, attempt int, maxWait time.Duration) time.Duration {
	wait := base
	for i := 0; i < attempt; i++ {
		if wait >= maxWait {
			return maxWait
		}
		wait *= time.Duration(factor)
		if wait <= 0 {
			return maxWait
		}
	}
	return min(wait, maxWait)
}
