package exchange

import (
	"math"
	"math/rand"
	"time"
)

// RandomSource provides random values for jitter calculation.
// Allows injection of deterministic sources for testing.
type RandomSource interface {
	// Float64 returns a random float64 in [0.0, 1.0).
	Float64() float64
}

type defaultRandomSource struct{}

func (defaultRandomSource) Float64() float64 {
	return rand.Float64()
}

// DefaultRandomSource is the default random source using math/rand.
var DefaultRandomSource RandomSource = defaultRandomSource{}

// Decision is what the retry policy chose after a device fault.
type Decision int

const (
	// DecisionRetry sends the request again after the backoff delay.
	DecisionRetry Decision = iota

	// DecisionNotRetryable surfaces the fault because its class is never retried.
	DecisionNotRetryable

	// DecisionExhausted surfaces the fault because the attempt cap was reached.
	DecisionExhausted
)

// String returns a human-readable name for the decision.
func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionNotRetryable:
		return "not retryable"
	case DecisionExhausted:
		return "attempts exhausted"
	default:
		return "unknown"
	}
}

// RetryPolicy decides whether and when a faulted request is sent again.
//
// The delay after failed attempt n (1-based) is:
//
//	Base * Multiplier^(n-1) * (1.0 + random(0,1) * Jitter)
//
// Only transient faults are retried, and at most MaxAttempts requests are sent
// in total.
type RetryPolicy struct {
	Base        time.Duration
	Multiplier  float64
	MaxAttempts int

	// Jitter scales the random spread added to each delay. Zero disables it.
	Jitter float64

	// Random is the jitter source. If nil, DefaultRandomSource is used.
	Random RandomSource
}

// DefaultRetryPolicy returns the default policy: 0.5 s base, doubling, three
// attempts, no jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:        DefaultRetryBase,
		Multiplier:  DefaultRetryMultiplier,
		MaxAttempts: DefaultRetryMaxAttempts,
	}
}

// Decide classifies what to do after attempt (1-based) failed with class.
func (p RetryPolicy) Decide(class FaultClass, attempt int) Decision {
	if class != FaultTransient {
		return DecisionNotRetryable
	}
	if attempt >= p.MaxAttempts {
		return DecisionExhausted
	}
	return DecisionRetry
}

// Delay computes the wait after failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	jitter := 0.0
	if p.Jitter > 0 {
		random := p.Random
		if random == nil {
			random = DefaultRandomSource
		}
		jitter = random.Float64() * p.Jitter
	}
	return time.Duration(float64(p.MinDelay(attempt)) * (1.0 + jitter))
}

// MinDelay computes the wait after failed attempt without jitter.
func (p RetryPolicy) MinDelay(attempt int) time.Duration {
	exponent := attempt - 1
	if exponent < 0 {
		exponent = 0
	}
	return time.Duration(float64(p.Base) * math.Pow(p.Multiplier, float64(exponent)))
}

// MaxDelay computes the wait after failed attempt with full jitter.
func (p RetryPolicy) MaxDelay(attempt int) time.Duration {
	return time.Duration(float64(p.MinDelay(attempt)) * (1.0 + p.Jitter))
}
