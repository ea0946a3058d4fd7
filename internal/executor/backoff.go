package executor

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffPolicy is the tunable retry backoff curve (spec.md §4.8.1 default:
// base 60s, factor 2, cap 1h, ±20% jitter — OPEN QUESTION 1 in SPEC_FULL.md
// adopts this as the default, exposed as a tunable rather than hardcoded).
type BackoffPolicy struct {
	Base   time.Duration
	Factor float64
	Cap    time.Duration
	Jitter float64
}

// DefaultBackoffPolicy returns spec.md's literal default curve.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:   60 * time.Second,
		Factor: 2,
		Cap:    time.Hour,
		Jitter: 0.2,
	}
}

// Delay computes the exponential backoff delay with jitter for the given
// retry attempt (1-indexed), grounded on the teacher's calculateBackoff.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = 60 * time.Second
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 2
	}
	cap := p.Cap
	if cap <= 0 {
		cap = time.Hour
	}

	backoff := float64(base) * math.Pow(factor, float64(attempt-1))
	if backoff > float64(cap) {
		backoff = float64(cap)
	}

	jitter := (rand.Float64() - 0.5) * 2 * p.Jitter * backoff
	backoff += jitter
	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}
