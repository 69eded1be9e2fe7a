package ratelimit

import (
	"context"

	"github.com/scjn/scjn-pipeline/pkg/resilience"
)

// TokenBucket adapts pkg/resilience's Limiter to the ratelimit.Limiter
// contract. It is the pipeline's default implementation.
type TokenBucket struct {
	l *resilience.Limiter
}

// NewTokenBucket builds a TokenBucket with the given rate (tokens/sec) and
// burst capacity. A rate of 0 uses DefaultRatePerSecond.
func NewTokenBucket(ratePerSecond float64, burst int) *TokenBucket {
	if ratePerSecond <= 0 {
		ratePerSecond = DefaultRatePerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &TokenBucket{l: resilience.NewLimiter(resilience.LimiterOpts{Rate: ratePerSecond, Burst: burst})}
}

var _ Limiter = (*TokenBucket)(nil)

// Wait blocks until a token is available or ctx is cancelled.
func (t *TokenBucket) Wait(ctx context.Context) error { return t.l.Wait(ctx) }

// Allow reports whether a token is available, consuming one if so.
func (t *TokenBucket) Allow() bool { return t.l.Allow() }
