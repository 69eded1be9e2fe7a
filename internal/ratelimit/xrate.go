package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// XRateLimiter adapts golang.org/x/time/rate to the ratelimit.Limiter
// contract — an alternative backend to TokenBucket satisfying the same
// interface. The CLI wiring always uses TokenBucket; no flag selects it.
type XRateLimiter struct {
	l *rate.Limiter
}

// NewXRateLimiter builds an XRateLimiter with the given rate (tokens/sec)
// and burst capacity.
func NewXRateLimiter(ratePerSecond float64, burst int) *XRateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = DefaultRatePerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &XRateLimiter{l: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

var _ Limiter = (*XRateLimiter)(nil)

// Wait blocks until a token is available or ctx is cancelled.
func (x *XRateLimiter) Wait(ctx context.Context) error { return x.l.Wait(ctx) }

// Allow reports whether a token is available, consuming one if so.
func (x *XRateLimiter) Allow() bool { return x.l.Allow() }
