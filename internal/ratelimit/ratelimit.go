// Package ratelimit provides the rate limiter contract every outbound HTTP
// call in the pipeline routes through — the one process-wide shared
// resource in the system (spec §5/§9).
package ratelimit

import "context"

// Limiter is the contract shared by every implementation: a blocking
// acquire used by workers before each HTTP fetch.
type Limiter interface {
	// Wait blocks until a token is available or ctx is cancelled.
	Wait(ctx context.Context) error
	// Allow reports whether a token is available without blocking,
	// consuming one if so.
	Allow() bool
}

// DefaultRatePerSecond is the documented default acquisition rate.
const DefaultRatePerSecond = 0.5

// DefaultBurst is the documented default bucket capacity (no burst).
const DefaultBurst = 1
