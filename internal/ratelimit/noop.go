package ratelimit

import "context"

// NoOp never blocks and never denies — used in tests that exercise
// workers without wanting real pacing.
type NoOp struct{}

var _ Limiter = NoOp{}

// Wait returns nil immediately.
func (NoOp) Wait(ctx context.Context) error { return nil }

// Allow always returns true.
func (NoOp) Allow() bool { return true }
