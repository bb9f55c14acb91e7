package ratelimit

import "context"

// RateLimiter bounds outbound delivery throughput per target host.
type RateLimiter interface {
	Allow(ctx context.Context, host string) (bool, error)
	Wait(ctx context.Context, host string) error
}

// NoopLimiter never limits. Used with the in-memory store where no shared
// limiter backend exists.
type NoopLimiter struct{}

var _ RateLimiter = NoopLimiter{}

func (NoopLimiter) Allow(ctx context.Context, host string) (bool, error) { return true, nil }

func (NoopLimiter) Wait(ctx context.Context, host string) error { return nil }
