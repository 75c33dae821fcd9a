// Package ratelimit provides a Throttle for bounding KVS/DSTORE calls to a
// configured rate; no adapter in this module is wrapped with one. It wraps
// golang.org/x/time/rate the way the teacher's internal/ratelimit
// package wraps a token-bucket Throttle around GCS object fetches.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttle hands out permission to proceed at a bounded rate.
type Throttle interface {
	// Wait blocks until tokens may be spent, or ctx is done.
	Wait(ctx context.Context, tokens uint64) error
}

// TokenBucketThrottle is a Throttle backed by golang.org/x/time/rate.
type TokenBucketThrottle struct {
	limiter *rate.Limiter
}

// NewTokenBucketThrottle builds a Throttle admitting opsPerSecond tokens
// per second, with room for a burst of up to burst tokens. opsPerSecond <=
// 0 disables throttling entirely (spec ambient stack: rate limiting is
// opt-in infrastructure, not a required control).
func NewTokenBucketThrottle(opsPerSecond float64, burst int) *TokenBucketThrottle {
	if opsPerSecond <= 0 {
		return &TokenBucketThrottle{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &TokenBucketThrottle{limiter: rate.NewLimiter(rate.Limit(opsPerSecond), burst)}
}

// Wait blocks until tokens are available, respecting ctx cancellation.
func (t *TokenBucketThrottle) Wait(ctx context.Context, tokens uint64) error {
	if tokens == 0 {
		return nil
	}
	if tokens > uint64(t.limiter.Burst()) && t.limiter.Burst() > 0 {
		return fmt.Errorf("ratelimit: requested %d tokens exceeds burst capacity %d", tokens, t.limiter.Burst())
	}
	return t.limiter.WaitN(ctx, int(tokens))
}

// ChooseLimiterCapacity picks a burst size given an expected average
// request size (in tokens) and how many requests should be admissible in
// one burst before the limiter starts smoothing — mirroring the teacher's
// ChooseLimiterCapacity heuristic for translating a byte-oriented
// workload into a sane token-bucket capacity.
func ChooseLimiterCapacity(avgTokensPerOp float64, opsPerBurst int) int {
	capacity := int(avgTokensPerOp * float64(opsPerBurst))
	if capacity < 1 {
		capacity = 1
	}
	return capacity
}
