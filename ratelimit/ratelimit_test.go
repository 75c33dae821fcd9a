package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledWhenRateIsZero(t *testing.T) {
	ctx := context.Background()
	th := NewTokenBucketThrottle(0, 0)
	require.NoError(t, th.Wait(ctx, 1_000_000))
}

func TestWaitAdmitsWithinBurst(t *testing.T) {
	ctx := context.Background()
	th := NewTokenBucketThrottle(10, 5)
	require.NoError(t, th.Wait(ctx, 5))
}

func TestWaitRejectsOverBurstCapacity(t *testing.T) {
	ctx := context.Background()
	th := NewTokenBucketThrottle(10, 5)
	err := th.Wait(ctx, 6)
	assert.Error(t, err)
}

func TestChooseLimiterCapacityFloorsAtOne(t *testing.T) {
	assert.Equal(t, 1, ChooseLimiterCapacity(0, 0))
	assert.Equal(t, 20, ChooseLimiterCapacity(2, 10))
}
