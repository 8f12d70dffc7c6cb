package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiter(t *testing.T) {
	var disabled *HostLimiter
	assert.NoError(t, disabled.Wait(context.Background(), "example.com"))

	l := NewHostLimiter(1)
	require.NoError(t, l.Wait(context.Background(), "example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "EXAMPLE.com"))
	assert.NoError(t, l.Wait(context.Background(), "other.com"))
}

func TestLimiterDisabled(t *testing.T) {
	l, err := New(0, 0)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "example.com"))
	}

	var nilLimiter *Limiter
	assert.NoError(t, nilLimiter.Wait(context.Background(), "example.com"))
}

func TestLimiterGlobalBucket(t *testing.T) {
	l, err := New(1000, 0)
	require.NoError(t, err)
	require.NotNil(t, l.global)
	assert.NoError(t, l.Wait(context.Background(), "a.com"))
	assert.NoError(t, l.Wait(context.Background(), "b.com"))
}
