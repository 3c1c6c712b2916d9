package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/horizonauth/internal/cache"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter(cache.NewMemory("", time.Minute), 3, time.Hour)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "hit %d", i)
		assert.Equal(t, int64(3-i), res.Remaining)
		assert.Equal(t, int64(i), res.CurrentHits)
	}

	res, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Hour)

	// otra key tiene su propio contador
	res, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNew_PicksBackend(t *testing.T) {
	mem := cache.NewMemory("hz:", time.Minute)
	l := New(mem, 5, time.Minute)
	_, ok := l.(*MemoryLimiter)
	assert.True(t, ok)
}

func TestResult_RetryAfterFallsBackToWindow(t *testing.T) {
	res := result(4, 3, -1, 90*time.Second)
	assert.False(t, res.Allowed)
	assert.Equal(t, 90*time.Second, res.RetryAfter)
}
