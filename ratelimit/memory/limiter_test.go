package memorylimiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulFidika/fleetauth/clock"
)

func TestSlidingWindow(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC))
	l := New(map[string]Limit{"auth_login": {Limit: 3, Window: time.Minute}}, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.AllowNamed(ctx, "auth_login", "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, ok)
		clk.Advance(10 * time.Second)
	}
	ok, _ := l.AllowNamed(ctx, "auth_login", "203.0.113.7")
	assert.False(t, ok)

	ok, _ = l.AllowNamed(ctx, "auth_login", "198.51.100.2")
	assert.True(t, ok, "keys are independent")

	// the first hit leaves the window after a minute
	clk.Advance(31 * time.Second)
	ok, _ = l.AllowNamed(ctx, "auth_login", "203.0.113.7")
	assert.True(t, ok)
}

func TestDefaultBucketAndValidation(t *testing.T) {
	l := New(map[string]Limit{"default": {Limit: 1, Window: time.Minute}}, nil)
	ctx := context.Background()

	ok, err := l.AllowNamed(ctx, "admin", "k")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = l.AllowNamed(ctx, "admin", "k")
	assert.False(t, ok)

	_, err = l.AllowNamed(ctx, "", "k")
	assert.Error(t, err)

	var nilLimiter *Limiter
	ok, err = nilLimiter.AllowNamed(ctx, "admin", "k")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentHitsRespectLimit(t *testing.T) {
	l := New(map[string]Limit{"auth_login": {Limit: 10, Window: time.Hour}}, nil)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.AllowNamed(ctx, "auth_login", "k"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestSweep(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC))
	l := New(map[string]Limit{"auth_login": {Limit: 5, Window: time.Minute}}, clk)
	ctx := context.Background()
	_, _ = l.AllowNamed(ctx, "auth_login", "a")
	_, _ = l.AllowNamed(ctx, "auth_login", "b")

	assert.Equal(t, 0, l.Sweep())
	clk.Advance(2 * time.Minute)
	assert.Equal(t, 2, l.Sweep())
}
