package redislimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulFidika/fleetauth/authtest"
	redislimiter "github.com/PaulFidika/fleetauth/ratelimit/redis"
)

func TestRedisLimiter(t *testing.T) {
	rdb, prefix := authtest.Redis(t)
	l := redislimiter.New(rdb, prefix, map[string]redislimiter.Limit{"auth_login": {Limit: 2, Window: time.Minute}})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.AllowNamed(ctx, "auth_login", "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.AllowNamed(ctx, "auth_login", "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, ok)

	// denied hits are rolled back
	n, err := rdb.ZCard(ctx, prefix+"auth_login:203.0.113.7").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	ok, err = l.AllowNamed(ctx, "auth_login", "198.51.100.2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNilLimiterAllows(t *testing.T) {
	var l *redislimiter.Limiter
	ok, err := l.AllowNamed(context.Background(), "auth_login", "k")
	assert.NoError(t, err)
	assert.True(t, ok)
}
