package memorylimiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PaulFidika/fleetauth/clock"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

type bucketState struct {
	// request times in Unix ms, newest last
	timestamps []int64
}

// Limiter is an in-memory sliding-window rate limiter for single-node
// deployments and for when Redis is not configured.
type Limiter struct {
	mu      sync.Mutex
	clock   clock.Clock
	limits  map[string]Limit
	buckets map[string]*bucketState
}

// New constructs a limiter with per-bucket limits. The "default" entry, if
// present, applies to buckets without their own.
func New(limits map[string]Limit, c clock.Clock) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{
		clock:   clock.Or(c),
		limits:  limits,
		buckets: make(map[string]*bucketState),
	}
}

func (l *Limiter) get(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	if v, ok := l.limits["default"]; ok {
		return v
	}
	return Limit{Limit: 100, Window: time.Minute}
}

// AllowNamed records a hit for key in bucket and reports whether it fits in
// the window. Denied hits are not recorded.
func (l *Limiter) AllowNamed(ctx context.Context, bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}

	lim := l.get(bucket)
	nowMs := l.clock.Now().UnixMilli()
	windowStart := nowMs - lim.Window.Milliseconds()
	limitKey := key + ":" + bucket

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[limitKey]
	if !ok {
		b = &bucketState{}
		l.buckets[limitKey] = b
	}

	ts := b.timestamps
	pruneIdx := 0
	for pruneIdx < len(ts) && ts[pruneIdx] <= windowStart {
		pruneIdx++
	}
	ts = ts[pruneIdx:]

	if len(ts) >= lim.Limit {
		b.timestamps = ts
		return false, nil
	}
	b.timestamps = append(ts, nowMs)
	return true, nil
}

// Sweep drops buckets with no hits inside their window.
func (l *Limiter) Sweep() int {
	nowMs := l.clock.Now().UnixMilli()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, b := range l.buckets {
		bucket := k[len(k)-bucketSuffixLen(k):]
		lim := l.get(bucket)
		if n := len(b.timestamps); n == 0 || b.timestamps[n-1] <= nowMs-lim.Window.Milliseconds() {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}

// bucketSuffixLen is the length of the bucket name after the last colon.
func bucketSuffixLen(limitKey string) int {
	for i := len(limitKey) - 1; i >= 0; i-- {
		if limitKey[i] == ':' {
			return len(limitKey) - i - 1
		}
	}
	return len(limitKey)
}
