package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/pixel-quest/pkg/story"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var backendNames = []string{"memory", "redis"}

// limiters returns both backends driven by the same fake clock.
func limiters(t *testing.T, clock *fakeClock) map[string]Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Limiter{
		"memory": NewMemoryLimiter(DefaultPolicies()).WithClock(clock.Now),
		"redis":  NewRedisLimiter(client, DefaultPolicies()).WithClock(clock.Now),
	}
}

func TestLimiter_StoryQuota(t *testing.T) {
	for _, name := range backendNames {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l := limiters(t, clock)[name]
			ctx := context.Background()

			for i := range 20 {
				ok, err := l.Allow(ctx, "1.2.3.4", BucketStory)
				require.NoError(t, err)
				require.True(t, ok, "request %d should be admitted", i+1)
				clock.Advance(time.Second)
			}

			ok, err := l.Allow(ctx, "1.2.3.4", BucketStory)
			require.NoError(t, err)
			assert.False(t, ok, "21st request inside the window must be rejected")

			// Another client has its own quota.
			ok, err = l.Allow(ctx, "5.6.7.8", BucketStory)
			require.NoError(t, err)
			assert.True(t, ok)

			// The first admission was 20s ago; 40s more frees exactly one slot.
			clock.Advance(40 * time.Second)
			ok, _ = l.Allow(ctx, "1.2.3.4", BucketStory)
			assert.True(t, ok)
			ok, _ = l.Allow(ctx, "1.2.3.4", BucketStory)
			assert.False(t, ok)
		})
	}
}

func TestLimiter_BucketsAreIndependent(t *testing.T) {
	for _, name := range backendNames {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l := limiters(t, clock)[name]
			ctx := context.Background()

			for range 4 {
				ok, err := l.Allow(ctx, "c", BucketImage)
				require.NoError(t, err)
				require.True(t, ok)
			}
			ok, _ := l.Allow(ctx, "c", BucketImage)
			assert.False(t, ok, "fifth image must be rejected")

			ok, _ = l.Allow(ctx, "c", BucketStory)
			assert.True(t, ok, "story bucket is unaffected by image usage")
		})
	}
}

func TestLimiter_NoBurstAcrossWindowBoundary(t *testing.T) {
	for _, name := range backendNames {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l := limiters(t, clock)[name]
			ctx := context.Background()

			// Four images at the end of one minute...
			clock.Advance(59 * time.Second)
			for range 4 {
				ok, _ := l.Allow(ctx, "c", BucketImage)
				require.True(t, ok)
			}
			// ...and none at the start of the next, since the last 60s are full.
			clock.Advance(2 * time.Second)
			ok, _ := l.Allow(ctx, "c", BucketImage)
			assert.False(t, ok)
		})
	}
}

func TestLimiter_UnknownBucket(t *testing.T) {
	for name, l := range limiters(t, newFakeClock()) {
		t.Run(name, func(t *testing.T) {
			_, err := l.Allow(context.Background(), "c", "video")
			assert.Error(t, err)
		})
	}
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := NewMemoryLimiter(DefaultPolicies())
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Allow(ctx, "c", BucketStory)
			if err == nil && ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, admitted)
}

func TestMemoryLimiter_SweepsIdleClients(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(DefaultPolicies()).WithClock(clock.Now)
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c"} {
		_, _ = l.Allow(ctx, c, BucketStory)
	}
	assert.Equal(t, 3, l.Clients())

	clock.Advance(2 * time.Minute)
	_, _ = l.Allow(ctx, "d", BucketStory)
	assert.Equal(t, 1, l.Clients())
}

func TestAdmit(t *testing.T) {
	l := NewMemoryLimiter(map[Bucket]Policy{BucketStory: {Limit: 1, Window: time.Minute}})
	ctx := context.Background()

	require.NoError(t, Admit(ctx, l, "c", BucketStory))
	err := Admit(ctx, l, "c", BucketStory)
	assert.True(t, errors.Is(err, story.ErrRateLimitExceeded))

	assert.NoError(t, Admit(ctx, Unlimited{}, "c", BucketImage))
}
