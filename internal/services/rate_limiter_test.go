package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ride-pricing/internal/config"
	"ride-pricing/internal/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRateLimiter(t *testing.T, requests int) *RateLimiter {
	rdb, _ := newTestRedis(t)
	return NewRateLimiter(rdb, newTestLogger(), &config.RateLimitConfig{
		Enabled:       true,
		Requests:      requests,
		WindowSeconds: 60,
		KeyPrefix:     "test",
	})
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := newRedisRateLimiter(t, 2)
	ctx := context.Background()

	d, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Remaining)
	assert.NotNil(t, d.ResetAt)

	d, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)

	d, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed, "third request should be blocked")
	assert.Equal(t, int64(0), d.Remaining)
	assert.Equal(t, int64(3), d.Used)

	d, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "other client must have its own window")
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	rdb, mr := newTestRedis(t)
	limiter := NewRateLimiter(rdb, newTestLogger(), &config.RateLimitConfig{Enabled: true, Requests: 1, WindowSeconds: 1})
	ctx := context.Background()

	_, _ = limiter.Allow(ctx, "ip")
	d, _ := limiter.Allow(ctx, "ip")
	assert.False(t, d.Allowed)

	mr.FastForward(2 * time.Second)
	d, err := limiter.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "expected new window after expiry")
	assert.True(t, mr.Exists("ratelimit:ip"), "expected default key prefix")
}

// flakyExpireCounters теряет первые вызовы Expire
type flakyExpireCounters struct {
	*redis.Client
	failures int
}

func (c *flakyExpireCounters) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if c.failures > 0 {
		c.failures--
		return errors.New("connection reset")
	}
	return c.Client.Expire(ctx, key, ttl)
}

func TestRateLimiter_RestoresLostWindowTTL(t *testing.T) {
	rdb, mr := newTestRedis(t)
	limiter := NewRateLimiter(rdb, newTestLogger(), &config.RateLimitConfig{Enabled: true, Requests: 1, WindowSeconds: 60, KeyPrefix: "rl"})
	limiter.counters = &flakyExpireCounters{Client: rdb, failures: 1}
	ctx := context.Background()

	d, err := limiter.Allow(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, time.Minute, mr.TTL("rl:10.0.0.9"))

	d, err = limiter.Allow(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	mr.FastForward(61 * time.Second)
	d, err = limiter.Allow(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "client must not stay blocked after the window")
}

func TestRateLimiter_CounterWithoutTTL(t *testing.T) {
	rdb, mr := newTestRedis(t)
	limiter := NewRateLimiter(rdb, newTestLogger(), &config.RateLimitConfig{Enabled: true, Requests: 3, WindowSeconds: 30, KeyPrefix: "rl"})
	require.NoError(t, mr.Set("rl:ip", "7"))

	d, err := limiter.Allow(context.Background(), "ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, mr.TTL("rl:ip"))
}

func TestRateLimiter_NewDisabled(t *testing.T) {
	assert.False(t, NewRateLimiter(nil, nil, nil).Enabled(), "expected limiter disabled without cfg/redis")

	limiter := NewRateLimiter(nil, nil, &config.RateLimitConfig{Enabled: false})
	assert.False(t, limiter.Enabled())

	d, err := limiter.Allow(context.Background(), "ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "disabled limiter must allow")
}

type failingCounters struct{}

func (failingCounters) Incr(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("redis down")
}
func (failingCounters) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }
func (failingCounters) TTL(ctx context.Context, key string) (time.Duration, error)   { return 0, nil }
func (failingCounters) GetInt(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("redis down")
}

func TestRateLimiter_CounterFailure(t *testing.T) {
	limiter := &RateLimiter{counters: failingCounters{}, log: newTestLogger(), enabled: true, limit: 5, window: time.Minute, prefix: "rl", now: time.Now}

	_, err := limiter.Allow(context.Background(), "ip")
	assert.Error(t, err)
	_, err = limiter.Usage(context.Background(), "ip")
	assert.Error(t, err)
}

func TestRateLimiter_UsageAndLimit(t *testing.T) {
	limiter := newRedisRateLimiter(t, 3)
	ctx := context.Background()

	d, err := limiter.Usage(ctx, "ip1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), d.Used)
	assert.Equal(t, int64(3), d.Remaining)
	assert.Nil(t, d.ResetAt)

	_, _ = limiter.Allow(ctx, "ip1")
	_, _ = limiter.Allow(ctx, "ip1")

	d, err = limiter.Usage(ctx, "ip1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(2), d.Used)
	assert.Equal(t, int64(1), d.Remaining)
	assert.NotNil(t, d.ResetAt)

	assert.Equal(t, int64(3), limiter.Limit())
	assert.True(t, limiter.Enabled())
}

func TestRateLimiter_KeyEscapesColons(t *testing.T) {
	limiter := &RateLimiter{prefix: "rl"}
	assert.Equal(t, redis.GenerateKey("rl", "__1"), limiter.key("::1"))
}

func TestExtractClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "10.0.0.1")
	assert.Equal(t, "10.0.0.1", ExtractClientIP(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.2, 10.0.0.3")
	assert.Equal(t, "10.0.0.2", ExtractClientIP(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.0.1:1234"
	assert.Equal(t, "192.168.0.1", ExtractClientIP(r))
}
