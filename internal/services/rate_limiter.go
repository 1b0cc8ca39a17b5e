package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"ride-pricing/internal/config"
	"ride-pricing/internal/logger"
	"ride-pricing/internal/redis"
)

// RateDecision - результат проверки лимита для клиента
type RateDecision struct {
	Allowed   bool       `json:"allowed"`
	Limit     int64      `json:"limit"`
	Used      int64      `json:"used"`
	Remaining int64      `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

// RateLimiter ограничивает число запросов оценки в фиксированном окне на клиента (IP).
// Счётчики живут в Redis, поэтому лимит общий для всех реплик сервиса.
type RateLimiter struct {
	counters rateCounters
	log      *logger.Logger
	enabled  bool
	limit    int64
	window   time.Duration
	prefix   string
	now      func() time.Time
}

type rateCounters interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// NewRateLimiter создаёт rate limiter. Без Redis или при выключенной настройке лимит не применяется.
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if redisClient == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{enabled: false, now: time.Now}
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &RateLimiter{
		counters: redisClient,
		log:      log,
		enabled:  true,
		limit:    int64(cfg.Requests),
		window:   time.Duration(cfg.WindowSeconds) * time.Second,
		prefix:   prefix,
		now:      time.Now,
	}
}

// Allow учитывает запрос клиента и сообщает, укладывается ли он в лимит окна.
func (r *RateLimiter) Allow(ctx context.Context, client string) (RateDecision, error) {
	if !r.enabled {
		return RateDecision{Allowed: true, Limit: r.limit, Remaining: r.limit}, nil
	}

	key := r.key(client)

	count, err := r.counters.Incr(ctx, key)
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limiter incr failed: %w", err)
	}

	// первый запрос открывает окно
	if count == 1 {
		if err := r.counters.Expire(ctx, key, r.window); err != nil {
			r.log.WithError(err).WithField("key", key).Warn("Failed to set rate limit ttl")
		}
	}

	ttl, err := r.counters.TTL(ctx, key)
	switch {
	case err != nil:
		r.log.WithError(err).WithField("key", key).Warn("Failed to get rate limit ttl")
		ttl = r.window
	case ttl <= 0:
		// счётчик без TTL никогда не сбросится, окно открывается заново
		if err := r.counters.Expire(ctx, key, r.window); err != nil {
			r.log.WithError(err).WithField("key", key).Warn("Failed to restore rate limit ttl")
		}
		ttl = r.window
	}
	resetAt := r.now().Add(ttl)

	return RateDecision{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Used:      count,
		Remaining: remainingOf(r.limit, count),
		ResetAt:   &resetAt,
	}, nil
}

// Usage возвращает состояние окна клиента, не расходуя лимит.
func (r *RateLimiter) Usage(ctx context.Context, client string) (RateDecision, error) {
	if !r.enabled {
		return RateDecision{Allowed: true, Limit: r.limit, Remaining: r.limit}, nil
	}

	key := r.key(client)
	count, err := r.counters.GetInt(ctx, key)
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return RateDecision{Allowed: true, Limit: r.limit, Remaining: r.limit}, nil
		}
		return RateDecision{}, fmt.Errorf("rate limiter usage failed: %w", err)
	}

	decision := RateDecision{
		Allowed:   count < r.limit,
		Limit:     r.limit,
		Used:      count,
		Remaining: remainingOf(r.limit, count),
	}

	ttl, err := r.counters.TTL(ctx, key)
	if err != nil {
		r.log.WithError(err).WithField("key", key).Warn("Failed to get rate limit ttl")
	} else if ttl > 0 {
		resetAt := r.now().Add(ttl)
		decision.ResetAt = &resetAt
	}

	return decision, nil
}

func (r *RateLimiter) key(client string) string {
	return redis.GenerateKey(r.prefix, strings.ReplaceAll(client, ":", "_"))
}

func remainingOf(limit, used int64) int64 {
	if used >= limit {
		return 0
	}
	return limit - used
}

// Limit возвращает лимит для текущего окна.
func (r *RateLimiter) Limit() int64 {
	return r.limit
}

// Enabled сообщает, включён ли rate limiting.
func (r *RateLimiter) Enabled() bool {
	return r.enabled
}

// ExtractClientIP получает IP из заголовков прокси или RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
