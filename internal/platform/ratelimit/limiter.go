// Package ratelimit counts requests per (purpose, identity) inside a fixed
// window. The shared counter lives in Redis so every API instance sees the
// same count; an in-process counter takes over while Redis is unreachable.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const moduleName = "internal/platform/ratelimit"

const (
	PurposeAdminLogin  = "admin_login"
	PurposeTokenRedeem = "token_redeem"
	PurposeVote        = "vote"
)

var ErrUnknownPurpose = errors.New("ratelimit: unknown purpose")

type Rule struct {
	Max    int
	Window time.Duration
}

type Decision struct {
	Allowed    bool
	Count      int64
	Remaining  int64
	RetryAfter time.Duration
}

// Counter increments key and reports the new count together with the time
// left in the window. The window starts on the first increment.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type Limiter struct {
	primary  Counter
	fallback Counter
	rules    map[string]Rule
	logger   *slog.Logger
}

// NewLimiter builds a limiter over primary. primary may be nil, in which case
// only the fallback counts.
func NewLimiter(primary Counter, fallback Counter, rules map[string]Rule, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	copied := make(map[string]Rule, len(rules))
	for purpose, rule := range rules {
		copied[purpose] = rule
	}
	return &Limiter{
		primary:  primary,
		fallback: fallback,
		rules:    copied,
		logger:   logger,
	}
}

func (l *Limiter) Rule(purpose string) (Rule, bool) {
	rule, ok := l.rules[purpose]
	return rule, ok
}

// Allow counts one request for identity under purpose.
func (l *Limiter) Allow(ctx context.Context, purpose string, identity string) (Decision, error) {
	rule, ok := l.rules[purpose]
	if !ok || rule.Max <= 0 || rule.Window <= 0 {
		return Decision{}, ErrUnknownPurpose
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = "anonymous"
	}
	key := purpose + ":" + identity

	count, ttl, err := l.increment(ctx, key, rule.Window)
	if err != nil {
		return Decision{}, err
	}
	decision := Decision{
		Allowed:   count <= int64(rule.Max),
		Count:     count,
		Remaining: int64(rule.Max) - count,
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	if !decision.Allowed {
		decision.RetryAfter = ttl
		if decision.RetryAfter <= 0 || decision.RetryAfter > rule.Window {
			decision.RetryAfter = rule.Window
		}
		l.logger.Warn("rate limit exceeded",
			"event", "rate_limit_exceeded",
			"module", moduleName,
			"layer", "platform",
			"purpose", purpose,
			"count", count,
			"retry_after_ms", decision.RetryAfter.Milliseconds(),
		)
	}
	return decision, nil
}

func (l *Limiter) increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if l.primary != nil {
		count, ttl, err := l.primary.Increment(ctx, key, window)
		if err == nil {
			return count, ttl, nil
		}
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		if l.fallback == nil {
			return 0, 0, err
		}
		l.logger.Warn("shared rate limit counter unavailable, using local fallback",
			"event", "rate_limit_fallback",
			"module", moduleName,
			"layer", "platform",
			"error", err.Error(),
		)
	}
	if l.fallback == nil {
		return 0, 0, errors.New("ratelimit: no counter configured")
	}
	return l.fallback.Increment(ctx, key, window)
}
