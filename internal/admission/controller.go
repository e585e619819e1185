package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Route names one throttled endpoint class.
type Route string

const (
	RouteLogin              Route = "login"
	RouteRegister           Route = "register"
	RoutePasswordReset      Route = "reset"
	RouteVerificationResend Route = "resend"
	RouteRefresh            Route = "refresh"
)

var (
	ErrLimited     = errors.New("admission limit exceeded")
	ErrUnavailable = errors.New("admission store unavailable")
)

// LimitExceededError carries the remaining window so callers can surface a
// Retry-After hint. It unwraps to [ErrLimited].
type LimitExceededError struct {
	Route      Route
	RetryAfter time.Duration
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("admission limit exceeded on %s, retry after %s", e.Route, e.RetryAfter)
}

func (e *LimitExceededError) Unwrap() error { return ErrLimited }

// Window is one fixed-window budget: at most Max requests per Per.
type Window struct {
	Max int
	Per time.Duration
}

// Config maps each route to its window. A route with a zero window is
// unthrottled.
type Config struct {
	KeyPrefix string
	Windows   map[Route]Window
}

// Controller enforces fixed-window admission using Redis counters. Safe for
// concurrent use.
type Controller struct {
	redis     redis.UniversalClient
	keyPrefix string
	windows   map[Route]Window
}

func New(redisClient redis.UniversalClient, cfg Config) *Controller {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "adm"
	}
	windows := make(map[Route]Window, len(cfg.Windows))
	for route, w := range cfg.Windows {
		if w.Max > 0 && w.Per > 0 {
			windows[route] = w
		}
	}
	return &Controller{
		redis:     redisClient,
		keyPrefix: prefix,
		windows:   windows,
	}
}

func (c *Controller) key(route Route, identity string) string {
	return fmt.Sprintf("%s:%s:%s", c.keyPrefix, route, identity)
}

// Allow consumes one unit of the identity's budget for route. Requests over
// budget return a [LimitExceededError]; an unreachable backend returns
// [ErrUnavailable] so the caller can fail closed.
func (c *Controller) Allow(ctx context.Context, route Route, identity string) error {
	if c == nil || identity == "" {
		return nil
	}
	window, ok := c.windows[route]
	if !ok {
		return nil
	}

	key := c.key(route, identity)
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := c.redis.Expire(ctx, key, window.Per).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count > int64(window.Max) {
		return &LimitExceededError{
			Route:      route,
			RetryAfter: c.retryAfter(ctx, key, window.Per),
		}
	}
	return nil
}

// retryAfter reads the key's remaining TTL. Failures fall back to the full
// window; the hint is advisory.
func (c *Controller) retryAfter(ctx context.Context, key string, per time.Duration) time.Duration {
	ttl, err := c.redis.PTTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return per
	}
	return ttl
}

// Reset clears the counter for one route+identity pair. Used by tests and
// operator tooling.
func (c *Controller) Reset(ctx context.Context, route Route, identity string) error {
	if err := c.redis.Del(ctx, c.key(route, identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
