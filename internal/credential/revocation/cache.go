package revocation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"credhub/internal/credential/metrics"
	"credhub/internal/credential/models"
)

// verdict values stored in the cache. Valid verdicts are the empty string,
// invalid verdicts store the oracle's reason prefixed so an empty reason is
// still distinguishable.
const invalidPrefix = "invalid:"

// CachedChecker decorates a Checker with a Redis verdict cache so repeated
// disclosures of the same credential do not hammer the oracle. Transport
// errors are never cached.
type CachedChecker struct {
	next    Checker
	rdb     redis.Cmdable
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// CachedOption configures the CachedChecker.
type CachedOption func(*CachedChecker)

// WithCacheLogger sets the logger for cache errors.
func WithCacheLogger(logger *slog.Logger) CachedOption {
	return func(c *CachedChecker) {
		c.logger = logger
	}
}

// WithCacheMetrics sets the metrics collector for hit/miss counters.
func WithCacheMetrics(m *metrics.Metrics) CachedOption {
	return func(c *CachedChecker) {
		c.metrics = m
	}
}

// NewCached wraps next with a Redis-backed verdict cache.
func NewCached(next Checker, rdb redis.Cmdable, ttl time.Duration, opts ...CachedOption) *CachedChecker {
	c := &CachedChecker{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedChecker) CheckValidity(ctx context.Context, container models.VerifiableCredentialContainer) error {
	key := cacheKey(container)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		c.hit()
		if cached == "" {
			return nil
		}
		return &InvalidError{Reason: cached[len(invalidPrefix):]}
	case errors.Is(err, redis.Nil):
		c.miss()
	default:
		// Cache unavailability falls through to the oracle.
		c.logger.WarnContext(ctx, "revocation cache read failed", "error", err)
	}

	verdict := c.next.CheckValidity(ctx, container)

	var invalid *InvalidError
	switch {
	case verdict == nil:
		c.store(ctx, key, "")
	case errors.As(verdict, &invalid):
		c.store(ctx, key, invalidPrefix+invalid.Reason)
	}
	return verdict
}

func (c *CachedChecker) store(ctx context.Context, key, value string) {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "revocation cache write failed", "error", err)
	}
}

func (c *CachedChecker) hit() {
	if c.metrics != nil {
		c.metrics.RevocationCacheHits.Inc()
	}
}

func (c *CachedChecker) miss() {
	if c.metrics != nil {
		c.metrics.RevocationCacheMisses.Inc()
	}
}

func cacheKey(container models.VerifiableCredentialContainer) string {
	return "credhub:revocation:" + container.Credential.ID
}
