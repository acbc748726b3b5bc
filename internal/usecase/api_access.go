package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/pkg/security"
)

// AccessResult is a successfully authenticated API request.
type AccessResult struct {
	Identity *domain.Identity
	Rate     RateDecision
}

// RateLimitError carries the decision of a rejected request so callers can
// emit Retry-After. It matches domain.ErrRateLimitExceeded.
type RateLimitError struct {
	Decision RateDecision
}

func (e *RateLimitError) Error() string {
	return domain.ErrRateLimitExceeded.Error()
}

func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimitExceeded
}

// APIAccessController authenticates programmatic clients by API key.
type APIAccessController struct {
	registry *APIKeyRegistry
	limiter  *RateLimiter
	logger   *slog.Logger
	now      func() time.Time
}

func NewAPIAccessController(registry *APIKeyRegistry, limiter *RateLimiter, logger *slog.Logger) *APIAccessController {
	return &APIAccessController{
		registry: registry,
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticate resolves raw to an identity. Rejections are *domain.KeyError,
// *RateLimitError or a storage error wrapping domain.ErrServiceUnavailable.
func (c *APIAccessController) Authenticate(ctx context.Context, raw string) (*AccessResult, error) {
	raw = strings.TrimSpace(raw)
	prefix, ok := security.ParseAPIKey(raw)
	if !ok {
		return nil, c.reject("", domain.KeyMalformed)
	}

	key, err := c.registry.Lookup(ctx, prefix)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, c.reject("", domain.KeyNotFound)
		}
		return nil, err
	}

	now := c.now()

	// Blocked keys fail fast without touching the hash.
	if key.Blocked(now) {
		return nil, c.reject(key.ID, domain.KeyBlocked)
	}

	if !c.registry.VerifySecret(key, raw) {
		res, err := c.registry.RecordFailure(ctx, key.ID)
		if err != nil {
			c.logger.Error("record api key failure", slog.String("key_id", key.ID), slog.String("error", err.Error()))
		} else if res.BlockedUntil != nil {
			c.logger.Warn("api key blocked", slog.String("key_id", key.ID), slog.Time("blocked_until", *res.BlockedUntil))
		}
		return nil, c.reject(key.ID, domain.KeyBadSecret)
	}

	if !key.IsActive {
		return nil, c.reject(key.ID, domain.KeyRevoked)
	}
	if key.Expired(now) {
		return nil, c.reject(key.ID, domain.KeyExpired)
	}

	decision, err := c.limiter.Check(ctx, key.ID, key.RateLimitPerMinute)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		c.logger.Debug("api key rate limited", slog.String("key_id", key.ID), slog.Int("limit", decision.Limit))
		return nil, &RateLimitError{Decision: decision}
	}

	if err := c.registry.RecordSuccess(ctx, key.ID); err != nil {
		return nil, err
	}

	return &AccessResult{
		Identity: &domain.Identity{UserID: key.UserID, KeyID: key.ID, Scopes: key.Scopes},
		Rate:     decision,
	}, nil
}

func (c *APIAccessController) reject(keyID string, reason domain.KeyErrorReason) error {
	c.logger.Debug("api key rejected", slog.String("key_id", keyID), slog.String("reason", string(reason)))
	return &domain.KeyError{Reason: reason}
}
