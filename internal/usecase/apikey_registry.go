package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/pkg/security"
)

// IssueRequest describes a new API key.
type IssueRequest struct {
	UserID    string
	Name      string
	Scopes    []string
	RateLimit int           // requests per minute; <= 0 uses the default
	TTL       time.Duration // zero means the key never expires
}

// APIKeyRegistry issues and manages API keys. Plaintext keys leave the
// registry exactly once, from Issue.
type APIKeyRegistry struct {
	keys        domain.APIKeyRepository
	limits      *RateLimiter
	maxFailures int
	blockFor    time.Duration
	now         func() time.Time
}

func NewAPIKeyRegistry(keys domain.APIKeyRepository, limits *RateLimiter, maxFailures int, blockFor time.Duration) *APIKeyRegistry {
	return &APIKeyRegistry{
		keys:        keys,
		limits:      limits,
		maxFailures: maxFailures,
		blockFor:    blockFor,
		now:         time.Now,
	}
}

// Issue creates a key and returns it with its plaintext form.
func (r *APIKeyRegistry) Issue(ctx context.Context, req IssueRequest) (*domain.APIKey, string, error) {
	name := strings.TrimSpace(req.Name)
	if req.UserID == "" || name == "" {
		return nil, "", fmt.Errorf("%w: user and name are required", domain.ErrInvalidInput)
	}
	if req.TTL < 0 {
		return nil, "", fmt.Errorf("%w: negative ttl", domain.ErrInvalidInput)
	}

	raw, prefix, err := security.GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}

	now := r.now().UTC()
	key := &domain.APIKey{
		Name:               name,
		UserID:             req.UserID,
		KeyPrefix:          prefix,
		KeyHash:            security.HashAPIKey(raw),
		Scopes:             normalizeScopes(req.Scopes),
		RateLimitPerMinute: r.limits.EffectiveLimit(req.RateLimit),
		IsActive:           true,
		CreatedAt:          now,
	}
	if req.TTL > 0 {
		expires := now.Add(req.TTL)
		key.ExpiresAt = &expires
	}

	if err := r.keys.Create(ctx, key); err != nil {
		return nil, "", err
	}
	return key, raw, nil
}

// Lookup finds a key by its public prefix.
func (r *APIKeyRegistry) Lookup(ctx context.Context, prefix string) (*domain.APIKey, error) {
	return r.keys.GetByPrefix(ctx, prefix)
}

// VerifySecret compares raw against the stored hash in constant time.
func (r *APIKeyRegistry) VerifySecret(key *domain.APIKey, raw string) bool {
	return security.CompareAPIKey(raw, key.KeyHash)
}

// Revoke deactivates a key permanently.
func (r *APIKeyRegistry) Revoke(ctx context.Context, id string) error {
	return r.keys.Revoke(ctx, id)
}

// RevokeOwned revokes id only when it belongs to userID. Keys owned by
// someone else are reported as not found.
func (r *APIKeyRegistry) RevokeOwned(ctx context.Context, userID, id string) error {
	key, err := r.keys.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if key.UserID != userID {
		return domain.ErrNotFound
	}
	return r.keys.Revoke(ctx, id)
}

func (r *APIKeyRegistry) List(ctx context.Context, userID string) ([]domain.APIKey, error) {
	return r.keys.ListByUser(ctx, userID)
}

func (r *APIKeyRegistry) RecordSuccess(ctx context.Context, id string) error {
	return r.keys.RecordSuccess(ctx, id, r.now().UTC())
}

// RecordFailure counts a bad secret. Reaching the ceiling blocks the key for
// the configured duration and starts a new count.
func (r *APIKeyRegistry) RecordFailure(ctx context.Context, id string) (*domain.FailureResult, error) {
	return r.keys.RecordFailure(ctx, id, r.maxFailures, r.now().Add(r.blockFor).UTC())
}

func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	seen := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
