package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
)

// RedisSessionRepo implements domain.SessionRepository using Redis.
type RedisSessionRepo struct {
	client *redis.Client
}

// NewRedisSessionRepo creates a new repository instance.
func NewRedisSessionRepo(client *redis.Client) *RedisSessionRepo {
	return &RedisSessionRepo{client: client}
}

// The key pattern is "auth:session:<id>" -> JSON session record.
func sessionKey(id string) string {
	return fmt.Sprintf("auth:session:%s", id)
}

// Create stores a new session record. It refuses to overwrite an existing ID.
func (r *RedisSessionRepo) Create(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, sessionKey(session.ID), data, ttl).Result()
	if err != nil {
		return storageErr("store session", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	return nil
}

// Get loads a session record. Expired or unknown sessions return domain.ErrNotFound.
func (r *RedisSessionRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("load session", err)
	}

	session := &domain.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	session.ID = id
	return session, nil
}

// Save overwrites an existing session record and resets its TTL.
func (r *RedisSessionRepo) Save(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ok, err := r.client.SetXX(ctx, sessionKey(session.ID), data, ttl).Result()
	if err != nil {
		return storageErr("save session", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

// Touch slides the idle expiry forward.
func (r *RedisSessionRepo) Touch(ctx context.Context, id string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, sessionKey(id), ttl).Err(); err != nil {
		return storageErr("touch session", err)
	}
	return nil
}

// Delete removes a session immediately.
// This is used for "Logout" or when a session is promoted under a new ID.
func (r *RedisSessionRepo) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return storageErr("delete session", err)
	}
	return nil
}
