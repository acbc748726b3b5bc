// Package testutil holds in-memory repositories and Redis helpers shared by
// package tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/internal/repository"
	"github.com/FilipeAphrody/sentinel-panel/pkg/security"
)

// FastHashParams keeps argon2 cheap in tests.
var FastHashParams = security.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type AuditEvent struct {
	UserID string
	Type   string
}

// MemUserRepo is an in-memory domain.UserRepository.
type MemUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	events []AuditEvent
	Err    error
}

func NewMemUserRepo() *MemUserRepo {
	return &MemUserRepo{users: map[string]*domain.User{}}
}

func (m *MemUserRepo) find(pred func(*domain.User) bool) (*domain.User, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if pred(u) {
			cp := *u
			cp.BackupCodes = slices.Clone(u.BackupCodes)
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(func(u *domain.User) bool { return u.Email == email })
}

func (m *MemUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *MemUserRepo) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MemUserRepo) SetTwoFactor(_ context.Context, userID string, enabled bool, secret string, backupCodes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.TwoFactorEnabled, u.TwoFactorSecret, u.BackupCodes = enabled, secret, slices.Clone(backupCodes)
	return nil
}

func (m *MemUserRepo) ReplaceBackupCodes(_ context.Context, userID string, backupCodes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.BackupCodes = slices.Clone(backupCodes)
	return nil
}

func (m *MemUserRepo) ConsumeBackupCode(_ context.Context, userID, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	i := slices.Index(u.BackupCodes, codeHash)
	if i < 0 {
		return false, nil
	}
	u.BackupCodes = slices.Delete(u.BackupCodes, i, i+1)
	return true, nil
}

func (m *MemUserRepo) LogSecurityEvent(_ context.Context, userID, eventType, _ string, _ map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, AuditEvent{UserID: userID, Type: eventType})
	return nil
}

// EventTypes returns the audit event types recorded so far, in order.
func (m *MemUserRepo) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// MemAPIKeyRepo is an in-memory domain.APIKeyRepository.
type MemAPIKeyRepo struct {
	mu         sync.Mutex
	keys       map[string]*domain.APIKey
	FailureErr error
}

func NewMemAPIKeyRepo() *MemAPIKeyRepo {
	return &MemAPIKeyRepo{keys: map[string]*domain.APIKey{}}
}

// Create assigns a fresh ID the way the Postgres repository does.
func (m *MemAPIKeyRepo) Create(_ context.Context, key *domain.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key.ID = uuid.NewString()
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *MemAPIKeyRepo) GetByPrefix(_ context.Context, prefix string) (*domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.KeyPrefix == prefix {
			cp := *k
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemAPIKeyRepo) GetByID(_ context.Context, id string) (*domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (m *MemAPIKeyRepo) ListByUser(_ context.Context, userID string) ([]domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.APIKey
	for _, k := range m.keys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (m *MemAPIKeyRepo) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return domain.ErrNotFound
	}
	k.IsActive = false
	return nil
}

func (m *MemAPIKeyRepo) RecordSuccess(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return domain.ErrNotFound
	}
	k.FailedAttempts = 0
	k.BlockedUntil = nil
	k.LastUsedAt = &now
	return nil
}

func (m *MemAPIKeyRepo) RecordFailure(_ context.Context, id string, maxAttempts int, blockUntil time.Time) (*domain.FailureResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailureErr != nil {
		return nil, m.FailureErr
	}
	k, ok := m.keys[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	k.FailedAttempts++
	if k.FailedAttempts >= maxAttempts {
		k.FailedAttempts = 0
		k.BlockedUntil = &blockUntil
	}
	return &domain.FailureResult{FailedAttempts: k.FailedAttempts, BlockedUntil: k.BlockedUntil}, nil
}

// Snapshot returns a copy of the stored key.
func (m *MemAPIKeyRepo) Snapshot(id string) domain.APIKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.keys[id]
}

// Redis starts a miniredis server and a client pointed at it.
func Redis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// DiscardLogger is a logger that writes nowhere.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RedisRepos returns Redis-backed counters on a fresh miniredis.
func RedisRepos(t *testing.T) (*repository.RedisCounterRepo, *repository.RedisSessionRepo, *miniredis.Miniredis) {
	t.Helper()
	client, mr := Redis(t)
	return repository.NewRedisCounterRepo(client), repository.NewRedisSessionRepo(client), mr
}
