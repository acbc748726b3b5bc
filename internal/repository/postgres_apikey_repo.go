package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
)

// PostgresAPIKeyRepo implements domain.APIKeyRepository using PostgreSQL.
type PostgresAPIKeyRepo struct {
	db *sqlx.DB
}

// NewPostgresAPIKeyRepo creates a new repository instance.
func NewPostgresAPIKeyRepo(db *sqlx.DB) *PostgresAPIKeyRepo {
	return &PostgresAPIKeyRepo{db: db}
}

type apiKeyRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	UserID             string         `db:"user_id"`
	KeyPrefix          string         `db:"key_prefix"`
	KeyHash            string         `db:"key_hash"`
	Scopes             pq.StringArray `db:"scopes"`
	RateLimitPerMinute int            `db:"rate_limit_per_minute"`
	IsActive           bool           `db:"is_active"`
	ExpiresAt          *time.Time     `db:"expires_at"`
	FailedAttempts     int            `db:"failed_attempts"`
	BlockedUntil       *time.Time     `db:"blocked_until"`
	LastUsedAt         *time.Time     `db:"last_used_at"`
	CreatedAt          time.Time      `db:"created_at"`
}

func (r apiKeyRow) toDomain() domain.APIKey {
	return domain.APIKey{
		ID:                 r.ID,
		Name:               r.Name,
		UserID:             r.UserID,
		KeyPrefix:          r.KeyPrefix,
		KeyHash:            r.KeyHash,
		Scopes:             []string(r.Scopes),
		RateLimitPerMinute: r.RateLimitPerMinute,
		IsActive:           r.IsActive,
		ExpiresAt:          r.ExpiresAt,
		FailedAttempts:     r.FailedAttempts,
		BlockedUntil:       r.BlockedUntil,
		LastUsedAt:         r.LastUsedAt,
		CreatedAt:          r.CreatedAt,
	}
}

const apiKeyColumns = `id, name, user_id, key_prefix, key_hash, scopes, rate_limit_per_minute, is_active,
	expires_at, failed_attempts, blocked_until, last_used_at, created_at`

// Create inserts a new API key. The key_hash and key_prefix must already be set.
// ID and CreatedAt are populated on the passed key.
func (r *PostgresAPIKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	query := `
		INSERT INTO api_keys (id, name, user_id, key_prefix, key_hash, scopes, rate_limit_per_minute, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	key.ID = uuid.NewString()
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		key.ID,
		key.Name,
		key.UserID,
		key.KeyPrefix,
		key.KeyHash,
		pq.StringArray(nonNil(key.Scopes)),
		key.RateLimitPerMinute,
		key.IsActive,
		key.ExpiresAt,
		key.CreatedAt,
	)
	if err != nil {
		return storageErr("insert api key", err)
	}
	return nil
}

// GetByPrefix looks up an API key by its non-secret lookup prefix.
func (r *PostgresAPIKeyRepo) GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	return r.getOne(ctx, "get api key by prefix", `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1`, prefix)
}

// GetByID looks up an API key by ID.
func (r *PostgresAPIKeyRepo) GetByID(ctx context.Context, id string) (*domain.APIKey, error) {
	return r.getOne(ctx, "get api key by id", `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
}

func (r *PostgresAPIKeyRepo) getOne(ctx context.Context, op, query, arg string) (*domain.APIKey, error) {
	var row apiKeyRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr(op, err)
	}
	key := row.toDomain()
	return &key, nil
}

// ListByUser returns every key owned by userID, newest first.
func (r *PostgresAPIKeyRepo) ListByUser(ctx context.Context, userID string) ([]domain.APIKey, error) {
	var rows []apiKeyRow
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, storageErr("list api keys", err)
	}

	keys := make([]domain.APIKey, len(rows))
	for i, row := range rows {
		keys[i] = row.toDomain()
	}
	return keys, nil
}

// Revoke marks an API key as inactive. There is no way back.
func (r *PostgresAPIKeyRepo) Revoke(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE api_keys SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return storageErr("revoke api key", err)
	}
	return expectOneRow(result, "revoke api key")
}

// RecordSuccess clears the failure counters and stamps last_used_at.
func (r *PostgresAPIKeyRepo) RecordSuccess(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE api_keys SET failed_attempts = 0, blocked_until = NULL, last_used_at = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, now.UTC(), id)
	if err != nil {
		return storageErr("record api key success", err)
	}
	return expectOneRow(result, "record api key success")
}

// RecordFailure increments failed_attempts and applies the block in the same
// statement. Column references on the right-hand side see the pre-update row,
// so concurrent failures serialise on the row lock instead of racing.
func (r *PostgresAPIKeyRepo) RecordFailure(ctx context.Context, id string, maxAttempts int, blockUntil time.Time) (*domain.FailureResult, error) {
	query := `
		UPDATE api_keys SET
			failed_attempts = CASE WHEN failed_attempts + 1 >= $1::int THEN 0 ELSE failed_attempts + 1 END,
			blocked_until = CASE WHEN failed_attempts + 1 >= $1::int THEN $2::timestamptz ELSE blocked_until END
		WHERE id = $3
		RETURNING failed_attempts, blocked_until
	`

	res := &domain.FailureResult{}
	err := r.db.QueryRowxContext(ctx, query, maxAttempts, blockUntil.UTC(), id).Scan(&res.FailedAttempts, &res.BlockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("record api key failure", err)
	}
	return res, nil
}
