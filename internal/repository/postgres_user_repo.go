package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
)

// PostgresUserRepo implements domain.UserRepository using PostgreSQL.
type PostgresUserRepo struct {
	db *sqlx.DB
}

// NewPostgresUserRepo creates a new repository instance.
func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// userRow maps 1:1 to the users table. The domain type keeps backup codes as
// a plain slice and the secret as a plain string.
type userRow struct {
	ID               string         `db:"id"`
	Email            string         `db:"email"`
	PasswordHash     string         `db:"password_hash"`
	Role             string         `db:"role"`
	TwoFactorEnabled bool           `db:"two_factor_enabled"`
	TwoFactorSecret  sql.NullString `db:"two_factor_secret"`
	BackupCodes      pq.StringArray `db:"backup_codes"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:               r.ID,
		Email:            r.Email,
		PasswordHash:     r.PasswordHash,
		Role:             domain.Role(r.Role),
		TwoFactorEnabled: r.TwoFactorEnabled,
		TwoFactorSecret:  r.TwoFactorSecret.String,
		BackupCodes:      []string(r.BackupCodes),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

const userColumns = `id, email, password_hash, role, two_factor_enabled, two_factor_secret, backup_codes, created_at, updated_at`

// GetByEmail retrieves a user by their email address.
func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "get user by email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByID retrieves a user by their UUID.
func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "get user by id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepo) getOne(ctx context.Context, op, query string, arg string) (*domain.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr(op, err)
	}
	return row.toDomain(), nil
}

// Create inserts a new user into the database. ID and timestamps are populated on the passed user.
func (r *PostgresUserRepo) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, role, two_factor_enabled, two_factor_secret, backup_codes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.TwoFactorEnabled,
		nullString(user.TwoFactorSecret),
		pq.StringArray(nonNil(user.BackupCodes)),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return storageErr("create user", err)
	}

	return nil
}

// SetTwoFactor stores the 2FA flag, secret and backup code hashes in one statement.
func (r *PostgresUserRepo) SetTwoFactor(ctx context.Context, userID string, enabled bool, secret string, backupCodes []string) error {
	query := `
		UPDATE users
		SET two_factor_enabled = $1, two_factor_secret = $2, backup_codes = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		enabled, nullString(secret), pq.StringArray(nonNil(backupCodes)), time.Now().UTC(), userID)
	if err != nil {
		return storageErr("set two factor", err)
	}
	return expectOneRow(result, "set two factor")
}

// ReplaceBackupCodes overwrites the whole backup code set, invalidating every earlier code.
func (r *PostgresUserRepo) ReplaceBackupCodes(ctx context.Context, userID string, backupCodes []string) error {
	query := `UPDATE users SET backup_codes = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, pq.StringArray(nonNil(backupCodes)), time.Now().UTC(), userID)
	if err != nil {
		return storageErr("replace backup codes", err)
	}
	return expectOneRow(result, "replace backup codes")
}

// ConsumeBackupCode removes codeHash from the set if present. The match and
// the removal happen in a single UPDATE, so two concurrent requests with the
// same code cannot both succeed.
func (r *PostgresUserRepo) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	query := `
		UPDATE users
		SET backup_codes = array_remove(backup_codes, $1), updated_at = $2
		WHERE id = $3 AND $1 = ANY(backup_codes)
	`

	result, err := r.db.ExecContext(ctx, query, codeHash, time.Now().UTC(), userID)
	if err != nil {
		return false, storageErr("consume backup code", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, storageErr("consume backup code rows affected", err)
	}
	return rows == 1, nil
}

// LogSecurityEvent inserts an immutable record into the audit_logs table.
func (r *PostgresUserRepo) LogSecurityEvent(ctx context.Context, userID, eventType, ip string, metadata map[string]interface{}) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil || metadata == nil {
		metaJSON = []byte("{}")
	}

	query := `
		INSERT INTO audit_logs (user_id, event_type, ip_address, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	// Handle case where userID is empty (e.g. anonymous failed login)
	// The schema allows user_id to be NULL.
	_, err = r.db.ExecContext(ctx, query, nullString(userID), eventType, ip, metaJSON, time.Now().UTC())
	if err != nil {
		return storageErr("log security event", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func expectOneRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return storageErr(op+" rows affected", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// storageErr marks err as a storage outage so callers can tell it apart from auth failures.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrServiceUnavailable, err)
}
