package domain

import (
	"context"
	"time"
)

// Role is the panel role assigned to a user.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is one of the known panel roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User represents the central identity entity of the system.
type User struct {
	ID               string    `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	PasswordHash     string    `json:"-" db:"password_hash"` // Never expose the password hash in JSON
	Role             Role      `json:"role" db:"role"`
	TwoFactorEnabled bool      `json:"two_factor_enabled" db:"two_factor_enabled"`
	TwoFactorSecret  string    `json:"-" db:"two_factor_secret"` // TOTP secret key, set iff enabled
	BackupCodes      []string  `json:"-" db:"-"`                 // SHA-256 hashes of unused codes
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// UserRepository defines the contract for user data persistence.
// This interface is implemented in the 'internal/repository' package.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error

	// SetTwoFactor stores the 2FA flag, secret and the full set of backup code hashes at once.
	SetTwoFactor(ctx context.Context, userID string, enabled bool, secret string, backupCodes []string) error
	ReplaceBackupCodes(ctx context.Context, userID string, backupCodes []string) error

	// ConsumeBackupCode removes codeHash from the user's set in one statement and
	// reports whether it was present.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)

	// LogSecurityEvent is used for the audit trail.
	LogSecurityEvent(ctx context.Context, userID, eventType, ip string, metadata map[string]interface{}) error
}
