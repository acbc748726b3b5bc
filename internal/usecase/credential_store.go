package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/pkg/security"
)

// CredentialStore owns user identity records: password hashes, 2FA secrets and backup codes.
// Every mutation goes straight to the repository; nothing is cached across requests.
type CredentialStore struct {
	users      domain.UserRepository
	hashParams security.HashParams
}

func NewCredentialStore(users domain.UserRepository) *CredentialStore {
	return &CredentialStore{users: users, hashParams: security.DefaultParams}
}

// NormalizeEmail is the canonical form used for lookups and lockout keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail returns domain.ErrNotFound when no user has the address.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *CredentialStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// VerifyPassword runs the Argon2id comparison. A nil user still pays for a
// comparison so unknown emails take as long as wrong passwords.
func (s *CredentialStore) VerifyPassword(user *domain.User, plaintext string) bool {
	if user == nil {
		security.DummyCompare(plaintext)
		return false
	}
	ok, err := security.ComparePassword(plaintext, user.PasswordHash)
	return err == nil && ok
}

// ConsumeBackupCode matches code case-insensitively and removes it in the same
// storage operation. It reports whether a code was consumed.
func (s *CredentialStore) ConsumeBackupCode(ctx context.Context, user *domain.User, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if !security.IsBackupCodeFormat(code) {
		return false, nil
	}
	return s.users.ConsumeBackupCode(ctx, user.ID, security.HashBackupCode(code))
}

// EnableTwoFactor turns 2FA on with secret. Any earlier backup codes are dropped;
// call RegenerateBackupCodes afterwards to issue a fresh set.
func (s *CredentialStore) EnableTwoFactor(ctx context.Context, user *domain.User, secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: empty two-factor secret", domain.ErrInvalidInput)
	}
	if err := s.users.SetTwoFactor(ctx, user.ID, true, secret, nil); err != nil {
		return err
	}
	user.TwoFactorEnabled = true
	user.TwoFactorSecret = secret
	user.BackupCodes = nil
	return nil
}

// DisableTwoFactor clears the flag, the secret and all backup codes.
func (s *CredentialStore) DisableTwoFactor(ctx context.Context, user *domain.User) error {
	if err := s.users.SetTwoFactor(ctx, user.ID, false, "", nil); err != nil {
		return err
	}
	user.TwoFactorEnabled = false
	user.TwoFactorSecret = ""
	user.BackupCodes = nil
	return nil
}

// RegenerateBackupCodes replaces the whole set and returns the new plaintext
// codes. They cannot be recovered later.
func (s *CredentialStore) RegenerateBackupCodes(ctx context.Context, user *domain.User, count int) ([]string, error) {
	codes, err := security.NewBackupCodes(count)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}

	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = security.HashBackupCode(c)
	}

	if err := s.users.ReplaceBackupCodes(ctx, user.ID, hashes); err != nil {
		return nil, err
	}
	user.BackupCodes = hashes
	return codes, nil
}

// CreateUser registers a panel user with a freshly hashed password.
func (s *CredentialStore) CreateUser(ctx context.Context, email, password string, role domain.Role) (*domain.User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email", domain.ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", domain.ErrInvalidInput)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := security.HashPasswordWithParams(password, s.hashParams)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{Email: email, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// LogEvent records a security event. The audit trail is best effort.
func (s *CredentialStore) LogEvent(ctx context.Context, userID, eventType, ip string, metadata map[string]interface{}) error {
	return s.users.LogSecurityEvent(ctx, userID, eventType, ip, metadata)
}
