package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/FilipeAphrody/sentinel-panel/internal/config"
	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/pkg/security"
)

// TwoFactorManager handles enrollment and management of 2FA for users that
// are already signed in.
type TwoFactorManager struct {
	creds    *CredentialStore
	attempts *LoginAttempts
	sessions domain.SessionRepository
	totp     *security.TwoFactor
	idle     time.Duration
	codes    int
	logger   *slog.Logger
	now      func() time.Time
}

func NewTwoFactorManager(
	creds *CredentialStore,
	attempts *LoginAttempts,
	sessions domain.SessionRepository,
	totp *security.TwoFactor,
	cfg *config.Config,
	logger *slog.Logger,
) *TwoFactorManager {
	return &TwoFactorManager{
		creds:    creds,
		attempts: attempts,
		sessions: sessions,
		totp:     totp,
		idle:     cfg.Session.IdleTimeout,
		codes:    cfg.Auth.BackupCodeCount,
		logger:   logger,
		now:      time.Now,
	}
}

// BeginSetup generates a secret and parks it on the session until the user
// proves possession with ConfirmSetup.
func (m *TwoFactorManager) BeginSetup(ctx context.Context, session *domain.Session) (*security.Enrollment, error) {
	user, err := m.currentUser(ctx, session)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, domain.ErrTwoFactorState
	}

	enrollment, err := m.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}

	session.PendingSecret = enrollment.Secret
	if err := m.sessions.Save(ctx, session, m.idle); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// ConfirmSetup enables 2FA when code matches the parked secret and returns a
// fresh set of plaintext backup codes.
func (m *TwoFactorManager) ConfirmSetup(ctx context.Context, session *domain.Session, code, ip string) ([]string, error) {
	user, err := m.currentUser(ctx, session)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled || session.PendingSecret == "" {
		return nil, domain.ErrTwoFactorState
	}
	if !m.totp.VerifyTOTP(session.PendingSecret, strings.TrimSpace(code), m.now()) {
		return nil, domain.ErrInvalidTwoFactorCode
	}

	if err := m.creds.EnableTwoFactor(ctx, user, session.PendingSecret); err != nil {
		return nil, err
	}
	codes, err := m.creds.RegenerateBackupCodes(ctx, user, m.codes)
	if err != nil {
		return nil, err
	}

	session.PendingSecret = ""
	if err := m.sessions.Save(ctx, session, m.idle); err != nil {
		m.logger.Warn("clear pending secret", slog.String("error", err.Error()))
	}
	m.audit(ctx, user.ID, EventTwoFactorEnabled, ip)
	return codes, nil
}

// Disable turns 2FA off. It requires a current TOTP code.
func (m *TwoFactorManager) Disable(ctx context.Context, session *domain.Session, code, ip string) error {
	user, err := m.enabledUser(ctx, session, code, ip)
	if err != nil {
		return err
	}
	if err := m.creds.DisableTwoFactor(ctx, user); err != nil {
		return err
	}
	m.audit(ctx, user.ID, EventTwoFactorOff, ip)
	return nil
}

// RegenerateBackupCodes replaces every backup code. It requires a current TOTP code.
func (m *TwoFactorManager) RegenerateBackupCodes(ctx context.Context, session *domain.Session, code, ip string) ([]string, error) {
	user, err := m.enabledUser(ctx, session, code, ip)
	if err != nil {
		return nil, err
	}
	codes, err := m.creds.RegenerateBackupCodes(ctx, user, m.codes)
	if err != nil {
		return nil, err
	}
	m.audit(ctx, user.ID, EventBackupCodesReset, ip)
	return codes, nil
}

func (m *TwoFactorManager) currentUser(ctx context.Context, session *domain.Session) (*domain.User, error) {
	if session.State() != domain.StateAuthenticated {
		return nil, domain.ErrUnauthorized
	}
	return m.creds.FindByID(ctx, session.UserID)
}

// enabledUser checks code against the user's TOTP secret. Each check uses one
// attempt from the same counter that guards login.
func (m *TwoFactorManager) enabledUser(ctx context.Context, session *domain.Session, code, ip string) (*domain.User, error) {
	user, err := m.currentUser(ctx, session)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, domain.ErrTwoFactorState
	}

	_, allowed, err := m.attempts.Reserve(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if !allowed {
		m.audit(ctx, user.ID, EventLoginLocked, ip)
		return nil, domain.ErrAccountLocked
	}
	if !m.totp.VerifyTOTP(user.TwoFactorSecret, strings.TrimSpace(code), m.now()) {
		m.audit(ctx, user.ID, EventTwoFactorFailed, ip)
		return nil, domain.ErrInvalidTwoFactorCode
	}
	if err := m.attempts.Release(ctx, user.Email); err != nil {
		return nil, err
	}
	return user, nil
}

func (m *TwoFactorManager) audit(ctx context.Context, userID, event, ip string) {
	if err := m.creds.LogEvent(ctx, userID, event, ip, nil); err != nil {
		m.logger.Warn("audit log write failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}
