package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FilipeAphrody/sentinel-panel/internal/config"
	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/pkg/security"
)

// Security event types written to the audit trail.
const (
	EventLoginSuccess     = "LOGIN_SUCCESS"
	EventLoginFailed      = "LOGIN_FAILED"
	EventLoginLocked      = "LOGIN_LOCKED"
	EventTwoFactorPending = "MFA_CHALLENGE"
	EventTwoFactorFailed  = "MFA_FAILED"
	EventTwoFactorEnabled = "MFA_ENABLED"
	EventTwoFactorOff     = "MFA_DISABLED"
	EventBackupCodesReset = "MFA_BACKUP_CODES_REGENERATED"
	EventLogout           = "LOGOUT"
)

// SessionAuthenticator drives the browser login state machine:
// Anonymous -> PendingTwoFactor -> Authenticated -> (logout) Anonymous.
type SessionAuthenticator struct {
	creds    *CredentialStore
	attempts *LoginAttempts
	sessions domain.SessionRepository
	totp     *security.TwoFactor
	cfg      config.SessionConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewSessionAuthenticator(
	creds *CredentialStore,
	attempts *LoginAttempts,
	sessions domain.SessionRepository,
	totp *security.TwoFactor,
	cfg *config.Config,
	logger *slog.Logger,
) *SessionAuthenticator {
	return &SessionAuthenticator{
		creds:    creds,
		attempts: attempts,
		sessions: sessions,
		totp:     totp,
		cfg:      cfg.Session,
		logger:   logger,
		now:      time.Now,
	}
}

// Login handles the first step of authentication: validating credentials.
// A user with 2FA enabled gets a PendingTwoFactor session back together with
// domain.ErrTwoFactorRequired; the caller must keep the session and send the
// browser to the challenge.
func (u *SessionAuthenticator) Login(ctx context.Context, email, password, ip string) (*domain.Session, error) {
	email = NormalizeEmail(email)

	// 1. Claim an attempt before doing any password work.
	if err := u.reserve(ctx, "", email, ip); err != nil {
		return nil, err
	}

	// 2. Verify password using Argon2id
	user, err := u.creds.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if !u.creds.VerifyPassword(user, password) {
		return nil, u.fail(ctx, user, email, ip, EventLoginFailed, domain.ErrInvalidCredentials)
	}

	// 3. Check if Multi-Factor Authentication is required
	if user.TwoFactorEnabled {
		// The password was right, so the attempt is not a guess.
		if err := u.attempts.Release(ctx, email); err != nil {
			return nil, err
		}
		session, err := u.newSession(ctx, user, true)
		if err != nil {
			return nil, err
		}
		u.audit(ctx, user.ID, EventTwoFactorPending, ip, nil)
		return session, domain.ErrTwoFactorRequired
	}

	// 4. If no MFA, open the session immediately
	if err := u.attempts.Reset(ctx, email); err != nil {
		return nil, err
	}
	session, err := u.newSession(ctx, user, false)
	if err != nil {
		return nil, err
	}
	u.audit(ctx, user.ID, EventLoginSuccess, ip, nil)
	return session, nil
}

// VerifyTwoFactor handles the second step. A six-digit code is checked as TOTP,
// anything else as a backup code. On success the pending session is replaced
// by a fully authenticated one under a new ID.
func (u *SessionAuthenticator) VerifyTwoFactor(ctx context.Context, session *domain.Session, code, ip string) (*domain.Session, error) {
	if session.State() != domain.StatePendingTwoFactor {
		return nil, domain.ErrTwoFactorNotPending
	}

	if err := u.reserve(ctx, session.UserID, session.Email, ip); err != nil {
		return nil, err
	}

	user, err := u.creds.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = u.sessions.Delete(ctx, session.ID)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := u.checkSecondFactor(ctx, user, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, u.fail(ctx, user, session.Email, ip, EventTwoFactorFailed, domain.ErrInvalidTwoFactorCode)
	}

	if err := u.attempts.Reset(ctx, session.Email); err != nil {
		return nil, err
	}

	promoted, err := u.newSession(ctx, user, false)
	if err != nil {
		return nil, err
	}
	if err := u.sessions.Delete(ctx, session.ID); err != nil {
		u.logger.Warn("delete pending session", slog.String("error", err.Error()))
	}

	u.audit(ctx, user.ID, EventLoginSuccess, ip, map[string]interface{}{"two_factor": true})
	return promoted, nil
}

// Logout destroys the session record. Unknown IDs are not an error.
func (u *SessionAuthenticator) Logout(ctx context.Context, session *domain.Session, ip string) error {
	if session == nil {
		return nil
	}
	if err := u.sessions.Delete(ctx, session.ID); err != nil {
		return err
	}
	u.audit(ctx, session.UserID, EventLogout, ip, nil)
	return nil
}

// Resolve loads the session behind id and slides its idle expiry.
// Missing or expired sessions return domain.ErrNotFound. Sessions older than
// the absolute max age are destroyed regardless of activity.
func (u *SessionAuthenticator) Resolve(ctx context.Context, id string) (*domain.Session, error) {
	session, err := u.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.cfg.MaxAge > 0 && !session.CreatedAt.IsZero() && u.now().Sub(session.CreatedAt) > u.cfg.MaxAge {
		if err := u.sessions.Delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrNotFound
	}
	if err := u.sessions.Touch(ctx, id, u.ttl(session)); err != nil {
		return nil, err
	}
	return session, nil
}

func (u *SessionAuthenticator) checkSecondFactor(ctx context.Context, user *domain.User, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if security.IsTOTPFormat(code) {
		return u.totp.VerifyTOTP(user.TwoFactorSecret, code, u.now()), nil
	}
	return u.creds.ConsumeBackupCode(ctx, user, code)
}

// reserve claims a login attempt for email. Past the limit it audits the
// lockout and returns domain.ErrAccountLocked.
func (u *SessionAuthenticator) reserve(ctx context.Context, userID, email, ip string) error {
	n, allowed, err := u.attempts.Reserve(ctx, email)
	if err != nil {
		return err
	}
	if !allowed {
		u.audit(ctx, userID, EventLoginLocked, ip, map[string]interface{}{"email": email, "attempts": n})
		return domain.ErrAccountLocked
	}
	return nil
}

// fail records an attempt that was already reserved as a failure and returns reason.
func (u *SessionAuthenticator) fail(ctx context.Context, user *domain.User, email, ip, event string, reason error) error {
	userID := ""
	if user != nil {
		userID = user.ID
	}
	u.logger.Info("authentication failed",
		slog.String("email", email),
		slog.String("event", event),
		slog.String("ip", ip),
	)
	u.audit(ctx, userID, event, ip, map[string]interface{}{"email": email})
	return reason
}

func (u *SessionAuthenticator) newSession(ctx context.Context, user *domain.User, pending bool) (*domain.Session, error) {
	session := &domain.Session{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		Email:            user.Email,
		Role:             user.Role,
		PendingTwoFactor: pending,
		CreatedAt:        u.now().UTC(),
	}
	if err := u.sessions.Create(ctx, session, u.ttl(session)); err != nil {
		return nil, err
	}
	return session, nil
}

func (u *SessionAuthenticator) ttl(session *domain.Session) time.Duration {
	if session.PendingTwoFactor {
		return u.cfg.PendingTTL
	}
	return u.cfg.IdleTimeout
}

func (u *SessionAuthenticator) audit(ctx context.Context, userID, event, ip string, metadata map[string]interface{}) {
	if err := u.creds.LogEvent(ctx, userID, event, ip, metadata); err != nil {
		u.logger.Warn("audit log write failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}
