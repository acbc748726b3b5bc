package domain

import "errors"

// Storage errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Session login errors.
var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAccountLocked        = errors.New("too many failed attempts, try again later")
	ErrTwoFactorRequired    = errors.New("two_factor_challenge_required")
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	ErrTwoFactorNotPending  = errors.New("no two-factor challenge in progress")
	ErrTwoFactorState       = errors.New("two-factor authentication is in the wrong state for this action")
)

// API access errors.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInsufficientScope = errors.New("insufficient scope")
)

// Validation errors.
var (
	ErrInvalidRole  = errors.New("invalid role")
	ErrInvalidInput = errors.New("invalid input")
)

// KeyErrorReason is the internal reason an API key was rejected. It is logged
// but never returned to clients.
type KeyErrorReason string

const (
	KeyMalformed KeyErrorReason = "malformed"
	KeyNotFound  KeyErrorReason = "not_found"
	KeyBlocked   KeyErrorReason = "blocked"
	KeyBadSecret KeyErrorReason = "bad_secret"
	KeyRevoked   KeyErrorReason = "revoked"
	KeyExpired   KeyErrorReason = "expired"
)

// KeyError is an API key rejection. It matches ErrUnauthorized under errors.Is.
type KeyError struct {
	Reason KeyErrorReason
}

func (e *KeyError) Error() string {
	return "unauthorized: " + string(e.Reason)
}

func (e *KeyError) Unwrap() error {
	return ErrUnauthorized
}
