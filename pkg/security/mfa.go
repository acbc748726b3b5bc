package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	backupCodeLen  = 8
	backupAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Enrollment is a freshly generated TOTP secret and its otpauth:// URI for QR codes.
type Enrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"otpauth_uri"`
}

// TwoFactor generates and verifies 6-digit, 30-second TOTP codes.
type TwoFactor struct {
	issuer string
}

// NewTwoFactor returns an engine that labels enrollments with issuer.
func NewTwoFactor(issuer string) *TwoFactor {
	if issuer == "" {
		issuer = "SentinelPanel"
	}
	return &TwoFactor{issuer: issuer}
}

// GenerateSecret creates a random 160-bit Base32 secret (compatible with Google Authenticator).
func (t *TwoFactor) GenerateSecret(account string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: account,
		Period:      totpPeriod,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}
	return &Enrollment{Secret: key.Secret(), URI: key.URL()}, nil
}

// VerifyTOTP accepts the code for the time step containing now and the steps
// directly before and after it. otp compares codes in constant time.
func (t *TwoFactor) VerifyTOTP(secret, code string, now time.Time) bool {
	if secret == "" || !IsTOTPFormat(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, now.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// IsTOTPFormat reports whether code is exactly six ASCII digits.
func IsTOTPFormat(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// IsBackupCodeFormat reports whether code has the shape of a backup code, ignoring case.
func IsBackupCodeFormat(code string) bool {
	if len(code) != backupCodeLen {
		return false
	}
	return strings.Trim(strings.ToUpper(code), backupAlphabet) == ""
}

// NewBackupCodes returns n random uppercase alphanumeric codes. They are
// returned in plaintext exactly once; callers persist HashBackupCode values.
func NewBackupCodes(n int) ([]string, error) {
	n36 := big.NewInt(int64(len(backupAlphabet)))
	codes := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(codes) < n {
		var b strings.Builder
		for i := 0; i < backupCodeLen; i++ {
			idx, err := rand.Int(rand.Reader, n36)
			if err != nil {
				return nil, err
			}
			b.WriteByte(backupAlphabet[idx.Int64()])
		}
		code := b.String()
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// HashBackupCode normalises a code to upper case and hashes it for storage.
func HashBackupCode(code string) string {
	h := sha256.Sum256([]byte(strings.ToUpper(strings.TrimSpace(code))))
	return hex.EncodeToString(h[:])
}
