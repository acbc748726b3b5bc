package security

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestComparePassword(t *testing.T) {
	hash, err := HashPasswordWithParams("correct horse", fastParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := ComparePassword("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePassword("wrong horse", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComparePasswordRejectsMalformedHash(t *testing.T) {
	for _, h := range []string{"", "plaintext", "$bcrypt$v=19$m=1,t=1,p=1$aa$bb", "$argon2id$v=19$garbage$aa$bb"} {
		ok, err := ComparePassword("x", h)
		assert.Error(t, err, h)
		assert.False(t, ok, h)
	}
}

func TestHashPasswordUsesFreshSalt(t *testing.T) {
	a, err := HashPasswordWithParams("same", fastParams)
	require.NoError(t, err)
	b, err := HashPasswordWithParams("same", fastParams)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := GenerateSessionToken("sid-123", "0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	sid, err := ParseSessionToken(token, "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, "sid-123", sid)

	_, err = ParseSessionToken(token, "another-secret-another-secret-xx")
	assert.Error(t, err)
}

func TestSessionTokenExpired(t *testing.T) {
	token, err := GenerateSessionToken("sid-123", "0123456789abcdef0123456789abcdef", -time.Minute)
	require.NoError(t, err)

	_, err = ParseSessionToken(token, "0123456789abcdef0123456789abcdef")
	assert.Error(t, err)
}

func TestGenerateAndParseAPIKey(t *testing.T) {
	raw, lookup, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, APIKeyPrefix+lookup+"_"))
	assert.Len(t, lookup, 12)

	parsed, ok := ParseAPIKey(raw)
	require.True(t, ok)
	assert.Equal(t, lookup, parsed)

	assert.True(t, CompareAPIKey(raw, HashAPIKey(raw)))
	assert.False(t, CompareAPIKey(raw+"x", HashAPIKey(raw)))
}

func TestParseAPIKeyRejectsMalformed(t *testing.T) {
	raw, _, err := GenerateAPIKey()
	require.NoError(t, err)

	for _, k := range []string{
		"",
		"spk_",
		"sk_" + raw[4:],
		raw[:len(raw)-1],
		"spk_zzzzzzzzzzzz_" + strings.Repeat("a", 43),
		"spk_0123456789ab-" + strings.Repeat("a", 43),
	} {
		_, ok := ParseAPIKey(k)
		assert.False(t, ok, k)
	}
}

func TestVerifyTOTPWindow(t *testing.T) {
	tf := NewTwoFactor("Test")
	enr, err := tf.GenerateSecret("admin@example.com")
	require.NoError(t, err)
	assert.Contains(t, enr.URI, "otpauth://totp/")
	assert.Contains(t, enr.URI, "issuer=Test")

	at := time.Unix(1700000000, 0)
	code, err := totp.GenerateCode(enr.Secret, at)
	require.NoError(t, err)

	assert.True(t, tf.VerifyTOTP(enr.Secret, code, at))
	assert.True(t, tf.VerifyTOTP(enr.Secret, code, at.Add(30*time.Second)))
	assert.True(t, tf.VerifyTOTP(enr.Secret, code, at.Add(-30*time.Second)))
	assert.False(t, tf.VerifyTOTP(enr.Secret, code, at.Add(90*time.Second)))
	assert.False(t, tf.VerifyTOTP("", code, at))
	assert.False(t, tf.VerifyTOTP(enr.Secret, "12345a", at))
}

func TestBackupCodes(t *testing.T) {
	codes, err := NewBackupCodes(10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := map[string]bool{}
	for _, c := range codes {
		assert.True(t, IsBackupCodeFormat(c), c)
		assert.Equal(t, strings.ToUpper(c), c)
		assert.False(t, seen[c])
		seen[c] = true
	}

	assert.Equal(t, HashBackupCode(codes[0]), HashBackupCode(strings.ToLower(codes[0])))
	assert.NotEqual(t, HashBackupCode(codes[0]), HashBackupCode(codes[1]))
}

func TestCodeFormats(t *testing.T) {
	assert.True(t, IsTOTPFormat("012345"))
	assert.False(t, IsTOTPFormat("12345"))
	assert.False(t, IsTOTPFormat("1234567"))
	assert.False(t, IsTOTPFormat("ABCDEF"))

	assert.True(t, IsBackupCodeFormat("ab12cd34"))
	assert.False(t, IsBackupCodeFormat("ab12cd3"))
	assert.False(t, IsBackupCodeFormat("ab12-d34"))
}
