package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// APIKeyPrefix marks a string as a sentinel-panel API key.
const APIKeyPrefix = "spk_"

const (
	lookupLen = 12 // hex chars of the non-secret lookup prefix
	secretLen = 43 // base64url chars of 32 random bytes
)

// GenerateAPIKey returns a new raw key of the form spk_<lookup>_<secret>
// together with its lookup prefix. The raw key is shown to the user once.
func GenerateAPIKey() (raw, lookup string, err error) {
	lb := make([]byte, lookupLen/2)
	if _, err := rand.Read(lb); err != nil {
		return "", "", err
	}
	sb := make([]byte, 32)
	if _, err := rand.Read(sb); err != nil {
		return "", "", err
	}

	lookup = hex.EncodeToString(lb)
	raw = APIKeyPrefix + lookup + "_" + base64.RawURLEncoding.EncodeToString(sb)
	return raw, lookup, nil
}

// ParseAPIKey extracts the lookup prefix from a raw key. The secret part may
// itself contain underscores, so the layout is checked by position.
func ParseAPIKey(raw string) (lookup string, ok bool) {
	rest, found := strings.CutPrefix(raw, APIKeyPrefix)
	if !found || len(rest) != lookupLen+1+secretLen || rest[lookupLen] != '_' {
		return "", false
	}
	lookup = rest[:lookupLen]
	if _, err := hex.DecodeString(lookup); err != nil {
		return "", false
	}
	return lookup, true
}

// HashAPIKey returns the hex-encoded SHA-256 hash of a raw API key string.
func HashAPIKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// CompareAPIKey reports whether raw hashes to storedHash, in constant time.
func CompareAPIKey(raw, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashAPIKey(raw)), []byte(storedHash)) == 1
}
