package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/internal/testutil"
	"github.com/FilipeAphrody/sentinel-panel/internal/usecase"
)

func testCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func testRegistry() *usecase.APIKeyRegistry {
	limiter := usecase.NewRateLimiter(nil, 60, 1000)
	return usecase.NewAPIKeyRegistry(testutil.NewMemAPIKeyRepo(), limiter, 5, 15*time.Minute)
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd("1.2.3")
	assert.Equal(t, "1.2.3", root.Version)

	for _, path := range [][]string{
		{"serve"},
		{"user", "create"},
		{"key", "issue"},
		{"key", "list"},
		{"key", "revoke"},
		{"apikey", "ls"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.NotSame(t, root, cmd, path)
	}
}

func TestKeyIssueAndList(t *testing.T) {
	keys := testRegistry()

	cmd, out := testCmd()
	err := runKeyIssue(cmd, keys, usecase.IssueRequest{
		UserID: "u-1", Name: "ci", Scopes: []string{"reports:read"}, TTL: time.Hour,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Key:        spk_")
	assert.Contains(t, out.String(), "Rate limit: 60/min")
	assert.Contains(t, out.String(), "Scopes:     reports:read")
	assert.Contains(t, out.String(), "Expires:")

	cmd, out = testCmd()
	require.NoError(t, runKeyList(cmd, keys, "u-1", false))
	assert.Contains(t, out.String(), "ci")
	assert.Contains(t, out.String(), "active")

	cmd, out = testCmd()
	require.NoError(t, runKeyList(cmd, keys, "u-1", true))
	var listed []domain.APIKey
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "ci", listed[0].Name)

	cmd, out = testCmd()
	require.NoError(t, runKeyList(cmd, keys, "nobody", true))
	assert.JSONEq(t, "[]", out.String())

	cmd, _ = testCmd()
	err = runKeyIssue(cmd, keys, usecase.IssueRequest{UserID: "u-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestKeyStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Minute), now.Add(time.Minute)

	tests := []struct {
		name string
		key  domain.APIKey
		want string
	}{
		{"active", domain.APIKey{IsActive: true}, "active"},
		{"revoked wins", domain.APIKey{IsActive: false, ExpiresAt: &past}, "revoked"},
		{"expired", domain.APIKey{IsActive: true, ExpiresAt: &past}, "expired"},
		{"blocked", domain.APIKey{IsActive: true, BlockedUntil: &future}, "blocked"},
		{"block elapsed", domain.APIKey{IsActive: true, BlockedUntil: &past}, "active"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keyStatus(&tt.key, now))
		})
	}
}

func TestUserCreate(t *testing.T) {
	creds := usecase.NewCredentialStore(testutil.NewMemUserRepo())

	cmd, out := testCmd()
	require.NoError(t, runUserCreate(cmd, creds, "Ops@Example.com", "long enough", domain.RoleSuperAdmin))
	assert.Contains(t, out.String(), "Email: ops@example.com")
	assert.Contains(t, out.String(), "Role:  superadmin")

	cmd, _ = testCmd()
	err := runUserCreate(cmd, creds, "x@example.com", "long enough", domain.Role("viewer"))
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}
