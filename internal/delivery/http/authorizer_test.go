package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/internal/usecase"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Channel
	}{
		{"/health", ChannelInfra},
		{"/metrics", ChannelAPI},
		{"/healthz", ChannelWeb},
		{"/api", ChannelAPI},
		{"/api/v1/me", ChannelAPI},
		{"/apiary", ChannelWeb},
		{"/", ChannelWeb},
		{"/login", ChannelWeb},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path))
		})
	}
}

func TestAccessTable(t *testing.T) {
	table := NewAccessTable()
	table.Allow("/login", AccessGuest)
	table.RequireScope(http.MethodGet, "/api/v1/keys", "keys:read")

	assert.Equal(t, AccessGuest, table.Access("/login"))
	assert.Equal(t, AccessAuthenticated, table.Access("/anything"))
	assert.Equal(t, "authenticated", table.Access("/anything").String())

	scope, ok := table.Scope(http.MethodGet, "/api/v1/keys")
	assert.True(t, ok)
	assert.Equal(t, "keys:read", scope)

	_, ok = table.Scope(http.MethodPost, "/api/v1/keys")
	assert.False(t, ok)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&usecase.RateLimitError{}, http.StatusTooManyRequests, "rate_limited"},
		{&domain.KeyError{Reason: domain.KeyBlocked}, http.StatusUnauthorized, "unauthorized"},
		{domain.ErrInsufficientScope, http.StatusForbidden, "insufficient_scope"},
		{domain.ErrAccountLocked, http.StatusTooManyRequests, "account_locked"},
		{fmt.Errorf("redis: %w", domain.ErrServiceUnavailable), http.StatusServiceUnavailable, "service_unavailable"},
		{domain.ErrInvalidRole, http.StatusBadRequest, "invalid_input"},
		{domain.ErrInvalidTwoFactorCode, http.StatusUnprocessableEntity, "invalid_code"},
		{domain.ErrTwoFactorState, http.StatusConflict, "two_factor_state"},
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code, _ := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteErrorSetsRetryAfter(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), rec)

	err := &usecase.RateLimitError{Decision: usecase.RateDecision{
		Limit:   2,
		ResetAt: time.Now().Add(90 * time.Second),
	}}
	assert.NoError(t, writeError(c, err))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	retry := rec.Header().Get("Retry-After")
	assert.Contains(t, []string{"90", "91"}, retry)
}

func TestAuthFromNeverNil(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	ac := AuthFrom(c)
	assert.NotNil(t, ac)
	assert.Nil(t, ac.Session)

	WithAuth(c, &AuthContext{Channel: ChannelAPI, Identity: &domain.Identity{UserID: "u-1"}})
	assert.Equal(t, "u-1", AuthFrom(c).Identity.UserID)
	ac, ok := AuthFromContext(c.Request().Context())
	assert.True(t, ok)
	assert.Equal(t, ChannelAPI, ac.Channel)
}
