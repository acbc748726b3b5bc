package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/internal/usecase"
)

// APIKeyHandler serves key management for signed-in users and the
// identity endpoints for API clients.
type APIKeyHandler struct {
	registry *usecase.APIKeyRegistry
}

// NewAPIKeyHandler registers session-authenticated key management on account
// and key-authenticated routes on api.
func NewAPIKeyHandler(account, api *echo.Group, table *AccessTable, r *usecase.APIKeyRegistry) {
	handler := &APIKeyHandler{registry: r}

	account.GET("", handler.List)
	account.POST("", handler.Issue)
	account.DELETE("/:id", handler.Revoke)

	api.GET("/me", handler.Me)
	api.GET("/keys", handler.ListForIdentity)
	table.RequireScope(http.MethodGet, "/api/v1/keys", "keys:read")
}

type issueKeyRequest struct {
	Name               string   `json:"name"`
	Scopes             []string `json:"scopes"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`
	ExpiresInSeconds   int64    `json:"expires_in_seconds"`
}

type issueKeyResponse struct {
	Key    *domain.APIKey `json:"key"`
	Secret string         `json:"secret"`
}

func (h *APIKeyHandler) List(c echo.Context) error {
	keys, err := h.registry.List(c.Request().Context(), AuthFrom(c).Session.UserID)
	if err != nil {
		return writeError(c, err)
	}
	if keys == nil {
		keys = []domain.APIKey{}
	}
	return c.JSON(http.StatusOK, echo.Map{"keys": keys})
}

// Issue creates a key. The plaintext secret is only ever in this response.
func (h *APIKeyHandler) Issue(c echo.Context) error {
	var req issueKeyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errorBody{Code: "invalid_input", Message: "invalid request body"}})
	}

	key, secret, err := h.registry.Issue(c.Request().Context(), usecase.IssueRequest{
		UserID:    AuthFrom(c).Session.UserID,
		Name:      req.Name,
		Scopes:    req.Scopes,
		RateLimit: req.RateLimitPerMinute,
		TTL:       time.Duration(req.ExpiresInSeconds) * time.Second,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, issueKeyResponse{Key: key, Secret: secret})
}

func (h *APIKeyHandler) Revoke(c echo.Context) error {
	if err := h.registry.RevokeOwned(c.Request().Context(), AuthFrom(c).Session.UserID, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me echoes the identity behind the presented key.
func (h *APIKeyHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, AuthFrom(c).Identity)
}

// ListForIdentity lists the keys owned by the caller's user.
func (h *APIKeyHandler) ListForIdentity(c echo.Context) error {
	keys, err := h.registry.List(c.Request().Context(), AuthFrom(c).Identity.UserID)
	if err != nil {
		return writeError(c, err)
	}
	if keys == nil {
		keys = []domain.APIKey{}
	}
	return c.JSON(http.StatusOK, echo.Map{"keys": keys})
}
