package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/FilipeAphrody/sentinel-panel/internal/config"
	"github.com/FilipeAphrody/sentinel-panel/internal/usecase"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Services are the usecases the HTTP layer delegates to.
type Services struct {
	Sessions  *usecase.SessionAuthenticator
	TwoFactor *usecase.TwoFactorManager
	Keys      *usecase.APIKeyRegistry
	Access    *usecase.APIAccessController
}

// NewRouter builds the echo instance with the fixed middleware pipeline:
// recover, request id, request log, CORS, security headers, login throttle,
// then the Authorizer.
func NewRouter(cfg *config.Config, svc Services, metrics *Metrics, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	table := NewAccessTable()
	cookie := newSessionCookie(cfg.Session)
	authorizer := NewAuthorizer(svc.Sessions, svc.Access, table, cookie, metrics, cfg.HTTP.HomePath, logger)

	e.Use(middleware.Recover())
	e.Use(requestID())
	e.Use(RequestLogger(logger, metrics))
	e.Use(CORS(cfg.HTTP))
	e.Use(SecurityHeaders(cfg.HTTP))
	e.Use(LoginThrottle(cfg.Auth.LoginIPRatePerMinute))
	e.Use(authorizer.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"status":  "healthy",
			"version": Version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})
	if cfg.HTTP.MetricsEnabled {
		table.RequireScope(http.MethodGet, "/metrics", "metrics:read")
		e.GET("/metrics", metrics.Handler())
	}

	NewAuthHandler(e, table, svc.Sessions, cookie, cfg.HTTP.HomePath, logger)
	NewMFAHandler(e.Group("/account/two-factor"), svc.TwoFactor)
	NewAPIKeyHandler(e.Group("/account/api-keys"), e.Group("/api/v1"), table, svc.Keys)

	return e
}
