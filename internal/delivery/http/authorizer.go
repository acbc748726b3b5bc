package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/internal/usecase"
)

// Web paths the authorizer redirects to.
const (
	LoginPath     = "/login"
	ChallengePath = "/two-factor/challenge"
)

// Verdict is the outcome of authorizing one request. A request proceeds only
// when both Err and Redirect are empty.
type Verdict struct {
	Channel  Channel
	Err      error
	Redirect string
	Session  *domain.Session
	Identity *domain.Identity
	Rate     *usecase.RateDecision
	// ClearCookie is set when the browser holds a cookie for a dead session.
	ClearCookie bool
}

// Authorizer is the single entry point deciding whether a request may reach
// its handler, and as whom.
type Authorizer struct {
	sessions *usecase.SessionAuthenticator
	api      *usecase.APIAccessController
	table    *AccessTable
	cookie   *sessionCookie
	metrics  *Metrics
	homePath string
	logger   *slog.Logger
}

func NewAuthorizer(
	sessions *usecase.SessionAuthenticator,
	api *usecase.APIAccessController,
	table *AccessTable,
	cookie *sessionCookie,
	metrics *Metrics,
	homePath string,
	logger *slog.Logger,
) *Authorizer {
	return &Authorizer{
		sessions: sessions,
		api:      api,
		table:    table,
		cookie:   cookie,
		metrics:  metrics,
		homePath: homePath,
		logger:   logger,
	}
}

// Classify sorts a request path into infra, API or web. /metrics is scraped
// with an API key.
func Classify(path string) Channel {
	switch {
	case path == "/health":
		return ChannelInfra
	case path == "/api" || strings.HasPrefix(path, "/api/") || path == "/metrics":
		return ChannelAPI
	default:
		return ChannelWeb
	}
}

// Middleware applies Evaluate to every request and either stops it or
// attaches the AuthContext and calls the next handler.
func (a *Authorizer) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v := a.Evaluate(c)

			if v.Channel != ChannelInfra {
				label := outcome(v.Err)
				if v.Redirect != "" {
					label = "redirected"
				}
				a.metrics.observeDecision(v.Channel, label)
			}

			if v.Rate != nil {
				setRateHeaders(c, *v.Rate)
			}
			if v.ClearCookie {
				a.cookie.clear(c)
			}

			if v.Redirect != "" {
				return c.Redirect(http.StatusSeeOther, v.Redirect)
			}
			if v.Err != nil {
				if errors.Is(v.Err, domain.ErrServiceUnavailable) {
					a.logger.Error("authorization unavailable", slog.String("path", c.Request().URL.Path), slog.String("error", v.Err.Error()))
				}
				return writeError(c, v.Err)
			}

			WithAuth(c, &AuthContext{Channel: v.Channel, Session: v.Session, Identity: v.Identity})
			return next(c)
		}
	}
}

// Evaluate runs classification and delegation for c without writing a response.
func (a *Authorizer) Evaluate(c echo.Context) Verdict {
	req := c.Request()
	switch Classify(req.URL.Path) {
	case ChannelInfra:
		return Verdict{Channel: ChannelInfra}
	case ChannelAPI:
		return a.evaluateAPI(c)
	default:
		return a.evaluateWeb(c)
	}
}

func (a *Authorizer) evaluateAPI(c echo.Context) Verdict {
	v := Verdict{Channel: ChannelAPI}
	req := c.Request()

	res, err := a.api.Authenticate(req.Context(), apiKeyFromRequest(req))
	if err != nil {
		var ke *domain.KeyError
		if errors.As(err, &ke) {
			a.logger.Debug("api request rejected",
				slog.String("reason", string(ke.Reason)),
				slog.String("ip", c.RealIP()),
			)
		}
		var rl *usecase.RateLimitError
		if errors.As(err, &rl) {
			v.Rate = &rl.Decision
		}
		v.Err = err
		return v
	}

	v.Identity = res.Identity
	v.Rate = &res.Rate

	if scope, ok := a.table.Scope(req.Method, routePath(c)); ok && !res.Identity.HasScope(scope) {
		a.logger.Debug("api scope denied", slog.String("key_id", res.Identity.KeyID), slog.String("scope", scope))
		v.Err = domain.ErrInsufficientScope
	}
	return v
}

func (a *Authorizer) evaluateWeb(c echo.Context) Verdict {
	v := Verdict{Channel: ChannelWeb}
	access := a.table.Access(routePath(c))

	if sid, ok := a.cookie.read(c); ok {
		session, err := a.sessions.Resolve(c.Request().Context(), sid)
		switch {
		case err == nil:
			v.Session = session
		case errors.Is(err, domain.ErrNotFound):
			v.ClearCookie = true
		default:
			if access != AccessPublic {
				v.Err = err
				return v
			}
		}
	} else if _, err := c.Cookie(a.cookie.name); err == nil {
		v.ClearCookie = true
	}

	state := v.Session.State()
	switch access {
	case AccessPublic:
	case AccessGuest:
		if state == domain.StateAuthenticated {
			v.Redirect = a.homePath
		}
	case AccessChallenge:
		switch state {
		case domain.StateAnonymous:
			v.Redirect = withError(LoginPath, "login_required")
		case domain.StateAuthenticated:
			v.Redirect = a.homePath
		}
	default:
		switch state {
		case domain.StateAnonymous:
			v.Err = domain.ErrUnauthorized
			v.Redirect = withError(LoginPath, "login_required")
		case domain.StatePendingTwoFactor:
			v.Err = domain.ErrTwoFactorRequired
			v.Redirect = ChallengePath
		}
	}
	return v
}

// apiKeyFromRequest reads X-API-Key, falling back to a Bearer token.
func apiKeyFromRequest(req *http.Request) string {
	if key := req.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}

// routePath is the matched route template, or the raw path for unrouted requests.
func routePath(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return c.Request().URL.Path
}

func withError(path, code string) string {
	return path + "?error=" + url.QueryEscape(code)
}
