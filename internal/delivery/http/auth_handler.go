package http

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/internal/usecase"
)

// AuthHandler represents the HTTP delivery layer for browser authentication.
type AuthHandler struct {
	usecase  *usecase.SessionAuthenticator
	cookie   *sessionCookie
	homePath string
	logger   *slog.Logger
}

// NewAuthHandler registers the login, challenge and logout routes and their
// access levels.
func NewAuthHandler(e *echo.Echo, table *AccessTable, u *usecase.SessionAuthenticator, cookie *sessionCookie, homePath string, logger *slog.Logger) {
	handler := &AuthHandler{usecase: u, cookie: cookie, homePath: homePath, logger: logger}

	e.GET(LoginPath, handler.LoginForm)
	e.POST(LoginPath, handler.Login)
	table.Allow(LoginPath, AccessGuest)

	e.GET(ChallengePath, handler.ChallengeForm)
	e.POST(ChallengePath, handler.VerifyTwoFactor)
	table.Allow(ChallengePath, AccessChallenge)

	e.POST("/logout", handler.Logout)
	table.Allow("/logout", AccessPublic)

	e.GET(homePath, handler.Home)
}

// loginRequest is the login form payload.
type loginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// challengeRequest carries either a TOTP code or a backup code.
type challengeRequest struct {
	Code string `form:"code" json:"code"`
}

const loginFormHTML = `<!doctype html>
<title>Sign in</title>
%s<form method="post" action="/login">
<input name="email" type="email" autocomplete="username" required>
<input name="password" type="password" autocomplete="current-password" required>
<button type="submit">Sign in</button>
</form>
`

const challengeFormHTML = `<!doctype html>
<title>Two-factor authentication</title>
%s<form method="post" action="/two-factor/challenge">
<input name="code" autocomplete="one-time-code" required>
<button type="submit">Verify</button>
</form>
`

var errorMessages = map[string]string{
	"invalid_credentials": "Invalid email or password.",
	"locked":              "Too many failed attempts. Try again later.",
	"invalid_code":        "Invalid verification code.",
	"login_required":      "Please sign in.",
	"unavailable":         "Service temporarily unavailable.",
}

func renderForm(c echo.Context, tmpl string) error {
	notice := ""
	if msg, ok := errorMessages[c.QueryParam("error")]; ok {
		notice = fmt.Sprintf("<p role=\"alert\">%s</p>\n", html.EscapeString(msg))
	}
	return c.HTML(http.StatusOK, fmt.Sprintf(tmpl, notice))
}

func (h *AuthHandler) LoginForm(c echo.Context) error {
	return renderForm(c, loginFormHTML)
}

func (h *AuthHandler) ChallengeForm(c echo.Context) error {
	return renderForm(c, challengeFormHTML)
}

// Login handles the initial authentication request.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.Redirect(http.StatusSeeOther, withError(LoginPath, "invalid_credentials"))
	}

	ctx := c.Request().Context()
	session, err := h.usecase.Login(ctx, req.Email, req.Password, c.RealIP())

	switch {
	case err == nil:
		h.replaceSession(c, session)
		return c.Redirect(http.StatusSeeOther, h.homePath)

	// Password was right; the browser must finish the challenge.
	case errors.Is(err, domain.ErrTwoFactorRequired):
		h.replaceSession(c, session)
		return c.Redirect(http.StatusSeeOther, ChallengePath)

	case errors.Is(err, domain.ErrInvalidCredentials):
		return c.Redirect(http.StatusSeeOther, withError(LoginPath, "invalid_credentials"))

	case errors.Is(err, domain.ErrAccountLocked):
		return c.Redirect(http.StatusSeeOther, withError(LoginPath, "locked"))

	default:
		h.logger.Error("login failed", slog.String("error", err.Error()))
		return c.Redirect(http.StatusSeeOther, withError(LoginPath, "unavailable"))
	}
}

// VerifyTwoFactor handles the second step of authentication for users with 2FA enabled.
func (h *AuthHandler) VerifyTwoFactor(c echo.Context) error {
	var req challengeRequest
	if err := c.Bind(&req); err != nil {
		return c.Redirect(http.StatusSeeOther, withError(ChallengePath, "invalid_code"))
	}

	pending := AuthFrom(c).Session
	ctx := c.Request().Context()
	session, err := h.usecase.VerifyTwoFactor(ctx, pending, req.Code, c.RealIP())

	switch {
	case err == nil:
		if err := h.cookie.set(c, session.ID); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, h.homePath)

	case errors.Is(err, domain.ErrInvalidTwoFactorCode):
		return c.Redirect(http.StatusSeeOther, withError(ChallengePath, "invalid_code"))

	case errors.Is(err, domain.ErrAccountLocked):
		h.endSession(c, pending)
		return c.Redirect(http.StatusSeeOther, withError(LoginPath, "locked"))

	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrTwoFactorNotPending):
		h.endSession(c, pending)
		return c.Redirect(http.StatusSeeOther, withError(LoginPath, "login_required"))

	default:
		h.logger.Error("two-factor verification failed", slog.String("error", err.Error()))
		return c.Redirect(http.StatusSeeOther, withError(ChallengePath, "unavailable"))
	}
}

// Logout always lands on the login page, with or without a session.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.endSession(c, AuthFrom(c).Session)
	return c.Redirect(http.StatusSeeOther, LoginPath)
}

// Home is the landing page after sign-in.
func (h *AuthHandler) Home(c echo.Context) error {
	s := AuthFrom(c).Session
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": s.UserID,
		"email":   s.Email,
		"role":    s.Role,
	})
}

// replaceSession points the cookie at next and drops any session the browser
// held before.
func (h *AuthHandler) replaceSession(c echo.Context, next *domain.Session) {
	if prev := AuthFrom(c).Session; prev != nil && prev.ID != next.ID {
		if err := h.usecase.Logout(c.Request().Context(), prev, c.RealIP()); err != nil {
			h.logger.Warn("drop previous session", slog.String("error", err.Error()))
		}
	}
	if err := h.cookie.set(c, next.ID); err != nil {
		h.logger.Error("set session cookie", slog.String("error", err.Error()))
	}
}

func (h *AuthHandler) endSession(c echo.Context, session *domain.Session) {
	if err := h.usecase.Logout(c.Request().Context(), session, c.RealIP()); err != nil {
		h.logger.Warn("logout", slog.String("error", err.Error()))
	}
	h.cookie.clear(c)
}
