package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-panel/internal/config"
	"github.com/FilipeAphrody/sentinel-panel/pkg/security"
)

// sessionCookie writes and reads the signed token that carries the session id.
type sessionCookie struct {
	name   string
	secret string
	maxAge time.Duration
	secure bool
}

func newSessionCookie(cfg config.SessionConfig) *sessionCookie {
	return &sessionCookie{
		name:   cfg.CookieName,
		secret: cfg.Secret,
		maxAge: cfg.MaxAge,
		secure: cfg.Secure,
	}
}

func (s *sessionCookie) set(c echo.Context, sessionID string) error {
	token, err := security.GenerateSessionToken(sessionID, s.secret, s.maxAge)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     s.name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *sessionCookie) clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// read returns the session id from a valid cookie. Tampered or expired
// tokens are treated as absent.
func (s *sessionCookie) read(c echo.Context) (string, bool) {
	ck, err := c.Cookie(s.name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	sid, err := security.ParseSessionToken(ck.Value, s.secret)
	if err != nil {
		return "", false
	}
	return sid, true
}
