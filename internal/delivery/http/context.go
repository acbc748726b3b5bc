package http

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
)

// Channel is how a request was classified.
type Channel string

const (
	ChannelInfra Channel = "infra"
	ChannelAPI   Channel = "api"
	ChannelWeb   Channel = "web"
)

// AuthContext is the request-scoped answer to "who is calling". Exactly one
// of Session and Identity is set for authenticated requests.
type AuthContext struct {
	Channel  Channel
	Session  *domain.Session
	Identity *domain.Identity
}

type authContextKey struct{}

const echoAuthKey = "auth"

// WithAuth stores ac in both the echo context and the request context so
// handlers and downstream services can read it.
func WithAuth(c echo.Context, ac *AuthContext) {
	c.Set(echoAuthKey, ac)
	req := c.Request()
	c.SetRequest(req.WithContext(context.WithValue(req.Context(), authContextKey{}, ac)))
}

// AuthFrom returns the AuthContext attached by the Authorizer. It never
// returns nil.
func AuthFrom(c echo.Context) *AuthContext {
	if ac, ok := c.Get(echoAuthKey).(*AuthContext); ok && ac != nil {
		return ac
	}
	return &AuthContext{}
}

// AuthFromContext is AuthFrom for code that only has a context.Context.
func AuthFromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return ac, ok
}
