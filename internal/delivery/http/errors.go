package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/internal/usecase"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps a domain error to an HTTP status and a stable error code.
// Every API key rejection reason maps to 401.
func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "rate_limited", "rate limit exceeded"
	case errors.Is(err, domain.ErrAccountLocked):
		return http.StatusTooManyRequests, "account_locked", err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "authentication required"
	case errors.Is(err, domain.ErrInsufficientScope):
		return http.StatusForbidden, "insufficient_scope", "api key lacks the required scope"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable", "service temporarily unavailable"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidRole):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, domain.ErrInvalidTwoFactorCode):
		return http.StatusUnprocessableEntity, "invalid_code", err.Error()
	case errors.Is(err, domain.ErrTwoFactorState):
		return http.StatusConflict, "two_factor_state", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

// writeError renders err as {"error":{"code","message"}} and sets
// Retry-After for rate limit rejections.
func writeError(c echo.Context, err error) error {
	var rl *usecase.RateLimitError
	if errors.As(err, &rl) {
		wait := rl.Decision.RetryAfter(time.Now())
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)))
	}

	status, code, msg := statusFor(err)
	return c.JSON(status, echo.Map{"error": errorBody{Code: code, Message: msg}})
}

func setRateHeaders(c echo.Context, d usecase.RateDecision) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// outcome is the metrics label for a decision error.
func outcome(err error) string {
	switch {
	case err == nil:
		return "allowed"
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInsufficientScope):
		return "forbidden"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
