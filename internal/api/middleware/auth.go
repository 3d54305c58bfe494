package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/job-dispatch/internal/core/domain"
	"github.com/fieldops/job-dispatch/internal/core/ports"
)

// ClaimsKey is the echo.Context key under which verified claims are stored.
const ClaimsKey = "claims"

// Auth validates the bearer token and injects its claims into the context.
func Auth(tokens ports.TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			if err := authenticate(c, tokens, authHeader); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// OptionalAuth behaves like Auth when an Authorization header is present and
// passes the request through untouched when it is absent. A header that is
// present but invalid is still rejected.
func OptionalAuth(tokens ports.TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return next(c)
			}
			if err := authenticate(c, tokens, authHeader); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func authenticate(c echo.Context, tokens ports.TokenValidator, authHeader string) error {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}

	claims, err := tokens.Validate(strings.TrimSpace(parts[1]))
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	c.Set(ClaimsKey, claims)
	return nil
}

// ClaimsFrom returns the claims stored by Auth, or nil when the request is
// unauthenticated.
func ClaimsFrom(c echo.Context) *domain.Claims {
	claims, _ := c.Get(ClaimsKey).(*domain.Claims)
	return claims
}
