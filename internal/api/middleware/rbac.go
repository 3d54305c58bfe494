package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/job-dispatch/internal/core/policy"
)

// RBAC rejects callers whose role set cannot perform action on any resource.
// Ownership-dependent decisions are left to the services, which see the
// target resource.
func RBAC(action policy.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ClaimsFrom(c)
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}
			if !policy.Permits(claims.Roles, action, policy.Ownership{CallerID: claims.SubjectID}) {
				return echo.NewHTTPError(http.StatusForbidden, "access forbidden")
			}
			return next(c)
		}
	}
}
