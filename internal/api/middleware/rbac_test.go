package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/job-dispatch/internal/core/domain"
	"github.com/fieldops/job-dispatch/internal/core/policy"
)

func runRBAC(t *testing.T, action policy.Action, claims *domain.Claims) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if claims != nil {
		c.Set(ClaimsKey, claims)
	}

	called := false
	handler := RBAC(action)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, called
}

func claims(roles ...domain.Role) *domain.Claims {
	return &domain.Claims{SubjectID: 3, Username: "u", Roles: domain.NewRoleSet(roles...)}
}

func TestRBAC_Allows(t *testing.T) {
	rec, called := runRBAC(t, policy.ActionListAllJobs, claims(domain.RoleScheduler))
	if !called {
		t.Fatalf("next handler not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRBAC_Forbids(t *testing.T) {
	rec, called := runRBAC(t, policy.ActionListAllJobs, claims(domain.RoleTechnician))
	if called {
		t.Fatalf("should not reach next handler")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRBAC_MissingClaims(t *testing.T) {
	rec, called := runRBAC(t, policy.ActionDeleteJob, nil)
	if called {
		t.Fatalf("should not reach next handler")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRBAC_AnyQualifyingRole(t *testing.T) {
	rec, called := runRBAC(t, policy.ActionListOwnJobs, claims(domain.RoleAdmin, domain.RoleCustomer))
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
