package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/model"
)

const msgAdminOnly = "Access denied. Admin privileges required."

// RequireRole lets the request through only when the principal set by
// JWTAuth holds one of roles. super_admin passes every admin check.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := Principal(c)
			if u == nil {
				return fail(c, http.StatusUnauthorized, msgNoToken)
			}
			if !u.Role.Satisfies(roles...) {
				return fail(c, http.StatusForbidden, msgAdminOnly)
			}
			return next(c)
		}
	}
}

// RequirePermission checks an admin capability such as "users" or
// "analytics".
func RequirePermission(p string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := Principal(c)
			if u == nil {
				return fail(c, http.StatusUnauthorized, msgNoToken)
			}
			if !u.HasPermission(p) {
				return fail(c, http.StatusForbidden, "Access denied. Missing permission: "+p)
			}
			return next(c)
		}
	}
}
