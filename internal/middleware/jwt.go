package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/service"
	"github.com/iliyamo/course-marketplace/internal/utils"
)

// Authenticator resolves a raw bearer token to an active principal.
// *service.AuthService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*model.User, *utils.Claims, error)
}

const msgNoToken = "Not authorized, no token"

// fail writes the failure envelope used across the API.
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c echo.Context) (string, bool) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(h[7:])
	return raw, raw != ""
}

// JWTAuth rejects requests without a valid bearer token for an active
// account, then stores the principal, its claims and the raw token in the
// context.
func JWTAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return fail(c, http.StatusUnauthorized, msgNoToken)
			}
			u, claims, err := auth.Authenticate(c.Request().Context(), raw)
			if err != nil {
				if errors.Is(err, service.ErrUnauthorized) {
					return fail(c, http.StatusUnauthorized, err.Error())
				}
				c.Logger().Errorf("auth: %v", err)
				return fail(c, http.StatusInternalServerError, "Server error")
			}
			setPrincipal(c, u, claims, raw)
			return next(c)
		}
	}
}

// OptionalAuth attaches the principal when a valid token is presented and
// otherwise lets the request through anonymously.
func OptionalAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearerToken(c); ok {
				if u, claims, err := auth.Authenticate(c.Request().Context(), raw); err == nil {
					setPrincipal(c, u, claims, raw)
				}
			}
			return next(c)
		}
	}
}

func setPrincipal(c echo.Context, u *model.User, claims *utils.Claims, raw string) {
	c.Set(principalKey, u)
	c.Set(claimsKey, claims)
	c.Set(tokenKey, raw)
}
