package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/utils"
)

// Context keys set by JWTAuth and OptionalAuth.
const (
	principalKey = "principal"
	claimsKey    = "claims"
	tokenKey     = "token"
)

// Principal returns the authenticated user, or nil on anonymous requests.
func Principal(c echo.Context) *model.User {
	u, _ := c.Get(principalKey).(*model.User)
	return u
}

// TokenClaims returns the verified claims of the bearer token.
func TokenClaims(c echo.Context) *utils.Claims {
	cl, _ := c.Get(claimsKey).(*utils.Claims)
	return cl
}

// RawToken returns the bearer token exactly as the client sent it.
func RawToken(c echo.Context) string {
	s, _ := c.Get(tokenKey).(string)
	return s
}

// IsAdmin reports whether the request carries an admin or super_admin
// principal.
func IsAdmin(c echo.Context) bool {
	u := Principal(c)
	return u != nil && u.Role.IsAdmin()
}

// principalID keys per-user buckets. Anonymous callers share "anon".
func principalID(c echo.Context) string {
	if u := Principal(c); u != nil {
		return strconv.FormatUint(u.ID, 10)
	}
	return "anon"
}
