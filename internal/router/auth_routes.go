package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/handler"
	"github.com/iliyamo/course-marketplace/internal/middleware"
)

// RegisterAuth mounts /api/auth. Credential endpoints sit behind the
// stricter auth limiter; the rest need a valid token.
func RegisterAuth(api *echo.Group, a *handler.AuthHandler, d Deps) {
	g := api.Group("/auth")

	limited := g.Group("", middleware.NewTokenBucket(d.AuthRateLimit, d.Redis))
	limited.POST("/register", a.Register)
	limited.POST("/login", a.Login)
	limited.POST("/admin/login", a.AdminLogin)

	private := g.Group("", middleware.JWTAuth(d.Auth))
	private.POST("/logout", a.Logout)
	private.GET("/profile", a.Profile)
	private.PUT("/profile", a.UpdateProfile)
	private.PUT("/password", a.ChangePassword)
	private.PUT("/enrollments/:courseId/progress", a.UpdateProgress)
}
