package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/handler"
	"github.com/iliyamo/course-marketplace/internal/middleware"
	"github.com/iliyamo/course-marketplace/internal/model"
)

// RegisterUsers mounts /api/users for admins holding the users permission.
func RegisterUsers(api *echo.Group, h *handler.UserHandler, d Deps) {
	g := api.Group("/users", adminOnly(d.Auth)...)
	g.Use(middleware.RequirePermission(model.PermUsers))

	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/stats", h.UserStats)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PATCH("/:id/status", h.SetStatus)
	g.POST("/:id/enroll", h.Enroll)
}

// RegisterDashboard mounts /api/admin/dashboard for admins holding the
// analytics permission.
func RegisterDashboard(api *echo.Group, h *handler.DashboardHandler, d Deps) {
	g := api.Group("/admin/dashboard", adminOnly(d.Auth)...)
	g.Use(middleware.RequirePermission(model.PermAnalytics))

	g.GET("/stats", h.Summary)
	g.GET("/activities", h.Activities)
	g.GET("/top-courses", h.TopCourses)
	g.GET("/monthly-data", h.MonthlyData)
}
