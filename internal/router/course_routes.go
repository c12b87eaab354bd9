package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/handler"
	"github.com/iliyamo/course-marketplace/internal/middleware"
)

// RegisterCourses mounts /api/courses. Public reads go through the response
// cache and accept an optional token so admins see inactive courses and
// pending reviews.
func RegisterCourses(api *echo.Group, h *handler.CourseHandler, d Deps) {
	g := api.Group("/courses")

	public := g.Group("", middleware.OptionalAuth(d.Auth), middleware.NewRedisCache(d.Cache, d.Redis))
	public.GET("", h.List)
	public.GET("/featured", h.Featured)
	public.GET("/categories", h.Categories)
	public.GET("/:id", h.Get)
	public.GET("/:id/reviews", h.Reviews)

	g.POST("/:id/reviews", h.AddReview, middleware.JWTAuth(d.Auth))

	admin := g.Group("", adminOnly(d.Auth)...)
	admin.GET("/admin/stats", h.CourseStats)
	admin.POST("", h.Create)
	admin.PUT("/:id", h.Update)
	admin.DELETE("/:id", h.Delete)
	admin.PATCH("/:id/status", h.SetStatus)
	admin.PATCH("/:id/reviews/:reviewId", h.ModerateReview)
	admin.DELETE("/:id/reviews/:reviewId", h.DeleteReview)
}
