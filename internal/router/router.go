// Package router assembles the Echo instance: global middleware, the /api
// route table and static uploads.
package router

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/course-marketplace/internal/config"
	"github.com/iliyamo/course-marketplace/internal/handler"
	"github.com/iliyamo/course-marketplace/internal/middleware"
	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/service"
	"github.com/iliyamo/course-marketplace/internal/validation"
)

// Deps is everything the HTTP layer needs. Redis may be nil, which turns
// rate limiting and response caching off.
type Deps struct {
	Cfg           config.Config
	RateLimit     config.RateLimitConfig
	AuthRateLimit config.RateLimitConfig
	Cache         config.CacheConfig
	Redis         *redis.Client
	DB            handler.Pinger

	Auth    *service.AuthService
	Users   *service.UserService
	Courses *service.CourseService
	Stats   *service.StatsService
}

// New builds the server with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(LogLevel(d.Cfg.LogLevel))
	e.JSONSerializer = handler.SonicSerializer{}
	e.Validator = validation.New()
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000,
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     d.Cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit("10M"))

	RegisterRoutes(e, d)
	return e
}

// LogLevel maps a LOG_LEVEL value to the gommon level used by the Echo
// logger. Unknown or empty values fall back to INFO so the access log is on.
func LogLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}

// RegisterRoutes mounts health, uploads and the /api tree.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	RegisterUploads(e, d.Cfg.UploadDir)

	timeout := d.Cfg.RequestTimeout
	api := e.Group("/api", middleware.NewTokenBucket(d.RateLimit, d.Redis))
	api.GET("/health", handler.Health(d.DB))

	RegisterAuth(api, handler.NewAuthHandler(d.Auth, d.Users, timeout), d)
	RegisterCourses(api, handler.NewCourseHandler(d.Courses, d.Stats, timeout), d)
	RegisterUsers(api, handler.NewUserHandler(d.Users, d.Stats, timeout), d)
	RegisterDashboard(api, handler.NewDashboardHandler(d.Stats, timeout), d)
}

// RegisterUploads serves stored images with a one-day cache lifetime.
func RegisterUploads(e *echo.Echo, dir string) {
	if dir == "" {
		return
	}
	g := e.Group("/uploads", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Cache-Control", "public, max-age=86400")
			return next(c)
		}
	})
	g.Static("/", dir)
}

// adminOnly is the guard chain for admin routes.
func adminOnly(auth middleware.Authenticator) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.JWTAuth(auth), middleware.RequireRole(model.RoleAdmin)}
}
