package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/service"
)

// DashboardHandler serves the admin dashboard widgets.
type DashboardHandler struct {
	Stats   *service.StatsService
	Timeout time.Duration
}

// NewDashboardHandler wires the stats service into the admin dashboard handlers.
func NewDashboardHandler(stats *service.StatsService, timeout time.Duration) *DashboardHandler {
	return &DashboardHandler{Stats: stats, Timeout: timeout}
}

// Summary handles GET /api/admin/dashboard/stats: totals and month-over-month growth.
func (h *DashboardHandler) Summary(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	stats, err := h.Stats.Dashboard(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"data": stats})
}

// Activities handles GET /api/admin/dashboard/activities and returns the merged
// feed of registrations, enrollments and new courses, newest first.
func (h *DashboardHandler) Activities(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	acts, err := h.Stats.Activities(ctx, queryInt(c, "limit"))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"data": acts})
}

// TopCourses handles GET /api/admin/dashboard/top-courses.
func (h *DashboardHandler) TopCourses(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	top, err := h.Stats.TopCourses(ctx, queryInt(c, "limit"))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"data": top})
}

// MonthlyData handles GET /api/admin/dashboard/monthly-data (last six months).
func (h *DashboardHandler) MonthlyData(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	months, err := h.Stats.MonthlyData(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"data": months})
}
