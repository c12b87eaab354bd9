package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/middleware"
	"github.com/iliyamo/course-marketplace/internal/service"
)

// CourseHandler serves the catalog, admin course management and reviews.
type CourseHandler struct {
	Courses *service.CourseService
	Stats   *service.StatsService
	Timeout time.Duration
}

// NewCourseHandler wires the course and stats services into the /api/courses handlers.
func NewCourseHandler(courses *service.CourseService, stats *service.StatsService, timeout time.Duration) *CourseHandler {
	return &CourseHandler{Courses: courses, Stats: stats, Timeout: timeout}
}

// List returns a page of courses. An admin token lifts the active-only
// restriction.
func (h *CourseHandler) List(c echo.Context) error {
	var q service.CourseQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return respondError(c, &service.Error{Kind: service.ErrBadRequest, Msg: "Invalid query parameters"})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	courses, page, err := h.Courses.List(ctx, q, middleware.IsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"data": courses, "pagination": page})
}

// Featured handles GET /api/courses/featured and returns active featured courses.
func (h *CourseHandler) Featured(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	courses, err := h.Courses.Featured(ctx, queryInt(c, "limit"))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"data": courses})
}

// Categories handles GET /api/courses/categories.
func (h *CourseHandler) Categories(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	cats, err := h.Courses.Categories(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"data": cats})
}

// Get returns one course. Inactive courses are hidden from non-admins.
func (h *CourseHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	course, err := h.Courses.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if !course.IsActive && !middleware.IsAdmin(c) {
		return respondError(c, service.ErrCourseNotFound)
	}
	return success(c, http.StatusOK, echo.Map{"data": course})
}

// Create accepts JSON or multipart; a courseImage file wins over a URL.
func (h *CourseHandler) Create(c echo.Context) error {
	var in service.CourseInput
	img, cleanup, err := decodeCourse(c, &in)
	if err != nil {
		return respondError(c, err)
	}
	defer cleanup()
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	course, err := h.Courses.Create(ctx, middleware.Principal(c).ID, in, img)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusCreated, echo.Map{"message": "Course created successfully", "data": course})
}

// Update handles PUT /api/courses/:id. Absent fields keep their value and a new
// upload replaces the stored image.
func (h *CourseHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var p service.CoursePatch
	img, cleanup, err := decodeCourse(c, &p)
	if err != nil {
		return respondError(c, err)
	}
	defer cleanup()
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	course, err := h.Courses.Update(ctx, middleware.Principal(c).ID, id, p, img)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "Course updated successfully", "data": course})
}

// Delete handles DELETE /api/courses/:id; courses with enrollments are refused.
func (h *CourseHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Courses.Delete(ctx, middleware.Principal(c).ID, id); err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "Course deleted successfully"})
}

type courseStatusReq struct {
	IsActive *service.Bool `json:"isActive"`
}

// SetStatus sets isActive, or flips it when the body omits the field.
func (h *CourseHandler) SetStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req courseStatusReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	var active bool
	if req.IsActive != nil {
		active = bool(*req.IsActive)
	} else {
		cur, err := h.Courses.Get(ctx, id)
		if err != nil {
			return respondError(c, err)
		}
		active = !cur.IsActive
	}
	course, err := h.Courses.SetStatus(ctx, id, active)
	if err != nil {
		return respondError(c, err)
	}
	msg := "Course deactivated successfully"
	if active {
		msg = "Course activated successfully"
	}
	return success(c, http.StatusOK, echo.Map{"message": msg, "data": course})
}

// Reviews lists approved reviews; admins also see pending ones.
func (h *CourseHandler) Reviews(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	reviews, err := h.Courses.ListReviews(ctx, id, middleware.IsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"data": reviews})
}

// AddReview handles POST /api/courses/:id/reviews for enrolled users. The review
// stays hidden until an admin approves it.
func (h *CourseHandler) AddReview(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in service.ReviewInput
	if err := bindValid(c, &in); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	rv, err := h.Courses.AddReview(ctx, middleware.Principal(c).ID, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusCreated, echo.Map{
		"message": "Review submitted and awaiting approval",
		"data":    rv,
	})
}

type reviewStatusReq struct {
	IsApproved *service.Bool `json:"isApproved" validate:"required"`
}

// ModerateReview handles PATCH /api/courses/:id/reviews/:reviewId and sets isApproved.
func (h *CourseHandler) ModerateReview(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	reviewID, err := parseID(c, "reviewId")
	if err != nil {
		return respondError(c, err)
	}
	var req reviewStatusReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	course, err := h.Courses.ModerateReview(ctx, id, reviewID, bool(*req.IsApproved))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "Review updated successfully", "data": course})
}

// DeleteReview handles DELETE /api/courses/:id/reviews/:reviewId.
func (h *CourseHandler) DeleteReview(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	reviewID, err := parseID(c, "reviewId")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	course, err := h.Courses.DeleteReview(ctx, id, reviewID)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "Review deleted successfully", "data": course})
}

// CourseStats is the admin course analytics view.
func (h *CourseHandler) CourseStats(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	stats, err := h.Stats.CourseStats(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"data": stats})
}
