package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/middleware"
	"github.com/iliyamo/course-marketplace/internal/service"
)

// UserHandler serves admin user management under /api/users.
type UserHandler struct {
	Users   *service.UserService
	Stats   *service.StatsService
	Timeout time.Duration
}

// NewUserHandler wires the user and stats services into the /api/users handlers.
func NewUserHandler(users *service.UserService, stats *service.StatsService, timeout time.Duration) *UserHandler {
	return &UserHandler{Users: users, Stats: stats, Timeout: timeout}
}

// List handles GET /api/users with search, role and status filters.
func (h *UserHandler) List(c echo.Context) error {
	var q service.UserQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return respondError(c, &service.Error{Kind: service.ErrBadRequest, Msg: "Invalid query parameters"})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	users, page, err := h.Users.List(ctx, q)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"users": users, "pagination": page})
}

// Get handles GET /api/users/:id.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Users.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"user": u})
}

// Create handles POST /api/users. Only a super_admin may create admin accounts.
func (h *UserHandler) Create(c echo.Context) error {
	var in service.CreateUserInput
	if err := bindValid(c, &in); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Users.Create(ctx, middleware.Principal(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusCreated, echo.Map{"message": "User created successfully", "user": u})
}

// Update handles PUT /api/users/:id.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in service.UpdateUserInput
	if err := bindValid(c, &in); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Users.Update(ctx, middleware.Principal(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "User updated successfully", "user": u})
}

// Delete handles DELETE /api/users/:id. Self-deletion is refused and admin
// targets need a super_admin actor.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Users.Delete(ctx, middleware.Principal(c), id); err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "User deleted successfully"})
}

type userStatusReq struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// SetStatus handles PATCH /api/users/:id/status.
func (h *UserHandler) SetStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req userStatusReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Users.SetStatus(ctx, middleware.Principal(c), id, *req.IsActive)
	if err != nil {
		return respondError(c, err)
	}
	msg := "User deactivated successfully"
	if *req.IsActive {
		msg = "User activated successfully"
	}
	return success(c, http.StatusOK, echo.Map{"message": msg, "user": u})
}

type enrollReq struct {
	CourseID uint64 `json:"courseId" validate:"required"`
}

// Enroll signs a user up for a course at its current price.
func (h *UserHandler) Enroll(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req enrollReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Users.Enroll(ctx, middleware.Principal(c).ID, id, req.CourseID)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "User enrolled successfully", "user": u})
}

// UserStats handles GET /api/users/stats.
func (h *UserHandler) UserStats(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	stats, err := h.Stats.UserStats(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"data": stats})
}
