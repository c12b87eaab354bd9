package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/middleware"
	"github.com/iliyamo/course-marketplace/internal/service"
)

// AuthHandler serves /api/auth: credentials plus the caller's own profile
// and enrollment progress.
type AuthHandler struct {
	Auth    *service.AuthService
	Users   *service.UserService
	Timeout time.Duration
}

// NewAuthHandler wires the auth and user services into the /api/auth handlers.
func NewAuthHandler(auth *service.AuthService, users *service.UserService, timeout time.Duration) *AuthHandler {
	return &AuthHandler{Auth: auth, Users: users, Timeout: timeout}
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/auth/register and returns the new user with a token.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	s, err := h.Auth.Register(ctx, req)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user":    s.User,
		"token":   s.Token.Token,
	})
}

// Login handles POST /api/auth/login for every role.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	s, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{
		"message": "Login successful",
		"user":    s.User,
		"token":   s.Token.Token,
	})
}

// AdminLogin is Login restricted to admin and super_admin accounts.
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	s, err := h.Auth.AdminLogin(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{
		"message": "Admin login successful",
		"user":    s.User,
		"token":   s.Token.Token,
	})
}

// Logout revokes the presented token until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, middleware.RawToken(c), middleware.TokenClaims(c)); err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// Profile handles GET /api/auth/profile and returns the authenticated principal.
func (h *AuthHandler) Profile(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Auth.Profile(ctx, middleware.Principal(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"user": u})
}

// UpdateProfile handles PUT /api/auth/profile (name, phone, avatar).
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req service.ProfileInput
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Auth.UpdateProfile(ctx, middleware.Principal(c).ID, req)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "Profile updated successfully", "user": u})
}

// ChangePassword handles PUT /api/auth/password; the current password must match.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req service.PasswordInput
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, middleware.Principal(c).ID, req); err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "Password updated successfully"})
}

// UpdateProgress records the caller's progress through one of their
// enrolled courses.
func (h *AuthHandler) UpdateProgress(c echo.Context) error {
	courseID, err := parseID(c, "courseId")
	if err != nil {
		return respondError(c, err)
	}
	var req service.ProgressInput
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	enrollments, err := h.Users.UpdateProgress(ctx, middleware.Principal(c).ID, courseID, *req.Progress)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "Progress updated", "data": enrollments})
}
