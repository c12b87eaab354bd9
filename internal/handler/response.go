package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/service"
	"github.com/iliyamo/course-marketplace/internal/validation"
)

// defaultTimeout bounds store calls when a handler is built without one.
const defaultTimeout = 5 * time.Second

var (
	errInvalidBody = &service.Error{Kind: service.ErrBadRequest, Msg: "Invalid request body"}
	errInvalidID   = &service.Error{Kind: service.ErrBadRequest, Msg: "Invalid ID format"}
)

// withTimeout derives the store context for one request.
func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// success writes {success: true} merged with body.
func success(c echo.Context, status int, body echo.Map) error {
	out := echo.Map{"success": true}
	for k, v := range body {
		out[k] = v
	}
	return c.JSON(status, out)
}

// statusOf picks the HTTP status for an error kind.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBadRequest), errors.Is(err, service.ErrConflict):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError renders err in the failure envelope. Validation failures
// carry the field list; unclassified errors are logged and reported as a
// generic server error.
func respondError(c echo.Context, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"message": "Validation Error",
			"errors":  verrs,
		})
	}
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		msg = "Server error"
	}
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// HTTPErrorHandler renders framework errors (unknown route, wrong method,
// oversized body) and anything a handler returned in the API envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		if he == echo.ErrNotFound {
			msg = "Route not found"
		}
		if he.Code >= http.StatusInternalServerError {
			c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(he.Code)
		} else {
			err = c.JSON(he.Code, echo.Map{"success": false, "message": msg})
		}
	} else {
		err = respondError(c, err)
	}
	if err != nil {
		c.Logger().Error(err)
	}
}

// bindValid decodes the request body into dst and runs the validator.
func bindValid(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return errInvalidBody
	}
	return c.Validate(dst)
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// queryInt reads an optional integer query parameter; malformed values
// count as absent.
func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}
