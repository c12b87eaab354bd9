package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/course-marketplace/internal/repository"
)

// Error kinds. Handlers pick the HTTP status from the kind and show Msg.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrAccountLocked = errors.New("account locked")
	ErrForbidden     = errors.New("forbidden")
	ErrBadRequest    = errors.New("bad request")
	ErrNotFound      = repository.ErrNotFound
	ErrConflict      = repository.ErrConflict
)

// Error is a business-rule failure whose message is safe to return to
// clients.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

var (
	ErrInvalidCredentials = &Error{ErrUnauthorized, "Invalid credentials"}
	ErrAccountDeactivated = &Error{ErrUnauthorized, "Account is deactivated"}
	ErrInvalidToken       = &Error{ErrUnauthorized, "Not authorized, token failed"}
	ErrLocked             = &Error{ErrAccountLocked, "Account is temporarily locked due to too many failed login attempts"}

	ErrAdminRequired      = &Error{ErrForbidden, "Access denied. Admin privileges required."}
	ErrSuperAdminRequired = &Error{ErrForbidden, "Only a super admin can manage admin accounts"}

	ErrUserNotFound   = &Error{ErrNotFound, "User not found"}
	ErrCourseNotFound = &Error{ErrNotFound, "Course not found"}
	ErrReviewNotFound = &Error{ErrNotFound, "Review not found"}

	ErrEnrollmentNotFound = &Error{ErrNotFound, "You are not enrolled in this course"}

	ErrEmailTaken      = &Error{ErrConflict, "User with this email already exists"}
	ErrPhoneTaken      = &Error{ErrConflict, "User with this phone number already exists"}
	ErrAlreadyEnrolled = &Error{ErrConflict, "User is already enrolled in this course"}
	ErrAlreadyReviewed = &Error{ErrConflict, "You have already reviewed this course"}

	ErrNotEnrolled      = &Error{ErrBadRequest, "You must be enrolled in this course to review it"}
	ErrSelfDelete       = &Error{ErrBadRequest, "You cannot delete your own account"}
	ErrSelfDeactivate   = &Error{ErrBadRequest, "You cannot deactivate your own account"}
	ErrWrongPassword    = &Error{ErrBadRequest, "Current password is incorrect"}
	ErrInvalidImage     = &Error{ErrBadRequest, "Only image files (jpeg, png, gif, webp) are allowed"}
	ErrImageTooLarge    = &Error{ErrBadRequest, "File size too large. Maximum size is 5MB."}
	ErrProgressOutRange = &Error{ErrBadRequest, "Progress must be between 0 and 100"}
)

// EnrollmentsExistError blocks deletion of a course that still has
// enrollments.
type EnrollmentsExistError struct {
	Count int64
}

func (e *EnrollmentsExistError) Error() string {
	return fmt.Sprintf("Cannot delete course. It has %d enrolled students.", e.Count)
}

func (e *EnrollmentsExistError) Unwrap() error { return ErrConflict }

// storeError maps repository sentinels onto client-facing errors. Anything
// unrecognised is returned unchanged and treated as a server error.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrCourseNotFound):
		return ErrCourseNotFound
	case errors.Is(err, repository.ErrReviewNotFound):
		return ErrReviewNotFound
	case errors.Is(err, repository.ErrEmailExists):
		return ErrEmailTaken
	case errors.Is(err, repository.ErrPhoneExists):
		return ErrPhoneTaken
	case errors.Is(err, repository.ErrAlreadyEnrolled):
		return ErrAlreadyEnrolled
	case errors.Is(err, repository.ErrAlreadyReviewed):
		return ErrAlreadyReviewed
	case errors.Is(err, repository.ErrNotEnrolled):
		return ErrNotEnrolled
	}
	return err
}
