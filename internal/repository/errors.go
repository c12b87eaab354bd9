// Package repository holds the MySQL-backed stores. Sentinel errors below let
// the service layer tell failure scenarios apart without inspecting driver
// errors itself.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is the base for every "row does not exist" error. The typed
// variants wrap it so callers may match either.
var ErrNotFound = errors.New("not found")

var (
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrCourseNotFound = fmt.Errorf("course %w", ErrNotFound)
	ErrReviewNotFound = fmt.Errorf("review %w", ErrNotFound)
)

// ErrConflict is returned when a write is rejected because of existing
// state. The specific variants below wrap it.
var ErrConflict = errors.New("conflict")

var (
	ErrEmailExists     = fmt.Errorf("email already exists: %w", ErrConflict)
	ErrPhoneExists     = fmt.Errorf("phone already exists: %w", ErrConflict)
	ErrAlreadyEnrolled = fmt.Errorf("already enrolled: %w", ErrConflict)
	ErrAlreadyReviewed = fmt.Errorf("already reviewed: %w", ErrConflict)
	ErrHasEnrollments  = fmt.Errorf("course has enrollments: %w", ErrConflict)
	ErrNotEnrolled     = errors.New("not enrolled in course")
)

// MySQL server error numbers the stores react to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// duplicateKey reports whether err is a unique violation and, if so, the
// name of the violated key.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return "", false
	}
	// Message: Duplicate entry 'x' for key 'users.uq_users_email'
	msg := me.Message
	if i := strings.LastIndex(msg, "for key '"); i >= 0 {
		key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
		if dot := strings.LastIndex(key, "."); dot >= 0 {
			key = key[dot+1:]
		}
		return key, true
	}
	return "", true
}

// userWriteError maps unique violations on the users table.
func userWriteError(err error) error {
	key, ok := duplicateKey(err)
	if !ok {
		return err
	}
	if key == "uq_users_phone" {
		return ErrPhoneExists
	}
	return ErrEmailExists
}
