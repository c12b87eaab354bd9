package model

import (
	"slices"
	"time"
)

// Role names a principal's authority. A single users table carries every
// role; admin-only attributes (permissions, lockout bookkeeping) live on the
// same row for all of them.
type Role string

const (
	RoleUser       Role = "user"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleInstructor, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin is true for admin and super_admin.
func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

// Satisfies reports whether a principal holding r passes a check that
// allows the given roles. super_admin passes every admin check.
func (r Role) Satisfies(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a || (a == RoleAdmin && r == RoleSuperAdmin) {
			return true
		}
	}
	return false
}

// Capability strings stored in User.Permissions.
const (
	PermAll       = "all"
	PermUsers     = "users"
	PermCourses   = "courses"
	PermAnalytics = "analytics"
	PermSettings  = "settings"
)

// User mirrors the users table and doubles as the authenticated principal.
type User struct {
	ID              uint64       `json:"id"`
	Name            string       `json:"name"`
	Email           string       `json:"email"`
	Phone           string       `json:"phone"`
	PasswordHash    string       `json:"-"`
	Role            Role         `json:"role"`
	Permissions     []string     `json:"permissions"`
	Avatar          string       `json:"avatar"`
	IsActive        bool         `json:"isActive"`
	LoginAttempts   int          `json:"loginAttempts"`
	LockUntil       *time.Time   `json:"lockUntil,omitempty"`
	LastLogin       *time.Time   `json:"lastLogin,omitempty"`
	EnrolledCourses []Enrollment `json:"enrolledCourses"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// IsLocked reports whether the lockout window is still open at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// HasPermission reports whether the principal may use capability p.
// super_admin and holders of "all" may use everything; roles below admin
// hold no capabilities.
func (u *User) HasPermission(p string) bool {
	if u.Role == RoleSuperAdmin {
		return true
	}
	if !u.Role.IsAdmin() {
		return false
	}
	return slices.Contains(u.Permissions, PermAll) || slices.Contains(u.Permissions, p)
}

// DefaultPermissions is the capability set granted when an account is
// created without an explicit list.
func DefaultPermissions(r Role) []string {
	if r.IsAdmin() {
		return []string{PermAll}
	}
	return []string{}
}
