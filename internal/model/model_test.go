package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoleSatisfies(t *testing.T) {
	assert.True(t, RoleSuperAdmin.Satisfies(RoleAdmin))
	assert.True(t, RoleAdmin.Satisfies(RoleAdmin))
	assert.False(t, RoleAdmin.Satisfies(RoleSuperAdmin))
	assert.False(t, RoleUser.Satisfies(RoleAdmin))
	assert.True(t, RoleInstructor.Satisfies(RoleUser, RoleInstructor))
	assert.False(t, Role("owner").Valid())
}

func TestHasPermission(t *testing.T) {
	admin := &User{Role: RoleAdmin, Permissions: []string{PermCourses}}
	assert.True(t, admin.HasPermission(PermCourses))
	assert.False(t, admin.HasPermission(PermUsers))

	admin.Permissions = []string{PermAll}
	assert.True(t, admin.HasPermission(PermUsers))

	assert.True(t, (&User{Role: RoleSuperAdmin}).HasPermission(PermAnalytics))
	assert.False(t, (&User{Role: RoleUser, Permissions: []string{PermAll}}).HasPermission(PermUsers))
}

func TestIsLocked(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := &User{}
	assert.False(t, u.IsLocked(now))

	until := now.Add(time.Minute)
	u.LockUntil = &until
	assert.True(t, u.IsLocked(now))
	assert.False(t, u.IsLocked(until))
}
