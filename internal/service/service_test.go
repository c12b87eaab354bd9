package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/course-marketplace/internal/config"
	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/queue"
	"github.com/iliyamo/course-marketplace/internal/service/servicetest"
	"github.com/iliyamo/course-marketplace/internal/utils"
)

type fixture struct {
	now     time.Time
	db      *servicetest.DB
	events  *servicetest.Events
	cache   *servicetest.Cache
	images  *servicetest.Images
	auth    *AuthService
	courses *CourseService
	users   *UserService
	stats   *StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:    time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		db:     servicetest.NewDB(),
		events: &servicetest.Events{},
		cache:  &servicetest.Cache{},
		images: servicetest.NewImages(),
	}
	clock := func() time.Time { return f.now }
	cfg := config.Config{
		JWTSecret:        "test-secret",
		TokenTTL:         30 * 24 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		LockoutThreshold: 5,
		LockoutWindow:    2 * time.Hour,
	}
	f.auth = NewAuthService(cfg, f.db.Users(), f.db.Tokens(), f.events)
	f.auth.Now = clock
	f.courses = NewCourseService(f.db.Courses(), f.db.Reviews(), f.images, f.events, f.cache)
	f.courses.Now = clock
	f.users = NewUserService(cfg, f.db.Users(), f.db.Enrollments(), f.events, f.cache)
	f.users.Now = clock
	f.stats = NewStatsService(f.db.Stats())
	f.stats.Now = clock
	return f
}

var ctx = context.Background()

func (f *fixture) register(t *testing.T, n int) *model.User {
	t.Helper()
	sess, err := f.auth.Register(ctx, RegisterInput{
		Name:     fmt.Sprintf("User %d", n),
		Email:    fmt.Sprintf("User%d@Example.com", n),
		Phone:    fmt.Sprintf("555000%04d", n),
		Password: "secret123",
	})
	require.NoError(t, err)
	return sess.User
}

func (f *fixture) principal(t *testing.T, role model.Role, n int) *model.User {
	t.Helper()
	hash, err := utils.HashPassword("secret123", bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{
		Name:         fmt.Sprintf("%s %d", role, n),
		Email:        fmt.Sprintf("%s%d@example.com", role, n),
		Phone:        fmt.Sprintf("444000%04d", n),
		PasswordHash: hash,
		Role:         role,
		Permissions:  model.DefaultPermissions(role),
		IsActive:     true,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	require.NoError(t, f.db.Users().Create(ctx, u))
	return u
}

func decodeCourse(t *testing.T, raw string) CourseInput {
	t.Helper()
	var in CourseInput
	require.NoError(t, sonic.Unmarshal([]byte(raw), &in))
	return in
}

const goCourse = `{
	"title": "Practical Go",
	"description": "Build production services in Go from scratch.",
	"category": "Programming",
	"subCategory": "Backend",
	"level": "Beginner",
	"price": 49.5,
	"duration": "10h",
	"lessons": 12
}`

func (f *fixture) course(t *testing.T, admin *model.User) *model.Course {
	t.Helper()
	c, err := f.courses.Create(ctx, admin.ID, decodeCourse(t, goCourse), nil)
	require.NoError(t, err)
	return c
}

func kindOf(err error) error {
	for _, k := range []error{ErrUnauthorized, ErrAccountLocked, ErrForbidden, ErrBadRequest, ErrNotFound, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

func TestRegisterNormalizesAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, 1)
	assert.Equal(t, "user1@example.com", u.Email)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Empty(t, u.Permissions)
	assert.Equal(t, []string{queue.EventUserRegistered}, f.events.Types())

	_, err := f.auth.Register(ctx, RegisterInput{Name: "Other", Email: "USER1@example.com", Phone: "5550009999", Password: "secret123"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.auth.Register(ctx, RegisterInput{Name: "Other", Email: "other@example.com", Phone: u.Phone, Password: "secret123"})
	assert.ErrorIs(t, err, ErrPhoneTaken)
}

func TestNextLoginFailure(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	n, lock := NextLoginFailure(0, nil, now, 5, 2*time.Hour)
	assert.Equal(t, 1, n)
	assert.Nil(t, lock)

	n, lock = NextLoginFailure(4, nil, now, 5, 2*time.Hour)
	assert.Equal(t, 5, n)
	require.NotNil(t, lock)
	assert.Equal(t, now.Add(2*time.Hour), *lock)

	n, lock = NextLoginFailure(5, &past, now, 5, 2*time.Hour)
	assert.Equal(t, 1, n)
	assert.Nil(t, lock)

	n, _ = NextLoginFailure(5, &future, now, 5, 2*time.Hour)
	assert.Equal(t, 6, n)
}

func TestLoginLockoutLifecycle(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, 1)

	for i := 1; i <= 4; i++ {
		_, err := f.auth.Login(ctx, u.Email, "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	got, _ := f.db.Users().GetByID(ctx, u.ID)
	assert.Equal(t, 4, got.LoginAttempts)
	assert.Nil(t, got.LockUntil)

	_, err := f.auth.Login(ctx, u.Email, "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	got, _ = f.db.Users().GetByID(ctx, u.ID)
	require.NotNil(t, got.LockUntil)
	assert.Equal(t, f.now.Add(2*time.Hour), *got.LockUntil)

	// correct password while locked
	_, err = f.auth.Login(ctx, u.Email, "secret123")
	assert.ErrorIs(t, err, ErrLocked)
	assert.Equal(t, ErrAccountLocked, kindOf(err))

	f.now = f.now.Add(2*time.Hour + time.Second)
	_, err = f.auth.Login(ctx, u.Email, "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	got, _ = f.db.Users().GetByID(ctx, u.ID)
	assert.Equal(t, 1, got.LoginAttempts)
	assert.Nil(t, got.LockUntil)

	sess, err := f.auth.Login(ctx, "  USER1@example.com ", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token.Token)
	got, _ = f.db.Users().GetByID(ctx, u.ID)
	assert.Zero(t, got.LoginAttempts)
	require.NotNil(t, got.LastLogin)
	assert.Equal(t, f.now, *got.LastLogin)
}

// racingUsers lets a concurrent failed login land between the read and the
// swap for the first `races` calls, or for every call when races < 0.
type racingUsers struct {
	*servicetest.Users
	races int
}

func (r *racingUsers) RecordLoginFailure(c context.Context, id uint64, seen, attempts int, lock *time.Time) (bool, error) {
	if r.races == 0 {
		return r.Users.RecordLoginFailure(c, id, seen, attempts, lock)
	}
	r.races--
	cur, err := r.Users.GetByID(c, id)
	if err != nil {
		return false, err
	}
	if _, err := r.Users.RecordLoginFailure(c, id, cur.LoginAttempts, cur.LoginAttempts+1, nil); err != nil {
		return false, err
	}
	return false, nil
}

func TestLoginFailureCountedUnderContention(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, 1)
	f.auth.Users = &racingUsers{Users: f.db.Users(), races: 4}

	_, err := f.auth.Login(ctx, u.Email, "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// four racing failures plus this one reach the threshold
	got, _ := f.db.Users().GetByID(ctx, u.ID)
	assert.Equal(t, 5, got.LoginAttempts)
	require.NotNil(t, got.LockUntil)
	assert.Equal(t, f.now.Add(2*time.Hour), *got.LockUntil)
}

func TestLoginFailureLosingEverySwap(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, 1)
	f.auth.threshold = 1000
	f.auth.Users = &racingUsers{Users: f.db.Users(), races: -1}

	_, err := f.auth.Login(ctx, u.Email, "wrong")
	require.ErrorIs(t, err, errFailureNotRecorded)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginCheckOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.Login(ctx, "nobody@example.com", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	u := f.register(t, 1)
	require.NoError(t, f.db.Users().SetActive(ctx, u.ID, false, f.now))
	_, err = f.auth.Login(ctx, u.Email, "wrong")
	assert.ErrorIs(t, err, ErrAccountDeactivated)
	got, _ := f.db.Users().GetByID(ctx, u.ID)
	assert.Zero(t, got.LoginAttempts)
}

func TestAdminLogin(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, 1)
	_, err := f.auth.AdminLogin(ctx, u.Email, "secret123")
	assert.ErrorIs(t, err, ErrAdminRequired)

	admin := f.principal(t, model.RoleSuperAdmin, 1)
	sess, err := f.auth.AdminLogin(ctx, admin.Email, "secret123")
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, sess.User.Role)
}

func TestAuthenticateAndLogout(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, 1)
	sess, err := f.auth.Login(ctx, u.Email, "secret123")
	require.NoError(t, err)

	p, claims, err := f.auth.Authenticate(ctx, sess.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)
	assert.Equal(t, "user", claims.Role)

	require.NoError(t, f.auth.Logout(ctx, sess.Token.Token, claims))
	_, _, err = f.auth.Authenticate(ctx, sess.Token.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = f.auth.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateRejectsDeactivatedAndExpired(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, 1)
	tok, err := utils.IssueToken("test-secret", u.ID, "user", time.Hour, f.now)
	require.NoError(t, err)

	require.NoError(t, f.db.Users().SetActive(ctx, u.ID, false, f.now))
	_, _, err = f.auth.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, ErrAccountDeactivated)

	require.NoError(t, f.db.Users().SetActive(ctx, u.ID, true, f.now))
	f.now = f.now.Add(2 * time.Hour)
	_, _, err = f.auth.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, 1)
	err := f.auth.ChangePassword(ctx, u.ID, PasswordInput{CurrentPassword: "nope", NewPassword: "newsecret"})
	assert.ErrorIs(t, err, ErrWrongPassword)

	require.NoError(t, f.auth.ChangePassword(ctx, u.ID, PasswordInput{CurrentPassword: "secret123", NewPassword: "newsecret"}))
	_, err = f.auth.Login(ctx, u.Email, "newsecret")
	assert.NoError(t, err)
}

func TestCreateCourseDefaults(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(t, model.RoleAdmin, 1)
	c := f.course(t, admin)

	assert.Equal(t, 49.5, c.OriginalPrice)
	assert.Equal(t, c.Price, c.OriginalPrice)
	assert.True(t, c.IsActive)
	assert.Equal(t, admin.ID, c.CreatedBy)
	assert.Equal(t, f.now, c.LastUpdated)
	assert.Zero(t, c.EnrolledStudents)
	assert.Equal(t, 1, f.cache.Count())
	assert.Contains(t, f.events.Types(), queue.EventCourseCreated)
}

func TestCourseInputAcceptsFormEncodedValues(t *testing.T) {
	in := decodeCourse(t, `{
		"title": "Practical Go",
		"description": "Build production services in Go from scratch.",
		"category": "Programming",
		"subCategory": "Backend",
		"level": "Advanced",
		"price": "19.99",
		"originalPrice": "39",
		"lessons": "3",
		"duration": "2h",
		"tags": "go, web , ,api",
		"requirements": "A laptop\n\nCuriosity\r\n",
		"whatYouWillLearn": ["HTTP", " SQL "],
		"overview": "{\"freeVideos\": true, \"description\": \"hands on\"}",
		"instructor": {"name": "Ada"},
		"lessonsContent": "[{\"order\": 2, \"title\": \"Two\"}, {\"order\": 1, \"title\": \"One\"}]",
		"isFeatured": "on"
	}`)
	c := in.course()
	assert.Equal(t, 19.99, c.Price)
	assert.Equal(t, 39.0, c.OriginalPrice)
	assert.Equal(t, 3, c.Lessons)
	assert.Equal(t, []string{"go", "web", "api"}, c.Tags)
	assert.Equal(t, []string{"A laptop", "Curiosity"}, c.Requirements)
	assert.Equal(t, []string{"HTTP", "SQL"}, c.WhatYouWillLearn)
	assert.Equal(t, []string{}, c.Curriculum)
	assert.True(t, c.Overview.FreeVideos)
	assert.Equal(t, "hands on", c.Overview.Description)
	assert.Equal(t, "Ada", c.Instructor.Name)
	assert.True(t, c.IsFeatured)
	require.Len(t, c.LessonsContent, 2)
	assert.Equal(t, model.Lesson{Order: 1, Title: "One"}, c.LessonsContent[0])
	assert.Equal(t, 2, c.LessonsContent[1].Order)
}

func TestUpdateCourseMergesAndReplacesImage(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(t, model.RoleAdmin, 1)
	c, err := f.courses.Create(ctx, admin.ID, decodeCourse(t, goCourse), &Upload{Filename: "a.png", Body: strings.NewReader("one")})
	require.NoError(t, err)
	first := c.CourseImage
	require.True(t, strings.HasPrefix(first, "/uploads/"))

	var p CoursePatch
	require.NoError(t, sonic.Unmarshal([]byte(`{"overview": {"weeklyClass": true}, "instructor": {"bio": "Gopher"}, "price": 10}`), &p))
	f.now = f.now.Add(time.Hour)
	updated, err := f.courses.Update(ctx, admin.ID, c.ID, p, &Upload{Filename: "b.png", Body: strings.NewReader("two")})
	require.NoError(t, err)

	assert.Equal(t, "Practical Go", updated.Title)
	assert.Equal(t, 10.0, updated.Price)
	assert.Equal(t, 49.5, updated.OriginalPrice)
	assert.True(t, updated.Overview.WeeklyClass)
	assert.Equal(t, "Gopher", updated.Instructor.Bio)
	assert.Equal(t, f.now, updated.LastUpdated)
	assert.NotEqual(t, first, updated.CourseImage)
	assert.Equal(t, []string{first}, f.images.Removed)
}

func TestListCoursesHidesInactiveFromPublic(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(t, model.RoleAdmin, 1)
	a := f.course(t, admin)
	f.course(t, admin)
	_, err := f.courses.SetStatus(ctx, a.ID, false)
	require.NoError(t, err)

	inactive := false
	list, page, err := f.courses.List(ctx, CourseQuery{IsActive: &inactive}, false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.True(t, list[0].IsActive)
	assert.Equal(t, int64(1), page.Total)

	list, page, err = f.courses.List(ctx, CourseQuery{IsActive: &inactive}, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	_, page, err = f.courses.List(ctx, CourseQuery{Limit: 1}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Pages)
}

func TestEnrollReviewApprovalFlow(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(t, model.RoleAdmin, 1)
	u := f.register(t, 1)
	c := f.course(t, admin)

	got, err := f.users.Enroll(ctx, admin.ID, u.ID, c.ID)
	require.NoError(t, err)
	require.Len(t, got.EnrolledCourses, 1)
	assert.Equal(t, c.ID, got.EnrolledCourses[0].CourseID)

	_, err = f.users.Enroll(ctx, admin.ID, u.ID, c.ID)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	assert.Equal(t, ErrConflict, kindOf(err))

	course, _ := f.courses.Get(ctx, c.ID)
	assert.Equal(t, 1, course.EnrolledStudents)
	assert.Equal(t, 49.5, course.TotalRevenue)

	rv, err := f.courses.AddReview(ctx, u.ID, c.ID, ReviewInput{Rating: 5, Comment: "great"})
	require.NoError(t, err)
	assert.False(t, rv.IsApproved)
	course, _ = f.courses.Get(ctx, c.ID)
	assert.Zero(t, course.NumReviews)
	assert.Zero(t, course.Rating)

	public, err := f.courses.ListReviews(ctx, c.ID, false)
	require.NoError(t, err)
	assert.Empty(t, public)

	course, err = f.courses.ModerateReview(ctx, c.ID, rv.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 5.0, course.Rating)
	assert.Equal(t, 1, course.NumReviews)

	_, err = f.courses.AddReview(ctx, u.ID, c.ID, ReviewInput{Rating: 1})
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	stranger := f.register(t, 2)
	_, err = f.courses.AddReview(ctx, stranger.ID, c.ID, ReviewInput{Rating: 1})
	assert.ErrorIs(t, err, ErrNotEnrolled)
	assert.Equal(t, ErrBadRequest, kindOf(err))

	_, err = f.courses.AddReview(ctx, u.ID, 999, ReviewInput{Rating: 1})
	assert.ErrorIs(t, err, ErrCourseNotFound)

	course, err = f.courses.DeleteReview(ctx, c.ID, rv.ID)
	require.NoError(t, err)
	assert.Zero(t, course.NumReviews)
}

func TestEnrollUnknownTargets(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(t, model.RoleAdmin, 1)
	c := f.course(t, admin)
	_, err := f.users.Enroll(ctx, admin.ID, 999, c.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.users.Enroll(ctx, admin.ID, admin.ID, 999)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestDeleteCourseBlockedByEnrollments(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(t, model.RoleAdmin, 1)
	u := f.register(t, 1)
	c := f.course(t, admin)
	_, err := f.users.Enroll(ctx, admin.ID, u.ID, c.ID)
	require.NoError(t, err)

	err = f.courses.Delete(ctx, admin.ID, c.ID)
	var exists *EnrollmentsExistError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, int64(1), exists.Count)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "Cannot delete course. It has 1 enrolled students.", err.Error())

	// the rejected delete leaves the course and its enrollment untouched
	after, err := f.courses.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Title, after.Title)
	assert.Equal(t, 1, after.EnrolledStudents)
	enrolled, err := f.db.Enrollments().ListForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, enrolled, 1)
	assert.Equal(t, c.ID, enrolled[0].CourseID)
	assert.Empty(t, f.images.Removed)

	empty := f.course(t, admin)
	require.NoError(t, f.courses.Delete(ctx, admin.ID, empty.ID))
	_, err = f.courses.Get(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrCourseNotFound)
	assert.ErrorIs(t, f.courses.Delete(ctx, admin.ID, empty.ID), ErrCourseNotFound)
}

func TestUserManagementGuards(t *testing.T) {
	f := newFixture(t)
	super := f.principal(t, model.RoleSuperAdmin, 1)
	admin := f.principal(t, model.RoleAdmin, 2)
	other := f.principal(t, model.RoleAdmin, 3)

	assert.ErrorIs(t, f.users.Delete(ctx, admin, admin.ID), ErrSelfDelete)
	assert.ErrorIs(t, f.users.Delete(ctx, admin, other.ID), ErrSuperAdminRequired)
	assert.Equal(t, ErrForbidden, kindOf(f.users.Delete(ctx, admin, other.ID)))

	_, err := f.users.SetStatus(ctx, admin, admin.ID, false)
	assert.ErrorIs(t, err, ErrSelfDeactivate)

	_, err = f.users.Create(ctx, admin, CreateUserInput{Name: "New Admin", Email: "na@example.com", Phone: "1112223333", Password: "secret123", Role: "admin"})
	assert.ErrorIs(t, err, ErrSuperAdminRequired)

	role := "admin"
	regular := f.register(t, 1)
	_, err = f.users.Update(ctx, admin, regular.ID, UpdateUserInput{Role: &role})
	assert.ErrorIs(t, err, ErrSuperAdminRequired)

	promoted, err := f.users.Update(ctx, super, regular.ID, UpdateUserInput{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, promoted.Role)
	assert.Equal(t, []string{model.PermAll}, promoted.Permissions)

	require.NoError(t, f.users.Delete(ctx, super, other.ID))
	_, err = f.users.Get(ctx, other.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateUserDefaults(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(t, model.RoleAdmin, 1)
	u, err := f.users.Create(ctx, admin, CreateUserInput{Name: "Learner", Email: "L@Example.com", Phone: "1112223333", Password: "secret123", Permissions: []string{"all"}})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Empty(t, u.Permissions)
	assert.Equal(t, "l@example.com", u.Email)
	assert.True(t, u.IsActive)
}

func TestDeleteUserRecomputesCourseProjections(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(t, model.RoleAdmin, 1)
	u := f.register(t, 1)
	c := f.course(t, admin)
	_, err := f.users.Enroll(ctx, admin.ID, u.ID, c.ID)
	require.NoError(t, err)
	rv, err := f.courses.AddReview(ctx, u.ID, c.ID, ReviewInput{Rating: 4})
	require.NoError(t, err)
	_, err = f.courses.ModerateReview(ctx, c.ID, rv.ID, true)
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(ctx, admin, u.ID))
	course, err := f.courses.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, course.EnrolledStudents)
	assert.Zero(t, course.TotalRevenue)
	assert.Zero(t, course.NumReviews)
	assert.Zero(t, course.Rating)

	// nothing references the course any more
	assert.NoError(t, f.courses.Delete(ctx, admin.ID, c.ID))
}

func TestUpdateProgress(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(t, model.RoleAdmin, 1)
	u := f.register(t, 1)
	c := f.course(t, admin)

	_, err := f.users.UpdateProgress(ctx, u.ID, c.ID, 50)
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)

	_, err = f.users.Enroll(ctx, admin.ID, u.ID, c.ID)
	require.NoError(t, err)
	_, err = f.users.UpdateProgress(ctx, u.ID, c.ID, 101)
	assert.ErrorIs(t, err, ErrProgressOutRange)

	list, err := f.users.UpdateProgress(ctx, u.ID, c.ID, 60)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 60, list[0].Progress)
}

func TestGrowth(t *testing.T) {
	assert.Zero(t, Growth(10, 0))
	assert.Equal(t, 150.0, Growth(3, 2))
	assert.Equal(t, 33.3, Growth(1, 3))
}

func TestLastMonths(t *testing.T) {
	months := LastMonths(time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), 6)
	require.Len(t, months, 6)
	assert.Equal(t, 2025, months[0].Year)
	assert.Equal(t, time.September, months[0].Month)
	assert.Equal(t, time.February, months[5].Month)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), months[5].Window.To)
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", TimeAgo(now.Add(-10*time.Second), now))
	assert.Equal(t, "1 minute ago", TimeAgo(now.Add(-time.Minute), now))
	assert.Equal(t, "5 hours ago", TimeAgo(now.Add(-5*time.Hour), now))
	assert.Equal(t, "3 days ago", TimeAgo(now.Add(-72*time.Hour), now))
}

func TestDashboardAndActivities(t *testing.T) {
	f := newFixture(t)
	start := f.now
	f.now = start.AddDate(0, -3, 0)
	admin := f.principal(t, model.RoleAdmin, 1)
	old := f.register(t, 1)
	c := f.course(t, admin)
	_, err := f.users.Enroll(ctx, admin.ID, old.ID, c.ID)
	require.NoError(t, err)

	f.now = start.Add(-time.Hour)
	fresh := f.register(t, 2)
	f.now = start.Add(-30 * time.Minute)
	_, err = f.users.Enroll(ctx, admin.ID, fresh.ID, c.ID)
	require.NoError(t, err)
	f.now = start

	d, err := f.stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.TotalUsers)
	assert.Equal(t, int64(1), d.TotalCourses)
	assert.Equal(t, int64(2), d.ActiveEnrollments)
	assert.Equal(t, 99.0, d.TotalRevenue)
	assert.Equal(t, 50.0, d.UserGrowth)
	assert.Equal(t, 100.0, d.EnrollmentGrowth)
	assert.Equal(t, 100.0, d.RevenueGrowth)
	assert.Zero(t, d.CourseGrowth)

	feed, err := f.stats.Activities(ctx, 3)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, "course_enrollment", feed[0].Type)
	assert.Equal(t, "30 minutes ago", feed[0].Time)
	assert.Equal(t, "user_registration", feed[1].Type)
	assert.Equal(t, "1 hour ago", feed[1].Time)
	for i := 1; i < len(feed); i++ {
		assert.False(t, feed[i].At.After(feed[i-1].At))
	}

	monthly, err := f.stats.MonthlyData(ctx)
	require.NoError(t, err)
	require.Len(t, monthly, 6)
	assert.Equal(t, "Mar", monthly[5].Month)
	assert.Equal(t, int64(1), monthly[5].Enrollments)
	assert.Equal(t, 49.5, monthly[5].Revenue)
	assert.Equal(t, "Dec", monthly[2].Month)
	assert.Equal(t, int64(2), monthly[2].Users)

	us, err := f.stats.UserStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), us.AdminUsers)
	assert.Equal(t, int64(2), us.RegularUsers)

	cs, err := f.stats.CourseStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cs.Active)
	require.Len(t, cs.TopCourses, 1)
	assert.Equal(t, int64(2), cs.TopCourses[0].EnrolledStudents)
}

func TestLessonsOrderStable(t *testing.T) {
	l := LessonList{
		{Order: 3, Title: "C"},
		{Title: "first untagged"},
		{Order: 1, Title: "A"},
		{Title: "second untagged"},
	}
	var titles []string
	for i, ls := range l.lessons() {
		assert.Equal(t, i+1, ls.Order)
		titles = append(titles, ls.Title)
	}
	assert.Equal(t, []string{"first untagged", "second untagged", "A", "C"}, titles)
}
