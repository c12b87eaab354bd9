package router

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/course-marketplace/internal/config"
	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/service"
	"github.com/iliyamo/course-marketplace/internal/service/servicetest"
	"github.com/iliyamo/course-marketplace/internal/utils"
)

type testEnv struct {
	t      *testing.T
	e      *echo.Echo
	db     *servicetest.DB
	images *servicetest.Images
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		JWTSecret:        "router-test-secret",
		TokenTTL:         time.Hour,
		BcryptCost:       bcrypt.MinCost,
		UploadDir:        t.TempDir(),
		LockoutThreshold: 5,
		LockoutWindow:    2 * time.Hour,
		AllowedOrigins:   []string{"http://localhost:3000"},
	}
	db := servicetest.NewDB()
	images := servicetest.NewImages()
	events := &servicetest.Events{}
	cache := &servicetest.Cache{}

	e := New(Deps{
		Cfg:     cfg,
		Auth:    service.NewAuthService(cfg, db.Users(), db.Tokens(), events),
		Users:   service.NewUserService(cfg, db.Users(), db.Enrollments(), events, cache),
		Courses: service.NewCourseService(db.Courses(), db.Reviews(), images, events, cache),
		Stats:   service.NewStatsService(db.Stats()),
	})
	return &testEnv{t: t, e: e, db: db, images: images, dir: cfg.UploadDir}
}

type reply struct {
	code   int
	header http.Header
	body   map[string]any
}

func (v *testEnv) send(req *http.Request, token string) reply {
	v.t.Helper()
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	out := reply{code: rec.Code, header: rec.Header()}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(v.t, sonic.Unmarshal(rec.Body.Bytes(), &out.body), rec.Body.String())
	}
	return out
}

func (v *testEnv) do(method, path string, body any, token string) reply {
	v.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		raw, err := sonic.Marshal(body)
		require.NoError(v.t, err)
		buf.Write(raw)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return v.send(req, token)
}

func (v *testEnv) register(n int) (token string, id uint64) {
	v.t.Helper()
	r := v.do(http.MethodPost, "/api/auth/register", echo.Map{
		"name":     fmt.Sprintf("Student %d", n),
		"email":    fmt.Sprintf("student%d@example.com", n),
		"phone":    fmt.Sprintf("555000%04d", n),
		"password": "secret123",
	}, "")
	require.Equal(v.t, http.StatusCreated, r.code, r.body)
	user := r.body["user"].(map[string]any)
	return r.body["token"].(string), uint64(user["id"].(float64))
}

func (v *testEnv) admin() string {
	v.t.Helper()
	hash, err := utils.HashPassword("admin-pass", bcrypt.MinCost)
	require.NoError(v.t, err)
	now := time.Now().UTC()
	require.NoError(v.t, v.db.Users().Create(context.Background(), &model.User{
		Name:         "Root",
		Email:        "root@example.com",
		Phone:        "9990001111",
		PasswordHash: hash,
		Role:         model.RoleSuperAdmin,
		Permissions:  model.DefaultPermissions(model.RoleSuperAdmin),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
	r := v.do(http.MethodPost, "/api/auth/admin/login", echo.Map{"email": "root@example.com", "password": "admin-pass"}, "")
	require.Equal(v.t, http.StatusOK, r.code, r.body)
	return r.body["token"].(string)
}

var courseBody = echo.Map{
	"title":       "Practical Go",
	"description": "Build production services in Go from scratch.",
	"category":    "Programming",
	"subCategory": "Backend",
	"level":       "Beginner",
	"price":       49.5,
	"duration":    "10h",
	"lessons":     12,
}

func (v *testEnv) course(token string) uint64 {
	v.t.Helper()
	r := v.do(http.MethodPost, "/api/courses", courseBody, token)
	require.Equal(v.t, http.StatusCreated, r.code, r.body)
	return uint64(r.body["data"].(map[string]any)["id"].(float64))
}

func TestAuthFlow(t *testing.T) {
	v := newTestEnv(t)
	token, _ := v.register(1)

	dup := v.do(http.MethodPost, "/api/auth/register", echo.Map{
		"name": "Other", "email": "STUDENT1@example.com", "phone": "5550009999", "password": "secret123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, dup.code)
	assert.Equal(t, false, dup.body["success"])
	assert.Equal(t, "User with this email already exists", dup.body["message"])

	login := v.do(http.MethodPost, "/api/auth/login", echo.Map{"email": "student1@example.com", "password": "secret123"}, "")
	require.Equal(t, http.StatusOK, login.code)
	assert.NotEmpty(t, login.body["token"])

	profile := v.do(http.MethodGet, "/api/auth/profile", nil, token)
	require.Equal(t, http.StatusOK, profile.code)
	assert.Equal(t, "student1@example.com", profile.body["user"].(map[string]any)["email"])

	out := v.do(http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, out.code)

	again := v.do(http.MethodGet, "/api/auth/profile", nil, token)
	assert.Equal(t, http.StatusUnauthorized, again.code)

	none := v.do(http.MethodGet, "/api/auth/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, none.code)
	assert.Equal(t, "Not authorized, no token", none.body["message"])
}

func TestRegisterValidationErrors(t *testing.T) {
	v := newTestEnv(t)
	r := v.do(http.MethodPost, "/api/auth/register", echo.Map{"name": "A", "email": "bad", "phone": "12"}, "")
	require.Equal(t, http.StatusBadRequest, r.code)
	assert.Equal(t, "Validation Error", r.body["message"])

	fields := map[string]bool{}
	for _, fe := range r.body["errors"].([]any) {
		fields[fe.(map[string]any)["field"].(string)] = true
	}
	for _, f := range []string{"name", "email", "phone", "password"} {
		assert.True(t, fields[f], f)
	}
}

func TestLoginLockout(t *testing.T) {
	v := newTestEnv(t)
	v.register(1)

	bad := echo.Map{"email": "student1@example.com", "password": "wrong-pass"}
	for i := 0; i < 5; i++ {
		r := v.do(http.MethodPost, "/api/auth/login", bad, "")
		require.Equal(t, http.StatusUnauthorized, r.code)
		assert.Equal(t, "Invalid credentials", r.body["message"])
	}
	r := v.do(http.MethodPost, "/api/auth/login", echo.Map{"email": "student1@example.com", "password": "secret123"}, "")
	assert.Equal(t, http.StatusLocked, r.code)
}

func TestAdminGuards(t *testing.T) {
	v := newTestEnv(t)
	token, _ := v.register(1)

	r := v.do(http.MethodPost, "/api/auth/admin/login", echo.Map{"email": "student1@example.com", "password": "secret123"}, "")
	assert.Equal(t, http.StatusForbidden, r.code)

	assert.Equal(t, http.StatusUnauthorized, v.do(http.MethodGet, "/api/users", nil, "").code)
	assert.Equal(t, http.StatusForbidden, v.do(http.MethodGet, "/api/users", nil, token).code)
	assert.Equal(t, http.StatusForbidden, v.do(http.MethodGet, "/api/admin/dashboard/stats", nil, token).code)
	assert.Equal(t, http.StatusForbidden, v.do(http.MethodPost, "/api/courses", courseBody, token).code)

	admin := v.admin()
	users := v.do(http.MethodGet, "/api/users?limit=5", nil, admin)
	require.Equal(t, http.StatusOK, users.code)
	assert.Len(t, users.body["users"], 2)
	assert.EqualValues(t, 2, users.body["pagination"].(map[string]any)["total"])
}

func TestCourseVisibility(t *testing.T) {
	v := newTestEnv(t)
	admin := v.admin()
	id := v.course(admin)
	path := fmt.Sprintf("/api/courses/%d", id)

	got := v.do(http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, got.code)
	data := got.body["data"].(map[string]any)
	assert.Equal(t, 49.5, data["originalPrice"])
	assert.Equal(t, true, data["isActive"])

	off := v.do(http.MethodPatch, path+"/status", echo.Map{"isActive": false}, admin)
	require.Equal(t, http.StatusOK, off.code)
	assert.Equal(t, "Course deactivated successfully", off.body["message"])

	public := v.do(http.MethodGet, "/api/courses?isActive=false", nil, "")
	require.Equal(t, http.StatusOK, public.code)
	assert.Empty(t, public.body["data"])
	assert.Equal(t, http.StatusNotFound, v.do(http.MethodGet, path, nil, "").code)

	all := v.do(http.MethodGet, "/api/courses", nil, admin)
	assert.Len(t, all.body["data"], 1)
	assert.Equal(t, http.StatusOK, v.do(http.MethodGet, path, nil, admin).code)

	toggled := v.do(http.MethodPatch, path+"/status", nil, admin)
	require.Equal(t, http.StatusOK, toggled.code)
	assert.Equal(t, true, toggled.body["data"].(map[string]any)["isActive"])

	assert.Equal(t, http.StatusBadRequest, v.do(http.MethodGet, "/api/courses/abc", nil, "").code)
	assert.Equal(t, http.StatusNotFound, v.do(http.MethodGet, "/api/courses/999", nil, "").code)
}

func TestCreateCourseMultipart(t *testing.T) {
	v := newTestEnv(t)
	admin := v.admin()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, val := range map[string]string{
		"title":                         "Web Design Basics",
		"description":             "Layouts, colour and typography for the web.",
		"category":                   "Design",
		"subCategory":             "Web",
		"level":                         "Intermediate",
		"price":                         "19.99",
		"duration":                   "6 weeks",
		"lessons":                     "3",
		"instructor[name]":   "Ada",
		"overview.freeNotes": "true",
		"tags":                           "css, html , ",
		"requirements":           "A browser\nAn editor",
	} {
		require.NoError(t, w.WriteField(k, val))
	}
	fw, err := w.CreateFormFile("courseImage", "cover.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("png-bytes"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/courses", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	r := v.send(req, admin)
	require.Equal(t, http.StatusCreated, r.code, r.body)

	data := r.body["data"].(map[string]any)
	assert.Equal(t, "/uploads/courses/test-x-cover.png", data["courseImage"])
	assert.Equal(t, 19.99, data["price"])
	assert.Equal(t, 19.99, data["originalPrice"])
	assert.Equal(t, "Ada", data["instructor"].(map[string]any)["name"])
	assert.Equal(t, true, data["overview"].(map[string]any)["freeNotes"])
	assert.Equal(t, []any{"css", "html"}, data["tags"])
	assert.Equal(t, []any{"A browser", "An editor"}, data["requirements"])
	assert.Contains(t, v.images.Files, "/uploads/courses/test-x-cover.png")
}

func TestEnrollReviewAndDelete(t *testing.T) {
	v := newTestEnv(t)
	admin := v.admin()
	student, studentID := v.register(1)
	courseID := v.course(admin)
	coursePath := fmt.Sprintf("/api/courses/%d", courseID)

	notYet := v.do(http.MethodPost, coursePath+"/reviews", echo.Map{"rating": 5, "comment": "Great"}, student)
	assert.Equal(t, http.StatusBadRequest, notYet.code)

	enrolled := v.do(http.MethodPost, fmt.Sprintf("/api/users/%d/enroll", studentID), echo.Map{"courseId": courseID}, admin)
	require.Equal(t, http.StatusOK, enrolled.code, enrolled.body)
	assert.Len(t, enrolled.body["user"].(map[string]any)["enrolledCourses"], 1)

	twice := v.do(http.MethodPost, fmt.Sprintf("/api/users/%d/enroll", studentID), echo.Map{"courseId": courseID}, admin)
	assert.Equal(t, http.StatusBadRequest, twice.code)
	assert.Equal(t, "User is already enrolled in this course", twice.body["message"])

	progress := v.do(http.MethodPut, fmt.Sprintf("/api/auth/enrollments/%d/progress", courseID), echo.Map{"progress": 40}, student)
	require.Equal(t, http.StatusOK, progress.code, progress.body)

	added := v.do(http.MethodPost, coursePath+"/reviews", echo.Map{"rating": 5, "comment": "Great"}, student)
	require.Equal(t, http.StatusCreated, added.code, added.body)
	reviewID := uint64(added.body["data"].(map[string]any)["id"].(float64))

	pending := v.do(http.MethodGet, coursePath, nil, "")
	assert.EqualValues(t, 0, pending.body["data"].(map[string]any)["numReviews"])
	assert.Empty(t, v.do(http.MethodGet, coursePath+"/reviews", nil, "").body["data"])
	assert.Len(t, v.do(http.MethodGet, coursePath+"/reviews", nil, admin).body["data"], 1)

	approved := v.do(http.MethodPatch, fmt.Sprintf("%s/reviews/%d", coursePath, reviewID), echo.Map{"isApproved": true}, admin)
	require.Equal(t, http.StatusOK, approved.code, approved.body)
	course := approved.body["data"].(map[string]any)
	assert.EqualValues(t, 1, course["numReviews"])
	assert.EqualValues(t, 5, course["rating"])

	del := v.do(http.MethodDelete, coursePath, nil, admin)
	assert.Equal(t, http.StatusBadRequest, del.code)
	assert.Equal(t, "Cannot delete course. It has 1 enrolled students.", del.body["message"])

	dash := v.do(http.MethodGet, "/api/admin/dashboard/stats", nil, admin)
	require.Equal(t, http.StatusOK, dash.code)
	assert.Equal(t, true, dash.body["success"])

	acts := v.do(http.MethodGet, "/api/admin/dashboard/activities?limit=2", nil, admin)
	require.Equal(t, http.StatusOK, acts.code)
	assert.Len(t, acts.body["data"], 2)

	stats := v.do(http.MethodGet, "/api/courses/admin/stats", nil, admin)
	require.Equal(t, http.StatusOK, stats.code)
}

func TestSelfDeleteRejected(t *testing.T) {
	v := newTestEnv(t)
	admin := v.admin()
	me := v.do(http.MethodGet, "/api/auth/profile", nil, admin)
	id := uint64(me.body["user"].(map[string]any)["id"].(float64))

	r := v.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", id), nil, admin)
	assert.Equal(t, http.StatusBadRequest, r.code)
	assert.Equal(t, "You cannot delete your own account", r.body["message"])
}

func TestUnknownRouteAndUploads(t *testing.T) {
	v := newTestEnv(t)

	r := v.do(http.MethodGet, "/api/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, r.code)
	assert.Equal(t, false, r.body["success"])

	require.NoError(t, os.WriteFile(filepath.Join(v.dir, "hello.txt"), []byte("hi"), 0o644))
	up := v.do(http.MethodGet, "/uploads/hello.txt", nil, "")
	assert.Equal(t, http.StatusOK, up.code)
	assert.Equal(t, "public, max-age=86400", up.header.Get("Cache-Control"))

	health := v.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, health.code)
	assert.Equal(t, "ok", health.body["status"])
}

func TestAccessLogWritten(t *testing.T) {
	v := newTestEnv(t)
	var buf bytes.Buffer
	v.e.Logger.SetOutput(&buf)

	r := v.do(http.MethodGet, "/api/courses", nil, "")
	require.Equal(t, http.StatusOK, r.code)
	assert.Contains(t, buf.String(), "GET /api/courses 200")

	v.e.Logger.SetLevel(LogLevel("error"))
	buf.Reset()
	v.do(http.MethodGet, "/api/courses", nil, "")
	assert.Empty(t, buf.String())
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, log.INFO, LogLevel(""))
	assert.Equal(t, log.INFO, LogLevel("bogus"))
	assert.Equal(t, log.DEBUG, LogLevel("DEBUG"))
	assert.Equal(t, log.WARN, LogLevel("warning"))
	assert.Equal(t, log.OFF, LogLevel("off"))
}
