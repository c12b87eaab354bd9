// Package servicetest provides in-memory implementations of the service
// ports. They enforce the same uniqueness rules and projection recomputes as
// the MySQL repositories so service tests exercise real behaviour.
package servicetest

import (
	"context"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/queue"
	"github.com/iliyamo/course-marketplace/internal/repository"
)

// DB is the shared state behind every fake store.
type DB struct {
	mu          sync.Mutex
	users       map[uint64]*model.User
	courses     map[uint64]*model.Course
	enrollments []model.Enrollment
	reviews     []model.Review
	revoked     map[string]time.Time

	nextUser, nextCourse, nextReview uint64
}

func NewDB() *DB {
	return &DB{
		users:   map[uint64]*model.User{},
		courses: map[uint64]*model.Course{},
		revoked: map[string]time.Time{},
	}
}

func (db *DB) Users() *Users             { return &Users{db} }
func (db *DB) Courses() *Courses         { return &Courses{db} }
func (db *DB) Enrollments() *Enrollments { return &Enrollments{db} }
func (db *DB) Reviews() *Reviews         { return &Reviews{db} }
func (db *DB) Tokens() *Tokens           { return &Tokens{db} }
func (db *DB) Stats() *Stats             { return &Stats{db} }

func cloneStrings(v []string) []string { return append([]string{}, v...) }

func cloneUser(u *model.User) model.User {
	c := *u
	c.Permissions = cloneStrings(u.Permissions)
	c.EnrolledCourses = []model.Enrollment{}
	if u.LockUntil != nil {
		t := *u.LockUntil
		c.LockUntil = &t
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return c
}

func cloneCourse(c *model.Course) model.Course {
	out := *c
	out.Tags = cloneStrings(c.Tags)
	out.Requirements = cloneStrings(c.Requirements)
	out.WhatYouWillLearn = cloneStrings(c.WhatYouWillLearn)
	out.Curriculum = cloneStrings(c.Curriculum)
	out.LessonsContent = append([]model.Lesson{}, c.LessonsContent...)
	return out
}

func (db *DB) enrollmentsOf(userID uint64) []model.Enrollment {
	out := []model.Enrollment{}
	for _, e := range db.enrollments {
		if e.UserID == userID {
			if c, ok := db.courses[e.CourseID]; ok {
				e.CourseTitle = c.Title
			}
			out = append(out, e)
		}
	}
	return out
}

func (db *DB) recompute(courseID uint64) {
	c, ok := db.courses[courseID]
	if !ok {
		return
	}
	c.EnrolledStudents, c.TotalRevenue = 0, 0
	for _, e := range db.enrollments {
		if e.CourseID == courseID {
			c.EnrolledStudents++
			c.TotalRevenue += e.Amount
		}
	}
	var reviews []model.Review
	for _, r := range db.reviews {
		if r.CourseID == courseID {
			reviews = append(reviews, r)
		}
	}
	c.Rating, c.NumReviews = approvedRating(reviews)
}

// approvedRating mirrors the SQL projection: the mean of approved ratings
// rounded to one decimal, or 0 when none are approved.
func approvedRating(reviews []model.Review) (float64, int) {
	sum, n := 0, 0
	for _, r := range reviews {
		if r.IsApproved {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return math.Round(float64(sum)/float64(n)*10) / 10, n
}

// Users implements service.UserStore.
type Users struct{ db *DB }

func (s *Users) conflict(u *model.User) error {
	for _, o := range s.db.users {
		if o.ID == u.ID {
			continue
		}
		if o.Email == u.Email {
			return repository.ErrEmailExists
		}
		if o.Phone == u.Phone {
			return repository.ErrPhoneExists
		}
	}
	return nil
}

func (s *Users) Create(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.conflict(u); err != nil {
		return err
	}
	s.db.nextUser++
	u.ID = s.db.nextUser
	c := cloneUser(u)
	s.db.users[u.ID] = &c
	return nil
}

func (s *Users) GetByID(_ context.Context, id uint64) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := cloneUser(u)
	c.EnrolledCourses = s.db.enrollmentsOf(id)
	return &c, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == email {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// List filters like the repository and orders newest first.
func (s *Users) List(_ context.Context, f repository.UserFilter) ([]model.User, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(f.Search))
	var all []model.User
	for _, u := range s.db.users {
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) &&
			!strings.Contains(strings.ToLower(u.Email), q) && !strings.Contains(u.Phone, q) {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.IsActive != nil && u.IsActive != *f.IsActive {
			continue
		}
		all = append(all, cloneUser(u))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return pageOf(all, f.Page), int64(len(all)), nil
}

func pageOf[T any](all []T, p repository.Page) []T {
	start := int(p.Offset())
	if start >= len(all) {
		return []T{}
	}
	end := min(start+p.Limit, len(all))
	return all[start:end]
}

func (s *Users) Update(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.users[u.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if err := s.conflict(u); err != nil {
		return err
	}
	cur.Name, cur.Email, cur.Phone = u.Name, u.Email, u.Phone
	cur.Role, cur.Permissions = u.Role, cloneStrings(u.Permissions)
	cur.Avatar, cur.IsActive, cur.UpdatedAt = u.Avatar, u.IsActive, u.UpdatedAt
	return nil
}

func (s *Users) UpdatePassword(_ context.Context, id uint64, hash string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash, u.UpdatedAt = hash, at
	return nil
}

func (s *Users) SetActive(_ context.Context, id uint64, active bool, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsActive, u.UpdatedAt = active, at
	return nil
}

func (s *Users) RecordLoginFailure(_ context.Context, id uint64, seen, attempts int, lockUntil *time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok || u.LoginAttempts != seen {
		return false, nil
	}
	u.LoginAttempts = attempts
	u.LockUntil = nil
	if lockUntil != nil {
		t := *lockUntil
		u.LockUntil = &t
	}
	return true, nil
}

func (s *Users) RecordLoginSuccess(_ context.Context, id uint64, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if u, ok := s.db.users[id]; ok {
		u.LoginAttempts, u.LockUntil, u.LastLogin = 0, nil, &at
	}
	return nil
}

// Delete cascades to the user's enrollments and reviews.
func (s *Users) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.db.users, id)
	touched := map[uint64]bool{}
	keptE := s.db.enrollments[:0]
	for _, e := range s.db.enrollments {
		if e.UserID == id {
			touched[e.CourseID] = true
			continue
		}
		keptE = append(keptE, e)
	}
	s.db.enrollments = keptE
	keptR := s.db.reviews[:0]
	for _, r := range s.db.reviews {
		if r.UserID == id {
			touched[r.CourseID] = true
			continue
		}
		keptR = append(keptR, r)
	}
	s.db.reviews = keptR
	for cid := range touched {
		s.db.recompute(cid)
	}
	return nil
}

// Courses implements service.CourseStore.
type Courses struct{ db *DB }

func (s *Courses) Create(_ context.Context, c *model.Course) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.nextCourse++
	c.ID = s.db.nextCourse
	cp := cloneCourse(c)
	s.db.courses[c.ID] = &cp
	return nil
}

func (s *Courses) GetByID(_ context.Context, id uint64) (*model.Course, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.courses[id]
	if !ok {
		return nil, repository.ErrCourseNotFound
	}
	cp := cloneCourse(c)
	return &cp, nil
}

func matchesCourse(c *model.Course, f repository.CourseFilter) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := strings.ToLower(strings.Join(append([]string{c.Title, c.Description, c.Instructor.Name}, c.Tags...), "\n"))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	switch {
	case f.Category != "" && c.Category != f.Category,
		f.SubCategory != "" && c.SubCategory != f.SubCategory,
		f.Level != "" && c.Level != f.Level,
		f.IsActive != nil && c.IsActive != *f.IsActive,
		f.IsFeatured != nil && c.IsFeatured != *f.IsFeatured:
		return false
	}
	return true
}

// List supports the price, rating and default createdAt orderings.
func (s *Courses) List(_ context.Context, f repository.CourseFilter) ([]model.Course, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var all []model.Course
	for _, c := range s.db.courses {
		if matchesCourse(c, f) {
			all = append(all, cloneCourse(c))
		}
	}
	asc := strings.EqualFold(f.SortOrder, "asc")
	key := func(c model.Course) float64 {
		switch f.SortBy {
		case "price":
			return c.Price
		case "rating":
			return c.Rating
		case "enrolledStudents":
			return float64(c.EnrolledStudents)
		}
		return float64(c.CreatedAt.UnixNano())
	}
	sort.Slice(all, func(i, j int) bool {
		ki, kj := key(all[i]), key(all[j])
		if ki == kj {
			if asc {
				return all[i].ID < all[j].ID
			}
			return all[i].ID > all[j].ID
		}
		if asc {
			return ki < kj
		}
		return ki > kj
	})
	return pageOf(all, f.Page), int64(len(all)), nil
}

// Update keeps the stored derived fields.
func (s *Courses) Update(_ context.Context, c *model.Course) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.courses[c.ID]
	if !ok {
		return repository.ErrCourseNotFound
	}
	cp := cloneCourse(c)
	cp.Rating, cp.NumReviews = cur.Rating, cur.NumReviews
	cp.EnrolledStudents, cp.TotalRevenue = cur.EnrolledStudents, cur.TotalRevenue
	cp.CreatedAt, cp.CreatedBy = cur.CreatedAt, cur.CreatedBy
	s.db.courses[c.ID] = &cp
	return nil
}

func (s *Courses) SetActive(_ context.Context, id uint64, active bool, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.courses[id]
	if !ok {
		return repository.ErrCourseNotFound
	}
	c.IsActive, c.LastUpdated = active, at
	return nil
}

func (s *Courses) DeleteIfUnreferenced(_ context.Context, id uint64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.courses[id]; !ok {
		return 0, repository.ErrCourseNotFound
	}
	var n int64
	for _, e := range s.db.enrollments {
		if e.CourseID == id {
			n++
		}
	}
	if n > 0 {
		return n, repository.ErrHasEnrollments
	}
	delete(s.db.courses, id)
	kept := s.db.reviews[:0]
	for _, r := range s.db.reviews {
		if r.CourseID != id {
			kept = append(kept, r)
		}
	}
	s.db.reviews = kept
	return 0, nil
}

func (s *Courses) Categories(_ context.Context) ([]repository.CategoryCount, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	byCat := map[string]*repository.CategoryCount{}
	subs := map[string]map[string]bool{}
	for _, c := range s.db.courses {
		if !c.IsActive {
			continue
		}
		cc, ok := byCat[c.Category]
		if !ok {
			cc = &repository.CategoryCount{Category: c.Category, SubCategories: []string{}}
			byCat[c.Category] = cc
			subs[c.Category] = map[string]bool{}
		}
		cc.Count++
		if !subs[c.Category][c.SubCategory] {
			subs[c.Category][c.SubCategory] = true
			cc.SubCategories = append(cc.SubCategories, c.SubCategory)
		}
	}
	out := []repository.CategoryCount{}
	for _, cc := range byCat {
		sort.Strings(cc.SubCategories)
		out = append(out, *cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// Enrollments implements service.EnrollmentStore.
type Enrollments struct{ db *DB }

func (s *Enrollments) Enroll(_ context.Context, userID, courseID uint64, at time.Time) (*model.Enrollment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[userID]; !ok {
		return nil, repository.ErrUserNotFound
	}
	c, ok := s.db.courses[courseID]
	if !ok {
		return nil, repository.ErrCourseNotFound
	}
	for _, e := range s.db.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return nil, repository.ErrAlreadyEnrolled
		}
	}
	e := model.Enrollment{UserID: userID, CourseID: courseID, Amount: c.Price, EnrolledAt: at}
	s.db.enrollments = append(s.db.enrollments, e)
	s.db.recompute(courseID)
	return &e, nil
}

func (s *Enrollments) ListForUser(_ context.Context, userID uint64) ([]model.Enrollment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.enrollmentsOf(userID), nil
}

func (s *Enrollments) UpdateProgress(_ context.Context, userID, courseID uint64, progress int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i := range s.db.enrollments {
		e := &s.db.enrollments[i]
		if e.UserID == userID && e.CourseID == courseID {
			e.Progress = progress
			return nil
		}
	}
	return repository.ErrNotEnrolled
}

// Reviews implements service.ReviewStore.
type Reviews struct{ db *DB }

func (s *Reviews) Add(_ context.Context, rv *model.Review) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.courses[rv.CourseID]; !ok {
		return repository.ErrCourseNotFound
	}
	enrolled := false
	for _, e := range s.db.enrollments {
		if e.UserID == rv.UserID && e.CourseID == rv.CourseID {
			enrolled = true
			break
		}
	}
	if !enrolled {
		return repository.ErrNotEnrolled
	}
	for _, r := range s.db.reviews {
		if r.UserID == rv.UserID && r.CourseID == rv.CourseID {
			return repository.ErrAlreadyReviewed
		}
	}
	s.db.nextReview++
	rv.ID = s.db.nextReview
	rv.IsApproved = false
	s.db.reviews = append(s.db.reviews, *rv)
	s.db.recompute(rv.CourseID)
	return nil
}

func (s *Reviews) List(_ context.Context, courseID uint64, approvedOnly bool) ([]model.Review, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Review{}
	for i := len(s.db.reviews) - 1; i >= 0; i-- {
		r := s.db.reviews[i]
		if r.CourseID != courseID || (approvedOnly && !r.IsApproved) {
			continue
		}
		if u, ok := s.db.users[r.UserID]; ok {
			r.UserName = u.Name
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Reviews) find(courseID, reviewID uint64) (int, error) {
	if _, ok := s.db.courses[courseID]; !ok {
		return -1, repository.ErrCourseNotFound
	}
	for i, r := range s.db.reviews {
		if r.ID == reviewID && r.CourseID == courseID {
			return i, nil
		}
	}
	return -1, repository.ErrReviewNotFound
}

func (s *Reviews) SetApproval(_ context.Context, courseID, reviewID uint64, approved bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	i, err := s.find(courseID, reviewID)
	if err != nil {
		return err
	}
	s.db.reviews[i].IsApproved = approved
	s.db.recompute(courseID)
	return nil
}

func (s *Reviews) Delete(_ context.Context, courseID, reviewID uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	i, err := s.find(courseID, reviewID)
	if err != nil {
		return err
	}
	s.db.reviews = append(s.db.reviews[:i], s.db.reviews[i+1:]...)
	s.db.recompute(courseID)
	return nil
}

// Tokens implements service.TokenStore.
type Tokens struct{ db *DB }

func (s *Tokens) Revoke(_ context.Context, _ uint64, hash string, exp, _ time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.revoked[hash] = exp
	return nil
}

func (s *Tokens) IsRevoked(_ context.Context, hash string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	_, ok := s.db.revoked[hash]
	return ok, nil
}

// Images is an ImageStore that keeps uploads in memory.
type Images struct {
	mu      sync.Mutex
	Files   map[string][]byte
	Removed []string
	Err     error
	n       int
}

func NewImages() *Images { return &Images{Files: map[string][]byte{}} }

func (s *Images) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	path := "/uploads/courses/test-" + strings.Repeat("x", s.n) + "-" + name
	s.Files[path] = b
	return path, nil
}

func (s *Images) Owns(path string) bool { return strings.HasPrefix(path, "/uploads/") }

func (s *Images) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Files, path)
	s.Removed = append(s.Removed, path)
	return nil
}

// Events records published events.
type Events struct {
	mu     sync.Mutex
	Events []queue.ActivityEvent
}

func (e *Events) Publish(_ context.Context, ev queue.ActivityEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Events = append(e.Events, ev)
	return nil
}

// Types returns the recorded event types in publish order.
func (e *Events) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.Events))
	for i, ev := range e.Events {
		out[i] = ev.Type
	}
	return out
}

// Cache counts invalidations.
type Cache struct {
	mu sync.Mutex
	N  int
}

func (c *Cache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.N++
	return nil
}

func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.N
}
