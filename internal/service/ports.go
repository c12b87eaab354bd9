package service

import (
	"context"
	"io"
	"time"

	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/queue"
	"github.com/iliyamo/course-marketplace/internal/repository"
)

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, f repository.UserFilter) ([]model.User, int64, error)
	Update(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id uint64, hash string, at time.Time) error
	SetActive(ctx context.Context, id uint64, active bool, at time.Time) error
	Delete(ctx context.Context, id uint64) error
	RecordLoginFailure(ctx context.Context, id uint64, seen, attempts int, lockUntil *time.Time) (bool, error)
	RecordLoginSuccess(ctx context.Context, id uint64, at time.Time) error
}

// CourseStore is implemented by repository.CourseRepo.
type CourseStore interface {
	Create(ctx context.Context, c *model.Course) error
	GetByID(ctx context.Context, id uint64) (*model.Course, error)
	List(ctx context.Context, f repository.CourseFilter) ([]model.Course, int64, error)
	Update(ctx context.Context, c *model.Course) error
	SetActive(ctx context.Context, id uint64, active bool, at time.Time) error
	DeleteIfUnreferenced(ctx context.Context, id uint64) (int64, error)
	Categories(ctx context.Context) ([]repository.CategoryCount, error)
}

// EnrollmentStore is implemented by repository.EnrollmentRepo.
type EnrollmentStore interface {
	Enroll(ctx context.Context, userID, courseID uint64, at time.Time) (*model.Enrollment, error)
	ListForUser(ctx context.Context, userID uint64) ([]model.Enrollment, error)
	UpdateProgress(ctx context.Context, userID, courseID uint64, progress int) error
}

// ReviewStore is implemented by repository.ReviewRepo.
type ReviewStore interface {
	Add(ctx context.Context, r *model.Review) error
	List(ctx context.Context, courseID uint64, approvedOnly bool) ([]model.Review, error)
	SetApproval(ctx context.Context, courseID, reviewID uint64, approved bool) error
	Delete(ctx context.Context, courseID, reviewID uint64) error
}

// TokenStore is implemented by repository.TokenRepo.
type TokenStore interface {
	Revoke(ctx context.Context, userID uint64, tokenHash string, exp, now time.Time) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

// StatsStore is implemented by repository.StatsRepo.
type StatsStore interface {
	CountUsers(ctx context.Context, w repository.Window, active *bool, roles ...model.Role) (int64, error)
	CountCourses(ctx context.Context, w repository.Window, active *bool) (int64, error)
	CountEnrollments(ctx context.Context, w repository.Window) (int64, error)
	SumRevenue(ctx context.Context, w repository.Window) (float64, error)
	CourseBreakdown(ctx context.Context) (repository.CourseBreakdown, error)
	TopCourses(ctx context.Context, limit int, activeOnly bool) ([]repository.CourseRank, error)
	RecentUsers(ctx context.Context, n int) ([]repository.UserActivity, error)
	RecentEnrollments(ctx context.Context, n int) ([]repository.EnrollmentActivity, error)
	RecentCourses(ctx context.Context, n int) ([]repository.CourseActivity, error)
}

// ImageStore persists uploaded course images. Save returns the public path
// of the stored file.
type ImageStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Remove(path string) error
	Owns(path string) bool
}

// EventPublisher delivers activity events. Failures are logged by callers
// and never fail the request.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ActivityEvent) error
}

// CacheInvalidator drops cached catalog responses after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Upload is an image attached to a course write.
type Upload struct {
	Filename string
	Body     io.Reader
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.ActivityEvent) error { return nil }

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context) error { return nil }
