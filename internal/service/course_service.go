package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/queue"
	"github.com/iliyamo/course-marketplace/internal/repository"
	"github.com/iliyamo/course-marketplace/internal/upload"
)

const (
	defaultFeatured = 6
	maxFeatured     = 20
)

// CourseService implements the public catalog, admin course management and
// reviews.
type CourseService struct {
	Courses CourseStore
	Reviews ReviewStore
	Images  ImageStore
	Events  EventPublisher
	Cache   CacheInvalidator
	Now     func() time.Time
}

func NewCourseService(courses CourseStore, reviews ReviewStore, images ImageStore, events EventPublisher, cache CacheInvalidator) *CourseService {
	if events == nil {
		events = nopPublisher{}
	}
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &CourseService{Courses: courses, Reviews: reviews, Images: images, Events: events, Cache: cache, Now: time.Now}
}

func (s *CourseService) now() time.Time { return s.Now().UTC() }

// CourseQuery carries the list parameters accepted by GET /courses.
type CourseQuery struct {
	Search      string `query:"search"`
	Category    string `query:"category"`
	SubCategory string `query:"subCategory"`
	Level       string `query:"level"`
	IsActive    *bool  `query:"isActive"`
	IsFeatured  *bool  `query:"isFeatured"`
	Page        int    `query:"page"`
	Limit       int    `query:"limit"`
	SortBy      string `query:"sortBy"`
	SortOrder   string `query:"sortOrder"`
}

// List returns one page of courses. Callers without admin rights only ever
// see active courses, whatever isActive they ask for.
func (s *CourseService) List(ctx context.Context, q CourseQuery, admin bool) ([]model.Course, repository.Pagination, error) {
	page := repository.NewPage(q.Page, q.Limit)
	f := repository.CourseFilter{
		Search:      q.Search,
		Category:    strings.TrimSpace(q.Category),
		SubCategory: strings.TrimSpace(q.SubCategory),
		Level:       strings.TrimSpace(q.Level),
		IsActive:    q.IsActive,
		IsFeatured:  q.IsFeatured,
		Page:        page,
		SortBy:      q.SortBy,
		SortOrder:   q.SortOrder,
	}
	if !admin {
		active := true
		f.IsActive = &active
	}
	courses, total, err := s.Courses.List(ctx, f)
	if err != nil {
		return nil, repository.Pagination{}, err
	}
	return courses, page.Summarize(total), nil
}

// Featured returns active featured courses, best rated first.
func (s *CourseService) Featured(ctx context.Context, limit int) ([]model.Course, error) {
	if limit <= 0 {
		limit = defaultFeatured
	}
	if limit > maxFeatured {
		limit = maxFeatured
	}
	yes := true
	courses, _, err := s.Courses.List(ctx, repository.CourseFilter{
		IsActive:   &yes,
		IsFeatured: &yes,
		Page:       repository.Page{Page: 1, Limit: limit},
		SortBy:     "rating",
		SortOrder:  "desc",
	})
	return courses, err
}

func (s *CourseService) Categories(ctx context.Context) ([]repository.CategoryCount, error) {
	return s.Courses.Categories(ctx)
}

func (s *CourseService) Get(ctx context.Context, id uint64) (*model.Course, error) {
	c, err := s.Courses.GetByID(ctx, id)
	return c, storeError(err)
}

// saveImage stores an uploaded image and returns its public path, or "" when
// there is no upload.
func (s *CourseService) saveImage(ctx context.Context, img *Upload) (string, error) {
	if img == nil || img.Body == nil || s.Images == nil {
		return "", nil
	}
	path, err := s.Images.Save(ctx, img.Filename, img.Body)
	switch {
	case errors.Is(err, upload.ErrUnsupportedType):
		return "", ErrInvalidImage
	case errors.Is(err, upload.ErrTooLarge):
		return "", ErrImageTooLarge
	}
	return path, err
}

// dropImage removes a locally stored image. Failures are only logged.
func (s *CourseService) dropImage(path string) {
	if path == "" || s.Images == nil || !s.Images.Owns(path) {
		return
	}
	if err := s.Images.Remove(path); err != nil {
		log.Printf("courses: remove image %s: %v", path, err)
	}
}

func (s *CourseService) invalidate(ctx context.Context) {
	if err := s.Cache.Invalidate(ctx); err != nil {
		log.Printf("courses: cache invalidation failed: %v", err)
	}
}

// Create stores a new course owned by adminID. An uploaded image takes
// precedence over a courseImage URL in the payload.
func (s *CourseService) Create(ctx context.Context, adminID uint64, in CourseInput, img *Upload) (*model.Course, error) {
	c := in.course()
	path, err := s.saveImage(ctx, img)
	if err != nil {
		return nil, err
	}
	if path != "" {
		c.CourseImage = path
	}
	now := s.now()
	c.CreatedBy = adminID
	c.CreatedAt = now
	c.LastUpdated = now

	if err := s.Courses.Create(ctx, c); err != nil {
		s.dropImage(path)
		return nil, storeError(err)
	}
	s.invalidate(ctx)
	publish(ctx, s.Events, queue.ActivityEvent{Type: queue.EventCourseCreated, ActorID: adminID, CourseID: c.ID, Title: c.Title, OccurredAt: now})
	return c, nil
}

// Update merges p into the stored course. When the image changes, the
// previous file is deleted if it was stored locally.
func (s *CourseService) Update(ctx context.Context, actorID, id uint64, p CoursePatch, img *Upload) (*model.Course, error) {
	c, err := s.Courses.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	oldImage := c.CourseImage
	p.applyTo(c)

	path, err := s.saveImage(ctx, img)
	if err != nil {
		return nil, err
	}
	if path != "" {
		c.CourseImage = path
	}
	now := s.now()
	c.LastUpdated = now

	if err := s.Courses.Update(ctx, c); err != nil {
		s.dropImage(path)
		return nil, storeError(err)
	}
	if oldImage != c.CourseImage {
		s.dropImage(oldImage)
	}
	s.invalidate(ctx)
	publish(ctx, s.Events, queue.ActivityEvent{Type: queue.EventCourseUpdated, ActorID: actorID, CourseID: c.ID, Title: c.Title, OccurredAt: now})
	return c, nil
}

// Delete removes a course that no enrollment references, then its local
// image.
func (s *CourseService) Delete(ctx context.Context, actorID, id uint64) error {
	c, err := s.Courses.GetByID(ctx, id)
	if err != nil {
		return storeError(err)
	}
	n, err := s.Courses.DeleteIfUnreferenced(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrHasEnrollments) {
			return &EnrollmentsExistError{Count: n}
		}
		return storeError(err)
	}
	s.dropImage(c.CourseImage)
	s.invalidate(ctx)
	publish(ctx, s.Events, queue.ActivityEvent{Type: queue.EventCourseDeleted, ActorID: actorID, CourseID: id, Title: c.Title, OccurredAt: s.now()})
	return nil
}

// SetStatus activates or deactivates a course.
func (s *CourseService) SetStatus(ctx context.Context, id uint64, active bool) (*model.Course, error) {
	if err := s.Courses.SetActive(ctx, id, active, s.now()); err != nil {
		return nil, storeError(err)
	}
	s.invalidate(ctx)
	return s.Get(ctx, id)
}

// ReviewInput is the payload of POST /courses/:id/reviews.
type ReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=500"`
}

// AddReview stores an unapproved review by an enrolled user. The course's
// rating only moves once an admin approves it.
func (s *CourseService) AddReview(ctx context.Context, userID, courseID uint64, in ReviewInput) (*model.Review, error) {
	rv := &model.Review{
		CourseID:  courseID,
		UserID:    userID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: s.now(),
	}
	if err := s.Reviews.Add(ctx, rv); err != nil {
		return nil, storeError(err)
	}
	s.invalidate(ctx)
	publish(ctx, s.Events, queue.ActivityEvent{Type: queue.EventReviewSubmitted, UserID: userID, CourseID: courseID, Rating: rv.Rating, OccurredAt: rv.CreatedAt})
	return rv, nil
}

// ListReviews lists a course's reviews; only admins see unapproved ones.
func (s *CourseService) ListReviews(ctx context.Context, courseID uint64, admin bool) ([]model.Review, error) {
	if _, err := s.Courses.GetByID(ctx, courseID); err != nil {
		return nil, storeError(err)
	}
	return s.Reviews.List(ctx, courseID, !admin)
}

// ModerateReview approves or hides a review and returns the refreshed course.
func (s *CourseService) ModerateReview(ctx context.Context, courseID, reviewID uint64, approved bool) (*model.Course, error) {
	if err := s.Reviews.SetApproval(ctx, courseID, reviewID, approved); err != nil {
		return nil, storeError(err)
	}
	s.invalidate(ctx)
	return s.Get(ctx, courseID)
}

func (s *CourseService) DeleteReview(ctx context.Context, courseID, reviewID uint64) (*model.Course, error) {
	if err := s.Reviews.Delete(ctx, courseID, reviewID); err != nil {
		return nil, storeError(err)
	}
	s.invalidate(ctx)
	return s.Get(ctx, courseID)
}
