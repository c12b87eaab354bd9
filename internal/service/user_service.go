package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/course-marketplace/internal/config"
	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/queue"
	"github.com/iliyamo/course-marketplace/internal/repository"
	"github.com/iliyamo/course-marketplace/internal/utils"
)

// UserService is the admin-facing user and enrollment management.
type UserService struct {
	Users       UserStore
	Enrollments EnrollmentStore
	Events      EventPublisher
	Cache       CacheInvalidator
	Now         func() time.Time

	bcryptCost int
}

func NewUserService(cfg config.Config, users UserStore, enrollments EnrollmentStore, events EventPublisher, cache CacheInvalidator) *UserService {
	if events == nil {
		events = nopPublisher{}
	}
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &UserService{
		Users:       users,
		Enrollments: enrollments,
		Events:      events,
		Cache:       cache,
		Now:         time.Now,
		bcryptCost:  cfg.BcryptCost,
	}
}

func (s *UserService) now() time.Time { return s.Now().UTC() }

// UserQuery carries the list parameters accepted by GET /users.
type UserQuery struct {
	Search    string `query:"search"`
	Role      string `query:"role"`
	IsActive  *bool  `query:"isActive"`
	Page      int    `query:"page"`
	Limit     int    `query:"limit"`
	SortBy    string `query:"sortBy"`
	SortOrder string `query:"sortOrder"`
}

func (s *UserService) List(ctx context.Context, q UserQuery) ([]model.User, repository.Pagination, error) {
	page := repository.NewPage(q.Page, q.Limit)
	users, total, err := s.Users.List(ctx, repository.UserFilter{
		Search:    q.Search,
		Role:      model.Role(strings.TrimSpace(q.Role)),
		IsActive:  q.IsActive,
		Page:      page,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	})
	if err != nil {
		return nil, repository.Pagination{}, err
	}
	return users, page.Summarize(total), nil
}

func (s *UserService) Get(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	return u, storeError(err)
}

// guardAdminTarget refuses to let anyone but a super_admin touch an account
// that holds, or would be given, an admin role.
func guardAdminTarget(actor *model.User, roles ...model.Role) error {
	for _, r := range roles {
		if r.IsAdmin() && actor.Role != model.RoleSuperAdmin {
			return ErrSuperAdminRequired
		}
	}
	return nil
}

// CreateUserInput is the admin payload for POST /users.
type CreateUserInput struct {
	Name        string   `json:"name" validate:"required,min=2,max=50"`
	Email       string   `json:"email" validate:"required,email"`
	Phone       string   `json:"phone" validate:"required,numeric,len=10"`
	Password    string   `json:"password" validate:"required,min=6"`
	Role        string   `json:"role" validate:"omitempty,oneof=user instructor admin super_admin"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,oneof=all users courses analytics settings"`
	IsActive    *bool    `json:"isActive"`
}

func (s *UserService) Create(ctx context.Context, actor *model.User, in CreateUserInput) (*model.User, error) {
	role := model.Role(in.Role)
	if role == "" {
		role = model.RoleUser
	}
	if err := guardAdminTarget(actor, role); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u := &model.User{
		Name:            strings.TrimSpace(in.Name),
		Email:           NormalizeEmail(in.Email),
		Phone:           strings.TrimSpace(in.Phone),
		PasswordHash:    hash,
		Role:            role,
		Permissions:     permissionsFor(role, in.Permissions),
		IsActive:        true,
		EnrolledCourses: []model.Enrollment{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

// permissionsFor keeps explicit permissions for admin roles only; other
// roles never hold capabilities.
func permissionsFor(role model.Role, requested []string) []string {
	if !role.IsAdmin() {
		return []string{}
	}
	if len(requested) == 0 {
		return model.DefaultPermissions(role)
	}
	return requested
}

// UpdateUserInput is the admin payload for PUT /users/:id.
type UpdateUserInput struct {
	Name        *string   `json:"name" validate:"omitempty,min=2,max=50"`
	Email       *string   `json:"email" validate:"omitempty,email"`
	Phone       *string   `json:"phone" validate:"omitempty,numeric,len=10"`
	Role        *string   `json:"role" validate:"omitempty,oneof=user instructor admin super_admin"`
	Permissions *[]string `json:"permissions" validate:"omitempty,dive,oneof=all users courses analytics settings"`
	IsActive    *bool     `json:"isActive"`
	Avatar      *string   `json:"avatar" validate:"omitempty,max=512"`
}

func (s *UserService) Update(ctx context.Context, actor *model.User, id uint64, in UpdateUserInput) (*model.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	roles := []model.Role{u.Role}
	if in.Role != nil {
		roles = append(roles, model.Role(*in.Role))
	}
	if err := guardAdminTarget(actor, roles...); err != nil {
		return nil, err
	}
	if in.IsActive != nil && !*in.IsActive && actor.ID == id {
		return nil, ErrSelfDeactivate
	}

	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		u.Email = NormalizeEmail(*in.Email)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Avatar != nil {
		u.Avatar = strings.TrimSpace(*in.Avatar)
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.Role != nil {
		newRole := model.Role(*in.Role)
		if newRole.IsAdmin() != u.Role.IsAdmin() {
			u.Permissions = model.DefaultPermissions(newRole)
		}
		u.Role = newRole
	}
	if in.Permissions != nil {
		u.Permissions = permissionsFor(u.Role, *in.Permissions)
	}
	u.UpdatedAt = s.now()

	if err := s.Users.Update(ctx, u); err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

// Delete removes a user with its enrollments and reviews. The affected
// courses' counters are recomputed by the store.
func (s *UserService) Delete(ctx context.Context, actor *model.User, id uint64) error {
	if actor.ID == id {
		return ErrSelfDelete
	}
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if err := guardAdminTarget(actor, u.Role); err != nil {
		return err
	}
	if err := s.Users.Delete(ctx, id); err != nil {
		return storeError(err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *UserService) invalidate(ctx context.Context) {
	if err := s.Cache.Invalidate(ctx); err != nil {
		log.Printf("users: cache invalidation failed: %v", err)
	}
}

// SetStatus activates or deactivates an account. Nobody can deactivate
// themselves.
func (s *UserService) SetStatus(ctx context.Context, actor *model.User, id uint64, active bool) (*model.User, error) {
	if actor.ID == id && !active {
		return nil, ErrSelfDeactivate
	}
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if err := guardAdminTarget(actor, u.Role); err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.Users.SetActive(ctx, id, active, now); err != nil {
		return nil, storeError(err)
	}
	u.IsActive = active
	u.UpdatedAt = now
	return u, nil
}

// Enroll adds courseID to the user's enrollments at the course's current
// price.
func (s *UserService) Enroll(ctx context.Context, actorID, userID, courseID uint64) (*model.User, error) {
	now := s.now()
	e, err := s.Enrollments.Enroll(ctx, userID, courseID, now)
	if err != nil {
		return nil, storeError(err)
	}
	s.invalidate(ctx)
	publish(ctx, s.Events, queue.ActivityEvent{
		Type:       queue.EventEnrollmentCreated,
		ActorID:    actorID,
		UserID:     userID,
		CourseID:   courseID,
		Amount:     e.Amount,
		OccurredAt: now,
	})
	return s.Get(ctx, userID)
}

// ProgressInput is the payload of PUT /auth/enrollments/:courseId/progress.
type ProgressInput struct {
	Progress *int `json:"progress" validate:"required,min=0,max=100"`
}

// UpdateProgress records how far the user is through an enrolled course.
func (s *UserService) UpdateProgress(ctx context.Context, userID, courseID uint64, progress int) ([]model.Enrollment, error) {
	if progress < 0 || progress > 100 {
		return nil, ErrProgressOutRange
	}
	if err := s.Enrollments.UpdateProgress(ctx, userID, courseID, progress); err != nil {
		if errors.Is(err, repository.ErrNotEnrolled) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, storeError(err)
	}
	return s.Enrollments.ListForUser(ctx, userID)
}
