package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/course-marketplace/internal/config"
	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/queue"
	"github.com/iliyamo/course-marketplace/internal/repository"
	"github.com/iliyamo/course-marketplace/internal/utils"
)

// AuthService owns credentials: registration, login with lockout, token
// verification and logout.
type AuthService struct {
	Users  UserStore
	Tokens TokenStore
	Events EventPublisher
	Now    func() time.Time

	secret     string
	tokenTTL   time.Duration
	bcryptCost int
	threshold  int
	window     time.Duration
}

func NewAuthService(cfg config.Config, users UserStore, tokens TokenStore, events EventPublisher) *AuthService {
	if events == nil {
		events = nopPublisher{}
	}
	return &AuthService{
		Users:      users,
		Tokens:     tokens,
		Events:     events,
		Now:        time.Now,
		secret:     cfg.JWTSecret,
		tokenTTL:   cfg.TokenTTL,
		bcryptCost: cfg.BcryptCost,
		threshold:  cfg.LockoutThreshold,
		window:     cfg.LockoutWindow,
	}
}

func (s *AuthService) now() time.Time { return s.Now().UTC() }

// RegisterInput is the public sign-up payload.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,numeric,len=10"`
	Password string `json:"password" validate:"required,min=6"`
}

// Session is a principal plus the token issued for it.
type Session struct {
	User  *model.User
	Token utils.AccessToken
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Register creates a plain user account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
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
		Role:            model.RoleUser,
		Permissions:     model.DefaultPermissions(model.RoleUser),
		IsActive:        true,
		EnrolledCourses: []model.Enrollment{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, storeError(err)
	}
	tok, err := s.issue(u, now)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.Events, queue.ActivityEvent{Type: queue.EventUserRegistered, UserID: u.ID, Title: u.Name, OccurredAt: now})
	return &Session{User: u, Token: tok}, nil
}

func (s *AuthService) issue(u *model.User, now time.Time) (utils.AccessToken, error) {
	return utils.IssueToken(s.secret, u.ID, string(u.Role), s.tokenTTL, now)
}

// Login checks credentials in this order: unknown email, open lockout,
// deactivated account, wrong password. Each failed password attempt bumps
// loginAttempts; reaching the threshold opens a lockout window. A failure
// after an expired window restarts the count at one.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.Users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.BurnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if u.IsLocked(now) {
		return nil, ErrLocked
	}
	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		if err := s.recordFailure(ctx, u, now); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.Users.RecordLoginSuccess(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LoginAttempts = 0
	u.LockUntil = nil
	u.LastLogin = &now

	tok, err := s.issue(u, now)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: tok}, nil
}

// AdminLogin is Login restricted to admin roles. A non-admin with valid
// credentials is refused without counting as a failed attempt.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (*Session, error) {
	sess, err := s.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !sess.User.Role.IsAdmin() {
		return nil, ErrAdminRequired
	}
	return sess, nil
}

// NextLoginFailure returns the lockout state after one more failed attempt.
func NextLoginFailure(attempts int, lockUntil *time.Time, now time.Time, threshold int, window time.Duration) (int, *time.Time) {
	if lockUntil != nil && !lockUntil.After(now) {
		return 1, nil
	}
	attempts++
	if attempts >= threshold {
		until := now.Add(window)
		return attempts, &until
	}
	return attempts, nil
}

// maxFailureSwaps bounds how often recordFailure re-reads the row after
// losing the compare-and-swap to a concurrent login.
const maxFailureSwaps = 10

// errFailureNotRecorded is returned when every swap attempt lost the race.
var errFailureNotRecorded = errors.New("login failure not recorded: lost every compare-and-swap")

// recordFailure writes the next lockout state with a compare-and-swap on
// loginAttempts, re-reading the row when a concurrent login won the race.
// A row that a concurrent failure already locked needs no further write.
func (s *AuthService) recordFailure(ctx context.Context, u *model.User, now time.Time) error {
	for i := 0; i < maxFailureSwaps; i++ {
		attempts, lock := NextLoginFailure(u.LoginAttempts, u.LockUntil, now, s.threshold, s.window)
		ok, err := s.Users.RecordLoginFailure(ctx, u.ID, u.LoginAttempts, attempts, lock)
		if err != nil {
			return err
		}
		if ok {
			u.LoginAttempts, u.LockUntil = attempts, lock
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if u, err = s.Users.GetByID(ctx, u.ID); err != nil {
			return storeError(err)
		}
		if u.IsLocked(now) {
			return nil
		}
	}
	return fmt.Errorf("user %d: %w", u.ID, errFailureNotRecorded)
}

// Authenticate resolves a bearer token to an active principal. Revoked,
// expired and forged tokens, unknown ids and deactivated accounts all fail
// with an Unauthorized error.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*model.User, *utils.Claims, error) {
	claims, err := utils.ParseToken(s.secret, raw, s.now())
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	if s.Tokens != nil {
		revoked, err := s.Tokens.IsRevoked(ctx, utils.HashToken(raw))
		if err != nil {
			return nil, nil, err
		}
		if revoked {
			return nil, nil, ErrInvalidToken
		}
	}
	u, err := s.Users.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if !u.IsActive {
		return nil, nil, ErrAccountDeactivated
	}
	return u, claims, nil
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, raw string, claims *utils.Claims) error {
	if s.Tokens == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.Tokens.Revoke(ctx, claims.ID, utils.HashToken(raw), claims.ExpiresAt.Time, s.now())
}

// Profile returns the principal with its enrollments.
func (s *AuthService) Profile(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	return u, storeError(err)
}

// ProfileInput is the self-service profile update.
type ProfileInput struct {
	Name   *string `json:"name" validate:"omitempty,min=2,max=50"`
	Phone  *string `json:"phone" validate:"omitempty,numeric,len=10"`
	Avatar *string `json:"avatar" validate:"omitempty,max=512"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, id uint64, in ProfileInput) (*model.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Avatar != nil {
		u.Avatar = strings.TrimSpace(*in.Avatar)
	}
	u.UpdatedAt = s.now()
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

// PasswordInput changes the caller's own password.
type PasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

func (s *AuthService) ChangePassword(ctx context.Context, id uint64, in PasswordInput) error {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
		return ErrWrongPassword
	}
	hash, err := utils.HashPassword(in.NewPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	return storeError(s.Users.UpdatePassword(ctx, id, hash, s.now()))
}

// publish sends ev and logs, rather than returns, any failure.
func publish(ctx context.Context, p EventPublisher, ev queue.ActivityEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Printf("events: %s not published: %v", ev.Type, err)
	}
}
