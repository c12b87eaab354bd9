package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/iliyamo/course-marketplace/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so helpers can run
// inside or outside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepo stores every principal, whatever its role.
type UserRepo struct{ db *sql.DB }

// NewUserRepo creates a UserRepo on db.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// UserFilter narrows ListUsers.
type UserFilter struct {
	Search    string
	Role      model.Role
	IsActive  *bool
	Page      Page
	SortBy    string
	SortOrder string
}

var userSortColumns = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
	"email":     "email",
	"lastLogin": "last_login",
}

const userColumns = "id, name, email, phone, password_hash, role, permissions, avatar, is_active, login_attempts, lock_until, last_login, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (model.User, error) {
	var (
		u         model.User
		role      string
		perms     string
		lockUntil sql.NullTime
		lastLogin sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &role, &perms,
		&u.Avatar, &u.IsActive, &u.LoginAttempts, &lockUntil, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, err
	}
	u.Role = model.Role(role)
	u.Permissions = splitPermissions(perms)
	if lockUntil.Valid {
		t := lockUntil.Time
		u.LockUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	u.EnrolledCourses = []model.Enrollment{}
	return u, nil
}

func splitPermissions(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinPermissions(p []string) string { return strings.Join(p, ",") }

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Create inserts u and fills in its ID. Email and phone uniqueness is
// enforced by the table's unique keys.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, phone, password_hash, role, permissions, avatar, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.Name, u.Email, u.Phone, u.PasswordHash, string(u.Role), joinPermissions(u.Permissions),
		u.Avatar, u.IsActive, u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		return userWriteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByID loads a user together with its enrollments.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u.EnrolledCourses, err = listEnrollments(ctx, r.db, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail fetches a user by normalised email without enrollments.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func userListQuery(f UserFilter) (sq.SelectBuilder, sq.SelectBuilder) {
	conds := sq.And{}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := containsPattern(s)
		conds = append(conds, sq.Or{
			sq.Expr("LOWER(name) LIKE ? ESCAPE '!'", like),
			sq.Expr("LOWER(email) LIKE ? ESCAPE '!'", like),
			sq.Expr("phone LIKE ? ESCAPE '!'", like),
		})
	}
	if f.Role != "" {
		conds = append(conds, sq.Eq{"role": string(f.Role)})
	}
	if f.IsActive != nil {
		conds = append(conds, sq.Eq{"is_active": *f.IsActive})
	}

	col, ok := userSortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}

	count := sq.Select("COUNT(*)").From("users").Where(conds)
	data := sq.Select(userColumns).From("users").Where(conds).
		OrderBy(col+" "+dir, "id "+dir).
		Limit(uint64(f.Page.Limit)).Offset(f.Page.Offset())
	return count, data
}

// List returns one page of users and the total number of matches.
func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]model.User, int64, error) {
	countQ, dataQ := userListQuery(f)

	var total int64
	query, args, err := countQ.ToSql()
	if err != nil {
		return nil, 0, err
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err = dataQ.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.User, 0, f.Page.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Update writes the mutable profile and role fields of u.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name=?, email=?, phone=?, role=?, permissions=?, avatar=?, is_active=?, updated_at=?
		 WHERE id=?`,
		u.Name, u.Email, u.Phone, string(u.Role), joinPermissions(u.Permissions), u.Avatar, u.IsActive,
		u.UpdatedAt.UTC(), u.ID)
	if err != nil {
		return userWriteError(err)
	}
	return expectRow(res, ErrUserNotFound)
}

// UpdatePassword replaces the stored bcrypt hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=?", hash, at.UTC(), id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrUserNotFound)
}

// SetActive activates or deactivates an account.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_active=?, updated_at=? WHERE id=?", active, at.UTC(), id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrUserNotFound)
}

// RecordLoginFailure stores the next lockout state only if login_attempts
// still holds the value the caller read. It returns false when another
// request got there first.
func (r *UserRepo) RecordLoginFailure(ctx context.Context, id uint64, seen, attempts int, lockUntil *time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET login_attempts=?, lock_until=? WHERE id=? AND login_attempts=?",
		attempts, nullTime(lockUntil), id, seen)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordLoginSuccess clears the lockout state and stamps last_login.
func (r *UserRepo) RecordLoginSuccess(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET login_attempts=0, lock_until=NULL, last_login=? WHERE id=?", at.UTC(), id)
	return err
}

// Delete removes a user. Its enrollments and reviews go with it, so the
// projections of every course they touched are recomputed in the same
// transaction.
func (r *UserRepo) Delete(ctx context.Context, id uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var exists uint64
	if err = tx.QueryRowContext(ctx, "SELECT id FROM users WHERE id=? FOR UPDATE", id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	courseIDs, err := touchedCourses(ctx, tx, id)
	if err != nil {
		return err
	}
	// lock in id order so concurrent enrollments queue behind us instead of deadlocking
	for _, cid := range courseIDs {
		if _, err = lockCourse(ctx, tx, cid); err != nil && !errors.Is(err, ErrCourseNotFound) {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id); err != nil {
		return err
	}
	for _, cid := range courseIDs {
		if err = recomputeEnrollmentTotals(ctx, tx, cid); err != nil {
			return err
		}
		if err = recomputeRating(ctx, tx, cid); err != nil {
			return err
		}
	}
	return nil
}

func touchedCourses(ctx context.Context, q queryer, userID uint64) ([]uint64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT course_id FROM enrollments WHERE user_id=?
		 UNION SELECT course_id FROM course_reviews WHERE user_id=?`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, rows.Err()
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
