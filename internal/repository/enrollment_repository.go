package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/course-marketplace/internal/model"
)

// EnrollmentRepo stores (user, course) enrollments.
type EnrollmentRepo struct{ db *sql.DB }

// NewEnrollmentRepo creates an EnrollmentRepo on db.
func NewEnrollmentRepo(db *sql.DB) *EnrollmentRepo { return &EnrollmentRepo{db: db} }

// Enroll inserts the (user, course) pair and refreshes the course's
// enrolled_students and total_revenue in the same transaction. The primary
// key on (user_id, course_id) rejects a second enrollment.
func (r *EnrollmentRepo) Enroll(ctx context.Context, userID, courseID uint64, at time.Time) (e *model.Enrollment, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var uid uint64
	if err = tx.QueryRowContext(ctx, "SELECT id FROM users WHERE id=?", userID).Scan(&uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrUserNotFound
		}
		return nil, err
	}
	price, err := lockCourse(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO enrollments (user_id, course_id, amount, progress, enrolled_at) VALUES (?,?,?,0,?)",
		userID, courseID, price, at.UTC())
	if err != nil {
		if _, dup := duplicateKey(err); dup {
			err = ErrAlreadyEnrolled
		} else if mysqlErrNumber(err) == mysqlNoReferencedRow {
			err = ErrUserNotFound
		}
		return nil, err
	}
	if err = recomputeEnrollmentTotals(ctx, tx, courseID); err != nil {
		return nil, err
	}
	return &model.Enrollment{UserID: userID, CourseID: courseID, Amount: price, EnrolledAt: at.UTC()}, nil
}

// ListForUser returns the user's enrollments oldest first.
func (r *EnrollmentRepo) ListForUser(ctx context.Context, userID uint64) ([]model.Enrollment, error) {
	return listEnrollments(ctx, r.db, userID)
}

func listEnrollments(ctx context.Context, q queryer, userID uint64) ([]model.Enrollment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT e.user_id, e.course_id, c.title, e.amount, e.progress, e.enrolled_at
		 FROM enrollments e JOIN courses c ON c.id = e.course_id
		 WHERE e.user_id=? ORDER BY e.enrolled_at, e.course_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Enrollment{}
	for rows.Next() {
		var e model.Enrollment
		if err := rows.Scan(&e.UserID, &e.CourseID, &e.CourseTitle, &e.Amount, &e.Progress, &e.EnrolledAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateProgress sets progress (0-100) on an existing enrollment.
func (r *EnrollmentRepo) UpdateProgress(ctx context.Context, userID, courseID uint64, progress int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE enrollments SET progress=? WHERE user_id=? AND course_id=?", progress, userID, courseID)
	if err != nil {
		return err
	}
	return expectRow(res, ErrNotEnrolled)
}
