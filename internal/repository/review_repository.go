package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/course-marketplace/internal/model"
)

// ReviewRepo stores course reviews. Every write runs under the course row lock
// and recomputes the course rating before commit.
type ReviewRepo struct{ db *sql.DB }

// NewReviewRepo creates a ReviewRepo on db.
func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

func (r *ReviewRepo) withCourseLock(ctx context.Context, courseID uint64, fn func(tx *sql.Tx) error) (err error) {
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
	if _, err = lockCourse(ctx, tx, courseID); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	err = recomputeRating(ctx, tx, courseID)
	return err
}

// Add stores an unapproved review. The insert selects from enrollments, so a
// reviewer who is not enrolled inserts nothing and gets ErrNotEnrolled; the
// (course_id, user_id) unique key turns a second review into
// ErrAlreadyReviewed.
func (r *ReviewRepo) Add(ctx context.Context, rv *model.Review) error {
	return r.withCourseLock(ctx, rv.CourseID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO course_reviews (course_id, user_id, rating, comment, is_approved, created_at)
			 SELECT ?, ?, ?, ?, 0, ? FROM enrollments WHERE user_id=? AND course_id=?`,
			rv.CourseID, rv.UserID, rv.Rating, rv.Comment, rv.CreatedAt.UTC(), rv.UserID, rv.CourseID)
		if err != nil {
			if _, dup := duplicateKey(err); dup {
				return ErrAlreadyReviewed
			}
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotEnrolled
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		rv.ID = uint64(id)
		rv.IsApproved = false
		return nil
	})
}

// List returns a course's reviews newest first.
func (r *ReviewRepo) List(ctx context.Context, courseID uint64, approvedOnly bool) ([]model.Review, error) {
	query := `SELECT r.id, r.course_id, r.user_id, u.name, r.rating, r.comment, r.is_approved, r.created_at
		FROM course_reviews r JOIN users u ON u.id = r.user_id
		WHERE r.course_id=?`
	if approvedOnly {
		query += " AND r.is_approved=1"
	}
	query += " ORDER BY r.created_at DESC, r.id DESC"

	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Review{}
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.CourseID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment,
			&rv.IsApproved, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// SetApproval flips a review's visibility and recomputes the course rating.
func (r *ReviewRepo) SetApproval(ctx context.Context, courseID, reviewID uint64, approved bool) error {
	return r.withCourseLock(ctx, courseID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE course_reviews SET is_approved=? WHERE id=? AND course_id=?", approved, reviewID, courseID)
		if err != nil {
			return err
		}
		return expectRow(res, ErrReviewNotFound)
	})
}

// Delete removes a review and recomputes the course rating.
func (r *ReviewRepo) Delete(ctx context.Context, courseID, reviewID uint64) error {
	return r.withCourseLock(ctx, courseID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM course_reviews WHERE id=? AND course_id=?", reviewID, courseID)
		if err != nil {
			return err
		}
		return expectRow(res, ErrReviewNotFound)
	})
}
