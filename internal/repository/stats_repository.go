package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/iliyamo/course-marketplace/internal/model"
)

// StatsRepo runs the read-only aggregate queries behind the dashboard and
// statistics endpoints.
type StatsRepo struct{ db *sql.DB }

// NewStatsRepo creates a StatsRepo on db.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// Window is a half-open [From, To) time range; a zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) apply(b sq.SelectBuilder, col string) sq.SelectBuilder {
	if !w.From.IsZero() {
		b = b.Where(sq.GtOrEq{col: w.From.UTC()})
	}
	if !w.To.IsZero() {
		b = b.Where(sq.Lt{col: w.To.UTC()})
	}
	return b
}

// Bucket is one group of a GROUP BY count.
type Bucket struct {
	Key   string `json:"_id"`
	Count int64  `json:"count"`
}

// OverviewAdoption counts courses advertising each overview feature.
type OverviewAdoption struct {
	DailyLiveClasses  int64 `json:"dailyLiveClasses"`
	FreeVideos        int64 `json:"freeVideos"`
	FreeNotes         int64 `json:"freeNotes"`
	WeeklyClass       int64 `json:"weeklyClass"`
	AskToGurusFeature int64 `json:"askToGurusFeature"`
}

// CourseBreakdown holds the grouped course counts behind the course stats page.
type CourseBreakdown struct {
	Total            int64            `json:"totalCourses"`
	Active           int64            `json:"activeCourses"`
	Inactive         int64            `json:"inactiveCourses"`
	Featured         int64            `json:"featuredCourses"`
	TotalEnrollments int64            `json:"totalEnrollments"`
	TotalRevenue     float64          `json:"totalRevenue"`
	AverageRating    float64          `json:"averageRating"`
	ByCategory       []Bucket         `json:"coursesByCategory"`
	ByLevel          []Bucket         `json:"coursesByLevel"`
	Overview         OverviewAdoption `json:"overviewFeatures"`
}

// CourseRank is a course summary used by top-N listings.
type CourseRank struct {
	ID               uint64  `json:"id"`
	Title            string  `json:"title"`
	Category         string  `json:"category"`
	Level            string  `json:"level"`
	CourseImage      string  `json:"courseImage"`
	Price            float64 `json:"price"`
	Rating           float64 `json:"rating"`
	NumReviews       int64   `json:"numReviews"`
	EnrolledStudents int64   `json:"enrolledStudents"`
	TotalRevenue     float64 `json:"totalRevenue"`
	AvgProgress      float64 `json:"avgProgress"`
}

// UserActivity is a recent registration.
type UserActivity struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// EnrollmentActivity is a recent enrollment with user and course names.
type EnrollmentActivity struct {
	UserID      uint64    `json:"userId"`
	UserName    string    `json:"userName"`
	CourseID    uint64    `json:"courseId"`
	CourseTitle string    `json:"courseTitle"`
	Amount      float64   `json:"amount"`
	EnrolledAt  time.Time `json:"enrolledAt"`
}

// CourseActivity is a recently created course.
type CourseActivity struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *StatsRepo) scalar(ctx context.Context, b sq.SelectBuilder, dest any) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, query, args...).Scan(dest)
}

func userCountQuery(w Window, active *bool, roles ...model.Role) sq.SelectBuilder {
	b := w.apply(sq.Select("COUNT(*)").From("users"), "created_at")
	if active != nil {
		b = b.Where(sq.Eq{"is_active": *active})
	}
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		b = b.Where(sq.Eq{"role": names})
	}
	return b
}

// CountUsers counts users created inside w, optionally by status and role.
func (r *StatsRepo) CountUsers(ctx context.Context, w Window, active *bool, roles ...model.Role) (int64, error) {
	var n int64
	err := r.scalar(ctx, userCountQuery(w, active, roles...), &n)
	return n, err
}

// CountCourses counts courses created inside w, optionally by status.
func (r *StatsRepo) CountCourses(ctx context.Context, w Window, active *bool) (int64, error) {
	b := w.apply(sq.Select("COUNT(*)").From("courses"), "created_at")
	if active != nil {
		b = b.Where(sq.Eq{"is_active": *active})
	}
	var n int64
	err := r.scalar(ctx, b, &n)
	return n, err
}

// CountEnrollments counts enrollments made inside w.
func (r *StatsRepo) CountEnrollments(ctx context.Context, w Window) (int64, error) {
	var n int64
	err := r.scalar(ctx, w.apply(sq.Select("COUNT(*)").From("enrollments"), "enrolled_at"), &n)
	return n, err
}

// SumRevenue totals enrollment amounts captured inside w.
func (r *StatsRepo) SumRevenue(ctx context.Context, w Window) (float64, error) {
	var v float64
	err := r.scalar(ctx, w.apply(sq.Select("COALESCE(SUM(amount), 0)").From("enrollments"), "enrolled_at"), &v)
	return v, err
}

// CourseBreakdown gathers the catalogue-wide course statistics.
func (r *StatsRepo) CourseBreakdown(ctx context.Context) (CourseBreakdown, error) {
	var b CourseBreakdown
	err := r.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(is_active), 0),
			COALESCE(SUM(is_featured), 0),
			COALESCE(SUM(enrolled_students), 0),
			COALESCE(SUM(total_revenue), 0),
			COALESCE(ROUND(AVG(NULLIF(rating, 0)), 1), 0),
			COALESCE(SUM(daily_live_classes), 0),
			COALESCE(SUM(free_videos), 0),
			COALESCE(SUM(free_notes), 0),
			COALESCE(SUM(weekly_class), 0),
			COALESCE(SUM(ask_to_gurus), 0)
		FROM courses`).Scan(&b.Total, &b.Active, &b.Featured, &b.TotalEnrollments, &b.TotalRevenue,
		&b.AverageRating, &b.Overview.DailyLiveClasses, &b.Overview.FreeVideos, &b.Overview.FreeNotes,
		&b.Overview.WeeklyClass, &b.Overview.AskToGurusFeature)
	if err != nil {
		return b, err
	}
	b.Inactive = b.Total - b.Active

	if b.ByCategory, err = r.buckets(ctx, "category"); err != nil {
		return b, err
	}
	b.ByLevel, err = r.buckets(ctx, "level")
	return b, err
}

func (r *StatsRepo) buckets(ctx context.Context, col string) ([]Bucket, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+col+", COUNT(*) AS n FROM courses GROUP BY "+col+" ORDER BY n DESC, "+col)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Bucket{}
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TopCourses ranks courses by enrolled_students, then rating.
func (r *StatsRepo) TopCourses(ctx context.Context, limit int, activeOnly bool) ([]CourseRank, error) {
	b := sq.Select("c.id", "c.title", "c.category", "c.level", "c.course_image", "c.price", "c.rating",
		"c.num_reviews", "c.enrolled_students", "c.total_revenue", "COALESCE(AVG(e.progress), 0)").
		From("courses c").
		LeftJoin("enrollments e ON e.course_id = c.id").
		GroupBy("c.id").
		OrderBy("c.enrolled_students DESC", "c.rating DESC", "c.id ASC").
		Limit(uint64(limit))
	if activeOnly {
		b = b.Where(sq.Eq{"c.is_active": true})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CourseRank{}
	for rows.Next() {
		var c CourseRank
		if err := rows.Scan(&c.ID, &c.Title, &c.Category, &c.Level, &c.CourseImage, &c.Price, &c.Rating,
			&c.NumReviews, &c.EnrolledStudents, &c.TotalRevenue, &c.AvgProgress); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecentUsers returns the n newest registrations.
func (r *StatsRepo) RecentUsers(ctx context.Context, n int) ([]UserActivity, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, email, created_at FROM users ORDER BY created_at DESC, id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []UserActivity{}
	for rows.Next() {
		var u UserActivity
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// RecentEnrollments returns the n newest enrollments.
func (r *StatsRepo) RecentEnrollments(ctx context.Context, n int) ([]EnrollmentActivity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.user_id, u.name, e.course_id, c.title, e.amount, e.enrolled_at
		 FROM enrollments e
		 JOIN users u ON u.id = e.user_id
		 JOIN courses c ON c.id = e.course_id
		 ORDER BY e.enrolled_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []EnrollmentActivity{}
	for rows.Next() {
		var e EnrollmentActivity
		if err := rows.Scan(&e.UserID, &e.UserName, &e.CourseID, &e.CourseTitle, &e.Amount, &e.EnrolledAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentCourses returns the n newest courses.
func (r *StatsRepo) RecentCourses(ctx context.Context, n int) ([]CourseActivity, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, title, category, created_at FROM courses ORDER BY created_at DESC, id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CourseActivity{}
	for rows.Next() {
		var c CourseActivity
		if err := rows.Scan(&c.ID, &c.Title, &c.Category, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
