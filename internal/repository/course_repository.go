package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/bytedance/sonic"

	"github.com/iliyamo/course-marketplace/internal/model"
)

// CourseRepo stores courses and their lessons. It owns the enrolled_students,
// total_revenue, rating and num_reviews projections.
type CourseRepo struct{ db *sql.DB }

// NewCourseRepo creates a CourseRepo on db.
func NewCourseRepo(db *sql.DB) *CourseRepo { return &CourseRepo{db: db} }

// CourseFilter narrows List. A nil IsActive returns both states.
type CourseFilter struct {
	Search      string
	Category    string
	SubCategory string
	Level       string
	IsActive    *bool
	IsFeatured  *bool
	Page        Page
	SortBy      string
	SortOrder   string
}

var courseSortColumns = map[string]string{
	"createdAt":        "created_at",
	"lastUpdated":      "last_updated",
	"price":            "price",
	"rating":           "rating",
	"enrolledStudents": "enrolled_students",
	"numReviews":       "num_reviews",
	"title":            "title",
}

const courseColumns = `id, title, description, instructor_name, COALESCE(instructor_bio, ''), instructor_image,
	category, sub_category, sub_sub_category, level, price, original_price, duration, lessons, course_image,
	rating, num_reviews, enrolled_students, total_revenue, tags, requirements, what_you_will_learn, curriculum,
	daily_live_classes, free_videos, free_notes, weekly_class, ask_to_gurus, COALESCE(overview_description, ''),
	is_active, is_featured, COALESCE(created_by, 0), last_updated, created_at`

func scanCourse(s rowScanner) (model.Course, error) {
	var (
		c                             model.Course
		tags, reqs, learn, curriculum []byte
	)
	err := s.Scan(&c.ID, &c.Title, &c.Description, &c.Instructor.Name, &c.Instructor.Bio, &c.Instructor.Image,
		&c.Category, &c.SubCategory, &c.SubSubCategory, &c.Level, &c.Price, &c.OriginalPrice, &c.Duration,
		&c.Lessons, &c.CourseImage, &c.Rating, &c.NumReviews, &c.EnrolledStudents, &c.TotalRevenue,
		&tags, &reqs, &learn, &curriculum,
		&c.Overview.DailyLiveClasses, &c.Overview.FreeVideos, &c.Overview.FreeNotes, &c.Overview.WeeklyClass,
		&c.Overview.AskToGurusFeature, &c.Overview.Description,
		&c.IsActive, &c.IsFeatured, &c.CreatedBy, &c.LastUpdated, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	if c.Tags, err = decodeList(tags); err != nil {
		return c, err
	}
	if c.Requirements, err = decodeList(reqs); err != nil {
		return c, err
	}
	if c.WhatYouWillLearn, err = decodeList(learn); err != nil {
		return c, err
	}
	if c.Curriculum, err = decodeList(curriculum); err != nil {
		return c, err
	}
	c.LessonsContent = []model.Lesson{}
	return c, nil
}

func decodeList(b []byte) ([]string, error) {
	out := []string{}
	if len(b) == 0 {
		return out, nil
	}
	if err := sonic.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	s, err := sonic.MarshalString(v)
	if err != nil {
		return "[]"
	}
	return s
}

// Create inserts the course and its lesson rows in one transaction.
func (r *CourseRepo) Create(ctx context.Context, c *model.Course) (err error) {
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

	var createdBy any
	if c.CreatedBy != 0 {
		createdBy = c.CreatedBy
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO courses (
			title, description, instructor_name, instructor_bio, instructor_image,
			category, sub_category, sub_sub_category, level, price, original_price, duration, lessons,
			course_image, tags, requirements, what_you_will_learn, curriculum,
			daily_live_classes, free_videos, free_notes, weekly_class, ask_to_gurus, overview_description,
			is_active, is_featured, created_by, last_updated, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.Title, c.Description, c.Instructor.Name, c.Instructor.Bio, c.Instructor.Image,
		c.Category, c.SubCategory, c.SubSubCategory, c.Level, c.Price, c.OriginalPrice, c.Duration, c.Lessons,
		c.CourseImage, encodeList(c.Tags), encodeList(c.Requirements), encodeList(c.WhatYouWillLearn), encodeList(c.Curriculum),
		c.Overview.DailyLiveClasses, c.Overview.FreeVideos, c.Overview.FreeNotes, c.Overview.WeeklyClass,
		c.Overview.AskToGurusFeature, c.Overview.Description,
		c.IsActive, c.IsFeatured, createdBy, c.LastUpdated.UTC(), c.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return replaceLessons(ctx, tx, c.ID, c.LessonsContent)
}

func replaceLessons(ctx context.Context, q queryer, courseID uint64, lessons []model.Lesson) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM course_lessons WHERE course_id=?", courseID); err != nil {
		return err
	}
	if len(lessons) == 0 {
		return nil
	}
	ins := sq.Insert("course_lessons").Columns("course_id", "position", "title", "duration", "content")
	for i, l := range lessons {
		// positions are rewritten densely; Order only decides the sequence
		ins = ins.Values(courseID, i+1, l.Title, l.Duration, l.Content)
	}
	query, args, err := ins.ToSql()
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, query, args...)
	return err
}

func loadLessons(ctx context.Context, q queryer, courseID uint64) ([]model.Lesson, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT position, title, duration, COALESCE(content, '') FROM course_lessons WHERE course_id=? ORDER BY position",
		courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Lesson{}
	for rows.Next() {
		var l model.Lesson
		if err := rows.Scan(&l.Order, &l.Title, &l.Duration, &l.Content); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetByID loads a course with its lesson content.
func (r *CourseRepo) GetByID(ctx context.Context, id uint64) (*model.Course, error) {
	c, err := scanCourse(r.db.QueryRowContext(ctx, "SELECT "+courseColumns+" FROM courses WHERE id=?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	if c.LessonsContent, err = loadLessons(ctx, r.db, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// courseListQuery builds the count and page queries for f. The page query
// always ends with id so equal sort keys still page deterministically.
func courseListQuery(f CourseFilter) (sq.SelectBuilder, sq.SelectBuilder) {
	conds := sq.And{}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := containsPattern(s)
		conds = append(conds, sq.Or{
			sq.Expr("LOWER(title) LIKE ? ESCAPE '!'", like),
			sq.Expr("LOWER(description) LIKE ? ESCAPE '!'", like),
			sq.Expr("LOWER(instructor_name) LIKE ? ESCAPE '!'", like),
			sq.Expr("LOWER(CAST(tags AS CHAR)) LIKE ? ESCAPE '!'", like),
		})
	}
	if f.Category != "" {
		conds = append(conds, sq.Eq{"category": f.Category})
	}
	if f.SubCategory != "" {
		conds = append(conds, sq.Eq{"sub_category": f.SubCategory})
	}
	if f.Level != "" {
		conds = append(conds, sq.Eq{"level": f.Level})
	}
	if f.IsActive != nil {
		conds = append(conds, sq.Eq{"is_active": *f.IsActive})
	}
	if f.IsFeatured != nil {
		conds = append(conds, sq.Eq{"is_featured": *f.IsFeatured})
	}

	col, ok := courseSortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}

	count := sq.Select("COUNT(*)").From("courses").Where(conds)
	data := sq.Select(courseColumns).From("courses").Where(conds).
		OrderBy(col+" "+dir, "id "+dir).
		Limit(uint64(f.Page.Limit)).Offset(f.Page.Offset())
	return count, data
}

// List returns one page of courses (without lesson content) and the total
// number of matches.
func (r *CourseRepo) List(ctx context.Context, f CourseFilter) ([]model.Course, int64, error) {
	countQ, dataQ := courseListQuery(f)

	query, args, err := countQ.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err = dataQ.ToSql()
	if err != nil {
		return nil, 0, err
	}
	out, err := queryCourses(ctx, r.db, query, args...)
	return out, total, err
}

func queryCourses(ctx context.Context, q queryer, query string, args ...any) ([]model.Course, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update writes every editable column of c and replaces its lessons. The
// derived columns (rating, num_reviews, enrolled_students, total_revenue)
// are never written here.
func (r *CourseRepo) Update(ctx context.Context, c *model.Course) (err error) {
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

	res, err := tx.ExecContext(ctx, `UPDATE courses SET
			title=?, description=?, instructor_name=?, instructor_bio=?, instructor_image=?,
			category=?, sub_category=?, sub_sub_category=?, level=?, price=?, original_price=?, duration=?, lessons=?,
			course_image=?, tags=?, requirements=?, what_you_will_learn=?, curriculum=?,
			daily_live_classes=?, free_videos=?, free_notes=?, weekly_class=?, ask_to_gurus=?, overview_description=?,
			is_active=?, is_featured=?, last_updated=?
		WHERE id=?`,
		c.Title, c.Description, c.Instructor.Name, c.Instructor.Bio, c.Instructor.Image,
		c.Category, c.SubCategory, c.SubSubCategory, c.Level, c.Price, c.OriginalPrice, c.Duration, c.Lessons,
		c.CourseImage, encodeList(c.Tags), encodeList(c.Requirements), encodeList(c.WhatYouWillLearn), encodeList(c.Curriculum),
		c.Overview.DailyLiveClasses, c.Overview.FreeVideos, c.Overview.FreeNotes, c.Overview.WeeklyClass,
		c.Overview.AskToGurusFeature, c.Overview.Description,
		c.IsActive, c.IsFeatured, c.LastUpdated.UTC(), c.ID)
	if err != nil {
		return err
	}
	if err = expectRow(res, ErrCourseNotFound); err != nil {
		return err
	}
	return replaceLessons(ctx, tx, c.ID, c.LessonsContent)
}

// SetActive flips is_active and stamps last_updated.
func (r *CourseRepo) SetActive(ctx context.Context, id uint64, active bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE courses SET is_active=?, last_updated=? WHERE id=?", active, at.UTC(), id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrCourseNotFound)
}

// DeleteIfUnreferenced removes the course only when no enrollment references
// it. The course row is locked first so a concurrent enrollment either
// commits before the count or fails its foreign key check afterwards. When
// enrollments exist it returns their count with ErrHasEnrollments and
// changes nothing.
func (r *CourseRepo) DeleteIfUnreferenced(ctx context.Context, id uint64) (n int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	if _, err = lockCourse(ctx, tx, id); err != nil {
		return 0, err
	}
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM enrollments WHERE course_id=?", id).Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		err = ErrHasEnrollments
		return n, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM courses WHERE id=?", id); err != nil {
		if mysqlErrNumber(err) == mysqlRowIsReferenced {
			err = ErrHasEnrollments
		}
		return 0, err
	}
	return 0, nil
}

// CategoryCount is one row of the public category listing.
type CategoryCount struct {
	Category      string   `json:"category"`
	Count         int64    `json:"count"`
	SubCategories []string `json:"subCategories"`
}

// Categories lists the categories of active courses with their sizes.
func (r *CourseRepo) Categories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, sub_category, COUNT(*) FROM courses WHERE is_active=1
		 GROUP BY category, sub_category ORDER BY category, sub_category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CategoryCount{}
	for rows.Next() {
		var (
			cat, sub string
			n        int64
		)
		if err := rows.Scan(&cat, &sub, &n); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].Category != cat {
			out = append(out, CategoryCount{Category: cat, SubCategories: []string{}})
		}
		last := &out[len(out)-1]
		last.Count += n
		last.SubCategories = append(last.SubCategories, sub)
	}
	return out, rows.Err()
}

// lockCourse takes a row lock on the course and returns its current price.
func lockCourse(ctx context.Context, tx *sql.Tx, id uint64) (float64, error) {
	var price float64
	err := tx.QueryRowContext(ctx, "SELECT price FROM courses WHERE id=? FOR UPDATE", id).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrCourseNotFound
	}
	return price, err
}

// recomputeEnrollmentTotals rebuilds enrolled_students and total_revenue
// from the enrollments table.
func recomputeEnrollmentTotals(ctx context.Context, q queryer, courseID uint64) error {
	_, err := q.ExecContext(ctx, `UPDATE courses SET
			enrolled_students = (SELECT COUNT(*) FROM enrollments WHERE course_id=?),
			total_revenue = (SELECT COALESCE(SUM(amount), 0) FROM enrollments WHERE course_id=?)
		WHERE id=?`, courseID, courseID, courseID)
	return err
}

// recomputeRating rebuilds rating and num_reviews from approved reviews.
func recomputeRating(ctx context.Context, q queryer, courseID uint64) error {
	_, err := q.ExecContext(ctx, `UPDATE courses SET
			rating = (SELECT COALESCE(ROUND(AVG(rating), 1), 0) FROM course_reviews WHERE course_id=? AND is_approved=1),
			num_reviews = (SELECT COUNT(*) FROM course_reviews WHERE course_id=? AND is_approved=1)
		WHERE id=?`, courseID, courseID, courseID)
	return err
}
