package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/repository"
)

const (
	trendMonths         = 6
	defaultActivities   = 10
	maxActivities       = 50
	defaultTopCourses   = 4
	courseStatsTopLimit = 10
)

// StatsService computes the admin dashboard and statistics payloads.
type StatsService struct {
	Stats StatsStore
	Now   func() time.Time
}

func NewStatsService(stats StatsStore) *StatsService {
	return &StatsService{Stats: stats, Now: time.Now}
}

func (s *StatsService) now() time.Time { return s.Now().UTC() }

// Growth is current over previous as a percentage rounded to one decimal,
// or 0 when there is nothing to compare against.
func Growth(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return round1(current / previous * 100)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// MonthWindow is one calendar month in UTC.
type MonthWindow struct {
	Year   int
	Month  time.Month
	Window repository.Window
}

// LastMonths returns the n calendar months ending with the month of now,
// oldest first.
func LastMonths(now time.Time, n int) []MonthWindow {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]MonthWindow, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := first.AddDate(0, -i, 0)
		out = append(out, MonthWindow{
			Year:   start.Year(),
			Month:  start.Month(),
			Window: repository.Window{From: start, To: start.AddDate(0, 1, 0)},
		})
	}
	return out
}

type DashboardStats struct {
	TotalUsers        int64   `json:"totalUsers"`
	TotalCourses      int64   `json:"totalCourses"`
	TotalRevenue      float64 `json:"totalRevenue"`
	ActiveEnrollments int64   `json:"activeEnrollments"`
	UserGrowth        float64 `json:"userGrowth"`
	CourseGrowth      float64 `json:"courseGrowth"`
	RevenueGrowth     float64 `json:"revenueGrowth"`
	EnrollmentGrowth  float64 `json:"enrollmentGrowth"`
}

// Dashboard compares the last month against the eleven months before it.
func (s *StatsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	now := s.now()
	lastMonth := now.AddDate(0, -1, 0)
	recent := repository.Window{From: lastMonth}
	prior := repository.Window{From: now.AddDate(-1, 0, 0), To: lastMonth}
	all := repository.Window{}

	var (
		d                       DashboardStats
		err                     error
		usersNow, usersPrev     int64
		coursesNow, coursesPrev int64
		enrollNow, enrollPrev   int64
		revenueNow, revenuePrev float64
	)
	steps := []func() error{
		func() (err error) { d.TotalUsers, err = s.Stats.CountUsers(ctx, all, nil); return },
		func() (err error) { d.TotalCourses, err = s.Stats.CountCourses(ctx, all, nil); return },
		func() (err error) { d.TotalRevenue, err = s.Stats.SumRevenue(ctx, all); return },
		func() (err error) { d.ActiveEnrollments, err = s.Stats.CountEnrollments(ctx, all); return },
		func() (err error) { usersNow, err = s.Stats.CountUsers(ctx, recent, nil); return },
		func() (err error) { usersPrev, err = s.Stats.CountUsers(ctx, prior, nil); return },
		func() (err error) { coursesNow, err = s.Stats.CountCourses(ctx, recent, nil); return },
		func() (err error) { coursesPrev, err = s.Stats.CountCourses(ctx, prior, nil); return },
		func() (err error) { enrollNow, err = s.Stats.CountEnrollments(ctx, recent); return },
		func() (err error) { enrollPrev, err = s.Stats.CountEnrollments(ctx, prior); return },
		func() (err error) { revenueNow, err = s.Stats.SumRevenue(ctx, recent); return },
		func() (err error) { revenuePrev, err = s.Stats.SumRevenue(ctx, prior); return },
	}
	for _, step := range steps {
		if err = step(); err != nil {
			return nil, err
		}
	}
	d.UserGrowth = Growth(float64(usersNow), float64(usersPrev))
	d.CourseGrowth = Growth(float64(coursesNow), float64(coursesPrev))
	d.EnrollmentGrowth = Growth(float64(enrollNow), float64(enrollPrev))
	d.RevenueGrowth = Growth(revenueNow, revenuePrev)
	return &d, nil
}

// Activity is one line of the dashboard's recent activity feed.
type Activity struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	User   string    `json:"user"`
	Action string    `json:"action"`
	Time   string    `json:"time"`
	At     time.Time `json:"timestamp"`
	Icon   string    `json:"icon"`
	Color  string    `json:"color"`
}

// TimeAgo renders the distance between t and now the way the feed shows it.
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", unit)
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	}
	return plural(int(d/(24*time.Hour)), "day")
}

// Activities merges the newest registrations, enrollments and course
// creations into one feed ordered newest first.
func (s *StatsService) Activities(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = defaultActivities
	}
	if limit > maxActivities {
		limit = maxActivities
	}
	users, err := s.Stats.RecentUsers(ctx, 5)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.Stats.RecentEnrollments(ctx, 5)
	if err != nil {
		return nil, err
	}
	courses, err := s.Stats.RecentCourses(ctx, 3)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]Activity, 0, len(users)+len(enrollments)+len(courses))
	for _, u := range users {
		out = append(out, Activity{
			ID:     fmt.Sprintf("user-%d", u.ID),
			Type:   "user_registration",
			User:   u.Name,
			Action: "registered for an account",
			At:     u.CreatedAt,
			Icon:   "UserPlus",
			Color:  "blue",
		})
	}
	for _, e := range enrollments {
		out = append(out, Activity{
			ID:     fmt.Sprintf("enrollment-%d-%d", e.UserID, e.CourseID),
			Type:   "course_enrollment",
			User:   e.UserName,
			Action: fmt.Sprintf("enrolled in %q", e.CourseTitle),
			At:     e.EnrolledAt,
			Icon:   "BookPlus",
			Color:  "green",
		})
	}
	for _, c := range courses {
		out = append(out, Activity{
			ID:     fmt.Sprintf("course-%d", c.ID),
			Type:   "course_creation",
			User:   "Admin",
			Action: fmt.Sprintf("created new course %q", c.Title),
			At:     c.CreatedAt,
			Icon:   "BookOpen",
			Color:  "indigo",
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Time = TimeAgo(out[i].At, now)
	}
	return out, nil
}

// TopCourses ranks active courses by enrollments then rating.
func (s *StatsService) TopCourses(ctx context.Context, limit int) ([]repository.CourseRank, error) {
	if limit <= 0 {
		limit = defaultTopCourses
	}
	if limit > maxFeatured {
		limit = maxFeatured
	}
	return s.Stats.TopCourses(ctx, limit, true)
}

type MonthlyPoint struct {
	Month       string  `json:"month"`
	Year        int     `json:"year"`
	Users       int64   `json:"users"`
	Courses     int64   `json:"courses"`
	Enrollments int64   `json:"enrollments"`
	Revenue     float64 `json:"revenue"`
}

// MonthlyData returns per-month signups, new courses, enrollments and
// revenue for the last six calendar months.
func (s *StatsService) MonthlyData(ctx context.Context) ([]MonthlyPoint, error) {
	months := LastMonths(s.now(), trendMonths)
	out := make([]MonthlyPoint, 0, len(months))
	for _, m := range months {
		p := MonthlyPoint{Month: m.Month.String()[:3], Year: m.Year}
		var err error
		if p.Users, err = s.Stats.CountUsers(ctx, m.Window, nil); err != nil {
			return nil, err
		}
		if p.Courses, err = s.Stats.CountCourses(ctx, m.Window, nil); err != nil {
			return nil, err
		}
		if p.Enrollments, err = s.Stats.CountEnrollments(ctx, m.Window); err != nil {
			return nil, err
		}
		if p.Revenue, err = s.Stats.SumRevenue(ctx, m.Window); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// MonthCount is one bucket of a monthly trend.
type MonthCount struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

type CourseStats struct {
	repository.CourseBreakdown
	TopCourses   []repository.CourseRank `json:"topCourses"`
	MonthlyTrend []MonthCount            `json:"monthlyTrend"`
}

// CourseStats gathers the catalogue breakdown, the ten most enrolled
// courses and the six-month creation trend.
func (s *StatsService) CourseStats(ctx context.Context) (*CourseStats, error) {
	b, err := s.Stats.CourseBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.Stats.TopCourses(ctx, courseStatsTopLimit, false)
	if err != nil {
		return nil, err
	}
	trend := []MonthCount{}
	for _, m := range LastMonths(s.now(), trendMonths) {
		n, err := s.Stats.CountCourses(ctx, m.Window, nil)
		if err != nil {
			return nil, err
		}
		trend = append(trend, MonthCount{Year: m.Year, Month: int(m.Month), Count: n})
	}
	return &CourseStats{CourseBreakdown: b, TopCourses: top, MonthlyTrend: trend}, nil
}

type UserStats struct {
	TotalUsers    int64        `json:"totalUsers"`
	ActiveUsers   int64        `json:"activeUsers"`
	InactiveUsers int64        `json:"inactiveUsers"`
	AdminUsers    int64        `json:"adminUsers"`
	RegularUsers  int64        `json:"regularUsers"`
	Instructors   int64        `json:"instructors"`
	UserGrowth    []MonthCount `json:"userGrowth"`
}

func (s *StatsService) UserStats(ctx context.Context) (*UserStats, error) {
	all := repository.Window{}
	active, inactive := true, false
	var (
		st  UserStats
		err error
	)
	if st.TotalUsers, err = s.Stats.CountUsers(ctx, all, nil); err != nil {
		return nil, err
	}
	if st.ActiveUsers, err = s.Stats.CountUsers(ctx, all, &active); err != nil {
		return nil, err
	}
	if st.InactiveUsers, err = s.Stats.CountUsers(ctx, all, &inactive); err != nil {
		return nil, err
	}
	if st.AdminUsers, err = s.Stats.CountUsers(ctx, all, nil, model.RoleAdmin, model.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if st.RegularUsers, err = s.Stats.CountUsers(ctx, all, nil, model.RoleUser); err != nil {
		return nil, err
	}
	if st.Instructors, err = s.Stats.CountUsers(ctx, all, nil, model.RoleInstructor); err != nil {
		return nil, err
	}
	st.UserGrowth = []MonthCount{}
	for _, m := range LastMonths(s.now(), trendMonths) {
		n, err := s.Stats.CountUsers(ctx, m.Window, nil)
		if err != nil {
			return nil, err
		}
		st.UserGrowth = append(st.UserGrowth, MonthCount{Year: m.Year, Month: int(m.Month), Count: n})
	}
	return &st, nil
}
