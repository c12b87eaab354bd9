package servicetest

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/repository"
)

// Stats implements service.StatsStore over the fake tables.
type Stats struct{ db *DB }

func inWindow(w repository.Window, t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

func (s *Stats) CountUsers(_ context.Context, w repository.Window, active *bool, roles ...model.Role) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, u := range s.db.users {
		if !inWindow(w, u.CreatedAt) || (active != nil && u.IsActive != *active) {
			continue
		}
		if len(roles) > 0 && !slices.Contains(roles, u.Role) {
			continue
		}
		n++
	}
	return n, nil
}

func (s *Stats) CountCourses(_ context.Context, w repository.Window, active *bool) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, c := range s.db.courses {
		if inWindow(w, c.CreatedAt) && (active == nil || c.IsActive == *active) {
			n++
		}
	}
	return n, nil
}

func (s *Stats) CountEnrollments(_ context.Context, w repository.Window) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, e := range s.db.enrollments {
		if inWindow(w, e.EnrolledAt) {
			n++
		}
	}
	return n, nil
}

func (s *Stats) SumRevenue(_ context.Context, w repository.Window) (float64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var v float64
	for _, e := range s.db.enrollments {
		if inWindow(w, e.EnrolledAt) {
			v += e.Amount
		}
	}
	return v, nil
}

func buckets(counts map[string]int64) []repository.Bucket {
	out := []repository.Bucket{}
	for k, n := range counts {
		out = append(out, repository.Bucket{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (s *Stats) CourseBreakdown(_ context.Context) (repository.CourseBreakdown, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var (
		b          repository.CourseBreakdown
		rated      int
		ratingSum  float64
		byCategory = map[string]int64{}
		byLevel    = map[string]int64{}
	)
	for _, c := range s.db.courses {
		b.Total++
		if c.IsActive {
			b.Active++
		}
		if c.IsFeatured {
			b.Featured++
		}
		b.TotalEnrollments += int64(c.EnrolledStudents)
		b.TotalRevenue += c.TotalRevenue
		if c.Rating > 0 {
			rated++
			ratingSum += c.Rating
		}
		byCategory[c.Category]++
		byLevel[c.Level]++
		ov := c.Overview
		for _, f := range []struct {
			on  bool
			dst *int64
		}{
			{ov.DailyLiveClasses, &b.Overview.DailyLiveClasses},
			{ov.FreeVideos, &b.Overview.FreeVideos},
			{ov.FreeNotes, &b.Overview.FreeNotes},
			{ov.WeeklyClass, &b.Overview.WeeklyClass},
			{ov.AskToGurusFeature, &b.Overview.AskToGurusFeature},
		} {
			if f.on {
				*f.dst++
			}
		}
	}
	b.Inactive = b.Total - b.Active
	if rated > 0 {
		b.AverageRating = float64(int(ratingSum/float64(rated)*10+0.5)) / 10
	}
	b.ByCategory = buckets(byCategory)
	b.ByLevel = buckets(byLevel)
	return b, nil
}

func (s *Stats) TopCourses(_ context.Context, limit int, activeOnly bool) ([]repository.CourseRank, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []repository.CourseRank{}
	for _, c := range s.db.courses {
		if activeOnly && !c.IsActive {
			continue
		}
		var sum, n int
		for _, e := range s.db.enrollments {
			if e.CourseID == c.ID {
				sum += e.Progress
				n++
			}
		}
		r := repository.CourseRank{
			ID: c.ID, Title: c.Title, Category: c.Category, Level: c.Level, CourseImage: c.CourseImage,
			Price: c.Price, Rating: c.Rating, NumReviews: int64(c.NumReviews),
			EnrolledStudents: int64(c.EnrolledStudents), TotalRevenue: c.TotalRevenue,
		}
		if n > 0 {
			r.AvgProgress = float64(sum) / float64(n)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.EnrolledStudents != b.EnrolledStudents {
			return a.EnrolledStudents > b.EnrolledStudents
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.ID < b.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Stats) RecentUsers(_ context.Context, n int) ([]repository.UserActivity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []repository.UserActivity{}
	for _, u := range s.db.users {
		out = append(out, repository.UserActivity{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out[:min(n, len(out))], nil
}

func (s *Stats) RecentEnrollments(_ context.Context, n int) ([]repository.EnrollmentActivity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []repository.EnrollmentActivity{}
	for _, e := range s.db.enrollments {
		a := repository.EnrollmentActivity{UserID: e.UserID, CourseID: e.CourseID, Amount: e.Amount, EnrolledAt: e.EnrolledAt}
		if u, ok := s.db.users[e.UserID]; ok {
			a.UserName = u.Name
		}
		if c, ok := s.db.courses[e.CourseID]; ok {
			a.CourseTitle = c.Title
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.After(out[j].EnrolledAt) })
	return out[:min(n, len(out))], nil
}

func (s *Stats) RecentCourses(_ context.Context, n int) ([]repository.CourseActivity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []repository.CourseActivity{}
	for _, c := range s.db.courses {
		out = append(out, repository.CourseActivity{ID: c.ID, Title: c.Title, Category: c.Category, CreatedAt: c.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out[:min(n, len(out))], nil
}
