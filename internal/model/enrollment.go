package model

import "time"

// Enrollment links a user to a course. Amount is the course price captured
// at enrollment time and feeds Course.TotalRevenue.
type Enrollment struct {
	UserID      uint64    `json:"userId"`
	CourseID    uint64    `json:"course"`
	CourseTitle string    `json:"courseTitle,omitempty"`
	Amount      float64   `json:"amount"`
	Progress    int       `json:"progress"`
	EnrolledAt  time.Time `json:"enrolledAt"`
}

// Review is a learner's rating of a course. Only approved reviews count
// towards the course rating.
type Review struct {
	ID         uint64    `json:"id"`
	CourseID   uint64    `json:"courseId"`
	UserID     uint64    `json:"user"`
	UserName   string    `json:"userName,omitempty"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	IsApproved bool      `json:"isApproved"`
	CreatedAt  time.Time `json:"createdAt"`
}
