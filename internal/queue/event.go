// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// ActivityQueueName is the durable queue carrying ActivityEvent messages.
const ActivityQueueName = "marketplace.activity"

// Activity event types.
const (
	EventUserRegistered    = "user.registered"
	EventCourseCreated     = "course.created"
	EventCourseUpdated     = "course.updated"
	EventCourseDeleted     = "course.deleted"
	EventEnrollmentCreated = "enrollment.created"
	EventReviewSubmitted   = "review.submitted"
)

// ActivityEvent is published after a successful write so downstream
// consumers can log, notify or feed analytics without querying MySQL.
type ActivityEvent struct {
	Type       string    `json:"type"`
	ActorID    uint64    `json:"actor_id,omitempty"`
	UserID     uint64    `json:"user_id,omitempty"`
	CourseID   uint64    `json:"course_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	Rating     int       `json:"rating,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
