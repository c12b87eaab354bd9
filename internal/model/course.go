package model

import "time"

// Course levels.
const (
	LevelBeginner     = "Beginner"
	LevelIntermediate = "Intermediate"
	LevelAdvanced     = "Advanced"
)

// Levels lists the accepted values of Course.Level.
var Levels = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}

type Instructor struct {
	Name  string `json:"name"`
	Bio   string `json:"bio"`
	Image string `json:"image"`
}

// Overview holds the marketing feature flags shown on a course page.
type Overview struct {
	DailyLiveClasses  bool   `json:"dailyLiveClasses"`
	FreeVideos        bool   `json:"freeVideos"`
	FreeNotes         bool   `json:"freeNotes"`
	WeeklyClass       bool   `json:"weeklyClass"`
	AskToGurusFeature bool   `json:"askToGurusFeature"`
	Description       string `json:"description"`
}

// Lesson is one entry of a course's ordered lesson content.
type Lesson struct {
	Order    int    `json:"order"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
	Content  string `json:"content"`
}

// Course mirrors the courses table plus its lesson rows. Rating,
// NumReviews, EnrolledStudents and TotalRevenue are projections owned by the
// store and recomputed after every mutation of their source rows.
type Course struct {
	ID               uint64     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Instructor       Instructor `json:"instructor"`
	Category         string     `json:"category"`
	SubCategory      string     `json:"subCategory"`
	SubSubCategory   string     `json:"subSubCategory"`
	Level            string     `json:"level"`
	Price            float64    `json:"price"`
	OriginalPrice    float64    `json:"originalPrice"`
	Duration         string     `json:"duration"`
	Lessons          int        `json:"lessons"`
	LessonsContent   []Lesson   `json:"lessonsContent"`
	CourseImage      string     `json:"courseImage"`
	Rating           float64    `json:"rating"`
	NumReviews       int        `json:"numReviews"`
	EnrolledStudents int        `json:"enrolledStudents"`
	TotalRevenue     float64    `json:"totalRevenue"`
	Tags             []string   `json:"tags"`
	Requirements     []string   `json:"requirements"`
	WhatYouWillLearn []string   `json:"whatYouWillLearn"`
	Curriculum       []string   `json:"curriculum"`
	Overview         Overview   `json:"overview"`
	IsActive         bool       `json:"isActive"`
	IsFeatured       bool       `json:"isFeatured"`
	CreatedBy        uint64     `json:"createdBy,omitempty"`
	LastUpdated      time.Time  `json:"lastUpdated"`
	CreatedAt        time.Time  `json:"createdAt"`
}
