package service

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/iliyamo/course-marketplace/internal/model"
)

// Course payloads arrive either as JSON or as multipart form fields that the
// handler folds into a JSON object. Form values are always strings, so the
// field types below accept both the native JSON type and its string form.

// unquote returns the contents of a JSON string token, or ok=false when b is
// not a string.
func unquote(b []byte) (string, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '"' {
		return "", false
	}
	var s string
	if err := sonic.Unmarshal(b, &s); err != nil {
		return "", false
	}
	return s, true
}

// Float is a number that may also be sent as a numeric string.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	if s, ok := unquote(b); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return err
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := sonic.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Int is an integer that may also be sent as a numeric string.
type Int int

func (n *Int) UnmarshalJSON(b []byte) error {
	if s, ok := unquote(b); ok {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		*n = Int(v)
		return nil
	}
	var v int
	if err := sonic.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Int(v)
	return nil
}

// Bool accepts true/false as well as "true", "false", "1", "0" and "on".
type Bool bool

func (v *Bool) UnmarshalJSON(b []byte) error {
	if s, ok := unquote(b); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "on", "yes":
			*v = true
		default:
			*v = false
		}
		return nil
	}
	var x bool
	if err := sonic.Unmarshal(b, &x); err != nil {
		return err
	}
	*v = Bool(x)
	return nil
}

// splitList trims every element and drops empty ones.
func splitList(s, sep string) []string {
	out := []string{}
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func unmarshalList(b []byte, sep string) ([]string, error) {
	if s, ok := unquote(b); ok {
		t := strings.TrimSpace(s)
		// a form field may carry a JSON array as text
		if strings.HasPrefix(t, "[") {
			return unmarshalList([]byte(t), sep)
		}
		return splitList(s, sep), nil
	}
	var raw []string
	if err := sonic.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return splitList(strings.Join(raw, sep), sep), nil
}

// CommaList is a string list sent as an array or a comma separated string.
type CommaList []string

func (l *CommaList) UnmarshalJSON(b []byte) error {
	v, err := unmarshalList(b, ",")
	*l = v
	return err
}

// LineList is a string list sent as an array or one item per line.
type LineList []string

func (l *LineList) UnmarshalJSON(b []byte) error {
	v, err := unmarshalList(b, "\n")
	*l = v
	return err
}

// unmarshalEmbedded decodes b into v, first unwrapping it when an object or
// array was sent as a JSON encoded string.
func unmarshalEmbedded(b []byte, v any) error {
	if s, ok := unquote(b); ok {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		b = []byte(s)
	}
	return sonic.Unmarshal(b, v)
}

type LessonInput struct {
	Order    Int    `json:"order"`
	Title    string `json:"title" validate:"required,notblank,max=200"`
	Duration string `json:"duration" validate:"max=64"`
	Content  string `json:"content"`
}

type LessonList []LessonInput

func (l *LessonList) UnmarshalJSON(b []byte) error {
	var raw []LessonInput
	if err := unmarshalEmbedded(b, &raw); err != nil {
		return err
	}
	*l = raw
	return nil
}

// lessons orders the input by its order field, keeping input order for
// ties and for lessons without one.
func (l LessonList) lessons() []model.Lesson {
	out := make([]model.Lesson, len(l))
	for i, in := range l {
		out[i] = model.Lesson{Order: int(in.Order), Title: strings.TrimSpace(in.Title), Duration: in.Duration, Content: in.Content}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

// InstructorInput is merged into model.Instructor field by field.
type InstructorInput struct {
	Name  *string `json:"name" validate:"omitempty,max=100"`
	Bio   *string `json:"bio" validate:"omitempty,max=500"`
	Image *string `json:"image" validate:"omitempty,max=512"`
}

func (in *InstructorInput) UnmarshalJSON(b []byte) error {
	type plain InstructorInput
	var v plain
	if err := unmarshalEmbedded(b, &v); err != nil {
		return err
	}
	*in = InstructorInput(v)
	return nil
}

func (in *InstructorInput) mergeInto(dst *model.Instructor) {
	if in == nil {
		return
	}
	if in.Name != nil {
		dst.Name = strings.TrimSpace(*in.Name)
	}
	if in.Bio != nil {
		dst.Bio = *in.Bio
	}
	if in.Image != nil {
		dst.Image = strings.TrimSpace(*in.Image)
	}
}

// OverviewInput is merged into model.Overview field by field.
type OverviewInput struct {
	DailyLiveClasses  *Bool   `json:"dailyLiveClasses"`
	FreeVideos        *Bool   `json:"freeVideos"`
	FreeNotes         *Bool   `json:"freeNotes"`
	WeeklyClass       *Bool   `json:"weeklyClass"`
	AskToGurusFeature *Bool   `json:"askToGurusFeature"`
	Description       *string `json:"description" validate:"omitempty,max=2000"`
}

func (in *OverviewInput) UnmarshalJSON(b []byte) error {
	type plain OverviewInput
	var v plain
	if err := unmarshalEmbedded(b, &v); err != nil {
		return err
	}
	*in = OverviewInput(v)
	return nil
}

func mergeBool(dst *bool, v *Bool) {
	if v != nil {
		*dst = bool(*v)
	}
}

func (in *OverviewInput) mergeInto(dst *model.Overview) {
	if in == nil {
		return
	}
	mergeBool(&dst.DailyLiveClasses, in.DailyLiveClasses)
	mergeBool(&dst.FreeVideos, in.FreeVideos)
	mergeBool(&dst.FreeNotes, in.FreeNotes)
	mergeBool(&dst.WeeklyClass, in.WeeklyClass)
	mergeBool(&dst.AskToGurusFeature, in.AskToGurusFeature)
	if in.Description != nil {
		dst.Description = *in.Description
	}
}

// CourseInput is the create payload.
type CourseInput struct {
	Title            string           `json:"title" validate:"required,notblank,min=5,max=100"`
	Description      string           `json:"description" validate:"required,notblank,min=20,max=1000"`
	Category         string           `json:"category" validate:"required,notblank,max=100"`
	SubCategory      string           `json:"subCategory" validate:"required,notblank,max=100"`
	SubSubCategory   string           `json:"subSubCategory" validate:"max=100"`
	Level            string           `json:"level" validate:"required,oneof=Beginner Intermediate Advanced"`
	Price            *Float           `json:"price" validate:"required,gte=0"`
	OriginalPrice    *Float           `json:"originalPrice" validate:"omitempty,gte=0"`
	Duration         string           `json:"duration" validate:"required,notblank,max=64"`
	Lessons          *Int             `json:"lessons" validate:"required,gte=1"`
	LessonsContent   LessonList       `json:"lessonsContent" validate:"omitempty,dive"`
	CourseImage      string           `json:"courseImage" validate:"max=512"`
	Tags             CommaList        `json:"tags"`
	Requirements     LineList         `json:"requirements"`
	WhatYouWillLearn LineList         `json:"whatYouWillLearn"`
	Curriculum       LineList         `json:"curriculum"`
	Instructor       *InstructorInput `json:"instructor"`
	Overview         *OverviewInput   `json:"overview"`
	IsActive         *Bool            `json:"isActive"`
	IsFeatured       *Bool            `json:"isFeatured"`
}

// course builds a new course from the payload. originalPrice falls back to
// price and isActive defaults to true.
func (in CourseInput) course() *model.Course {
	c := &model.Course{
		Title:            strings.TrimSpace(in.Title),
		Description:      strings.TrimSpace(in.Description),
		Category:         strings.TrimSpace(in.Category),
		SubCategory:      strings.TrimSpace(in.SubCategory),
		SubSubCategory:   strings.TrimSpace(in.SubSubCategory),
		Level:            in.Level,
		Price:            float64(*in.Price),
		Duration:         strings.TrimSpace(in.Duration),
		Lessons:          int(*in.Lessons),
		LessonsContent:   in.LessonsContent.lessons(),
		CourseImage:      strings.TrimSpace(in.CourseImage),
		Tags:             nonNil(in.Tags),
		Requirements:     nonNil(in.Requirements),
		WhatYouWillLearn: nonNil(in.WhatYouWillLearn),
		Curriculum:       nonNil(in.Curriculum),
		IsActive:         true,
	}
	c.OriginalPrice = c.Price
	if in.OriginalPrice != nil {
		c.OriginalPrice = float64(*in.OriginalPrice)
	}
	in.Instructor.mergeInto(&c.Instructor)
	in.Overview.mergeInto(&c.Overview)
	mergeBool(&c.IsActive, in.IsActive)
	mergeBool(&c.IsFeatured, in.IsFeatured)
	return c
}

func nonNil[T ~[]string](v T) []string {
	if v == nil {
		return []string{}
	}
	return []string(v)
}

// CoursePatch is the update payload; absent fields keep their value.
type CoursePatch struct {
	Title            *string          `json:"title" validate:"omitempty,notblank,min=5,max=100"`
	Description      *string          `json:"description" validate:"omitempty,notblank,min=20,max=1000"`
	Category         *string          `json:"category" validate:"omitempty,notblank,max=100"`
	SubCategory      *string          `json:"subCategory" validate:"omitempty,notblank,max=100"`
	SubSubCategory   *string          `json:"subSubCategory" validate:"omitempty,max=100"`
	Level            *string          `json:"level" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	Price            *Float           `json:"price" validate:"omitempty,gte=0"`
	OriginalPrice    *Float           `json:"originalPrice" validate:"omitempty,gte=0"`
	Duration         *string          `json:"duration" validate:"omitempty,notblank,max=64"`
	Lessons          *Int             `json:"lessons" validate:"omitempty,gte=1"`
	LessonsContent   *LessonList      `json:"lessonsContent" validate:"omitempty,dive"`
	CourseImage      *string          `json:"courseImage" validate:"omitempty,max=512"`
	Tags             *CommaList       `json:"tags"`
	Requirements     *LineList        `json:"requirements"`
	WhatYouWillLearn *LineList        `json:"whatYouWillLearn"`
	Curriculum       *LineList        `json:"curriculum"`
	Instructor       *InstructorInput `json:"instructor"`
	Overview         *OverviewInput   `json:"overview"`
	IsActive         *Bool            `json:"isActive"`
	IsFeatured       *Bool            `json:"isFeatured"`
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// applyTo merges the patch into c. Derived fields are never touched.
func (p CoursePatch) applyTo(c *model.Course) {
	setString(&c.Title, p.Title)
	setString(&c.Description, p.Description)
	setString(&c.Category, p.Category)
	setString(&c.SubCategory, p.SubCategory)
	setString(&c.SubSubCategory, p.SubSubCategory)
	setString(&c.Level, p.Level)
	setString(&c.Duration, p.Duration)
	setString(&c.CourseImage, p.CourseImage)
	if p.Price != nil {
		c.Price = float64(*p.Price)
	}
	if p.OriginalPrice != nil {
		c.OriginalPrice = float64(*p.OriginalPrice)
	}
	if p.Lessons != nil {
		c.Lessons = int(*p.Lessons)
	}
	if p.LessonsContent != nil {
		c.LessonsContent = p.LessonsContent.lessons()
	}
	if p.Tags != nil {
		c.Tags = nonNil(*p.Tags)
	}
	if p.Requirements != nil {
		c.Requirements = nonNil(*p.Requirements)
	}
	if p.WhatYouWillLearn != nil {
		c.WhatYouWillLearn = nonNil(*p.WhatYouWillLearn)
	}
	if p.Curriculum != nil {
		c.Curriculum = nonNil(*p.Curriculum)
	}
	p.Instructor.mergeInto(&c.Instructor)
	p.Overview.mergeInto(&c.Overview)
	mergeBool(&c.IsActive, p.IsActive)
	mergeBool(&c.IsFeatured, p.IsFeatured)
}
