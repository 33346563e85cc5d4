package model

import (
	"time"

	"github.com/google/uuid"
)

// Course is a top-level program track such as "Tipo A" or "Tipo B".
type Course struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Cohort is a numbered offering of a course that students enroll into.
type Cohort struct {
	ID         uuid.UUID `json:"id"`
	CourseID   uuid.UUID `json:"course_id"`
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	CourseName string    `json:"course_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Label renders the cohort the way students know it, e.g. "Curso Tipo B Nro 200".
func (c Cohort) Label() string {
	if c.CourseName == "" {
		return c.Name
	}
	return c.CourseName + " Nro " + c.Name
}

// Subject is a theoretical unit within a course.
type Subject struct {
	ID         uuid.UUID `json:"id"`
	CourseID   uuid.UUID `json:"course_id"`
	Name       string    `json:"name"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// Content is a piece of static learning material attached to a subject.
type Content struct {
	ID           uuid.UUID `json:"id"`
	SubjectID    uuid.UUID `json:"subject_id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	ExternalLink string    `json:"external_link,omitempty"`
	FileURL      string    `json:"file_url,omitempty"`
	OrderIndex   int       `json:"order_index"`
	CreatedAt    time.Time `json:"created_at"`
}
