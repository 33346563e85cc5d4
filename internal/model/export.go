package model

import (
	"time"

	"github.com/google/uuid"
)

// CohortReport is the per-student summary of a cohort, used for export.
type CohortReport struct {
	CohortID    uuid.UUID       `json:"cohort_id"`
	CohortLabel string          `json:"cohort_label"`
	GeneratedAt time.Time       `json:"generated_at"`
	Exams       []ReportExam    `json:"exams"`
	Students    []StudentReport `json:"students"`
}

// ReportExam is a column of the cohort report.
type ReportExam struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// StudentReport holds one student's row of the cohort report.
type StudentReport struct {
	UserID           uuid.UUID    `json:"user_id"`
	FullName         string       `json:"full_name"`
	Email            string       `json:"email"`
	Cedula           string       `json:"cedula"`
	Results          []ExamResult `json:"results"`
	TotalTimeSeconds int64        `json:"total_time_seconds"`
	LastActiveAt     *time.Time   `json:"last_active_at,omitempty"`
}
