package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamResult is a user's best finished attempt for one exam.
type ExamResult struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	ExamID     uuid.UUID `json:"exam_id"`
	ExamTitle  string    `json:"exam_title"`
	Score      float64   `json:"score"`
	Passed     bool      `json:"passed"`
	FinishedAt time.Time `json:"finished_at"`
}

// UserResult is an exam's best finished attempt for one user.
type UserResult struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Score      float64   `json:"score"`
	Passed     bool      `json:"passed"`
	FinishedAt time.Time `json:"finished_at"`
}

// StudentExam is an exam in a student's list together with their standing in it.
type StudentExam struct {
	Exam
	AttemptID    *uuid.UUID `json:"attempt_id,omitempty"` // best finished attempt
	Attempted    bool       `json:"attempted"`
	Completed    bool       `json:"completed"`
	BestScore    *float64   `json:"best_score,omitempty"`
	AttemptsUsed int        `json:"attempts_used"`
	CanRetry     bool       `json:"can_retry"`
}

// Progress summarizes a student's advance through their course.
type Progress struct {
	SubjectsTotal    int `json:"subjects_total"`
	ExamsCompleted   int `json:"exams_completed"`
	ExamResultsTotal int `json:"exam_results_total"`
}

// AttemptRecord is a finished attempt joined with its exam title and user identity.
type AttemptRecord struct {
	Attempt
	ExamTitle string
	Email     string
	FullName  string
}
