package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamMode tells how an exam builds its question set.
type ExamMode string

const (
	// ModeBank exams are scoped to a subject and sample from its pooled bank.
	ModeBank ExamMode = "bank"
	// ModeFixed exams are scoped to a course and use their own question set.
	ModeFixed ExamMode = "fixed"
)

// Exam defaults.
const (
	DefaultPassingScore = 70
	DefaultMaxAttempts  = 1
)

// Exam is an exam definition. Exactly one of SubjectID and CourseID is set.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	SubjectID       *uuid.UUID `json:"subject_id,omitempty"`
	CourseID        *uuid.UUID `json:"course_id,omitempty"`
	Title           string     `json:"title"`
	QuestionCount   int        `json:"question_count"`
	PassingScore    int        `json:"passing_score"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	MaxAttempts     int        `json:"max_attempts"`
	CreatedAt       time.Time  `json:"created_at"`

	// ScopeCourseID is the course the exam belongs to, directly or through its subject.
	ScopeCourseID uuid.UUID `json:"-"`
}

// Mode returns the exam's question set mode.
func (e Exam) Mode() ExamMode {
	if e.SubjectID != nil {
		return ModeBank
	}
	return ModeFixed
}

// QuestionType is the kind of question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionOpenText       QuestionType = "open_text"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	return t == QuestionMultipleChoice || t == QuestionOpenText
}

// Question is a bank question (SubjectID set) or a fixed exam question (ExamID set).
type Question struct {
	ID          uuid.UUID    `json:"id"`
	SubjectID   *uuid.UUID   `json:"subject_id,omitempty"`
	ExamID      *uuid.UUID   `json:"exam_id,omitempty"`
	Text        string       `json:"question_text"`
	ImageURL    string       `json:"image_url,omitempty"`
	Type        QuestionType `json:"type"`
	OrderIndex  int          `json:"order_index"`
	AnswerParts [][]string   `json:"answer_parts,omitempty"` // open_text only: parts x accepted alternatives
	Options     []Option     `json:"options,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// OpenTextParts returns the number of labeled parts of an open-text question.
func (q Question) OpenTextParts() int {
	if q.Type != QuestionOpenText {
		return 0
	}
	return max(1, len(q.AnswerParts))
}

// CorrectOption returns the question's correct option, if any.
func (q Question) CorrectOption() (Option, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o, true
		}
	}
	return Option{}, false
}

// Option is one choice of a multiple-choice question.
type Option struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"option_text"`
	IsCorrect  bool      `json:"is_correct"`
	OrderIndex int       `json:"order_index"`
}

// Attempt is one instance of a user taking an exam.
type Attempt struct {
	ID         uuid.UUID  `json:"id"`
	ExamID     uuid.UUID  `json:"exam_id"`
	UserID     uuid.UUID  `json:"user_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Score      *float64   `json:"score,omitempty"`
	Passed     *bool      `json:"passed,omitempty"`
}

// Finished reports whether the attempt has been submitted.
func (a Attempt) Finished() bool {
	return a.FinishedAt != nil
}

// AttemptQuestion is one entry of the question set persisted for an attempt.
type AttemptQuestion struct {
	AttemptID   uuid.UUID   `json:"attempt_id"`
	QuestionID  uuid.UUID   `json:"question_id"`
	Position    int         `json:"position"`
	OptionOrder []uuid.UUID `json:"option_order,omitempty"`
}

// AttemptAnswer is a graded answer written at submission.
type AttemptAnswer struct {
	ID         uuid.UUID  `json:"id"`
	AttemptID  uuid.UUID  `json:"attempt_id"`
	QuestionID uuid.UUID  `json:"question_id"`
	OptionID   *uuid.UUID `json:"option_id,omitempty"`
	TextAnswer *string    `json:"text_answer,omitempty"` // JSON array when the question has several parts
	IsCorrect  bool       `json:"is_correct"`
}

// PresentedOption is what a student sees of an option.
type PresentedOption struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"option_text"`
}

// PresentedQuestion is a question as delivered to a student, without answers.
type PresentedQuestion struct {
	ID            uuid.UUID         `json:"id"`
	Type          QuestionType      `json:"type"`
	Text          string            `json:"question_text"`
	ImageURL      string            `json:"image_url,omitempty"`
	OpenTextParts int               `json:"open_text_parts,omitempty"`
	Options       []PresentedOption `json:"options,omitempty"`
}

// ExamSession is the response to starting or resuming an attempt.
type ExamSession struct {
	AttemptID       uuid.UUID           `json:"attempt_id"`
	Resumed         bool                `json:"resumed"`
	ExamID          uuid.UUID           `json:"exam_id"`
	Title           string              `json:"title"`
	PassingScore    int                 `json:"passing_score"`
	DurationMinutes *int                `json:"duration_minutes,omitempty"`
	StartedAt       time.Time           `json:"started_at"`
	Questions       []PresentedQuestion `json:"questions"`
}

// AnswerInput is one submitted answer.
type AnswerInput struct {
	QuestionID  uuid.UUID  `json:"question_id" validate:"required"`
	OptionID    *uuid.UUID `json:"option_id,omitempty"`
	TextAnswer  *string    `json:"text_answer,omitempty"`
	TextAnswers []string   `json:"text_answers,omitempty" validate:"max=26"`
}

// SubmitResult is the outcome of grading an attempt.
type SubmitResult struct {
	Score        float64 `json:"score"`
	Passed       bool    `json:"passed"`
	CorrectCount int     `json:"correct_count"`
	Total        int     `json:"total"`
}

// AttemptResult is a finished attempt as shown to its owner.
type AttemptResult struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	ExamID    uuid.UUID `json:"exam_id"`
	SubmitResult
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Answers    []AttemptAnswer `json:"answers"`
}

// AnswerDetail describes one graded question for review.
type AnswerDetail struct {
	QuestionID    uuid.UUID    `json:"question_id"`
	QuestionText  string       `json:"question_text"`
	Type          QuestionType `json:"type"`
	IsCorrect     bool         `json:"is_correct"`
	StudentAnswer string       `json:"student_answer"`
	CorrectAnswer string       `json:"correct_answer"`
}

// AttemptDetail is a finished attempt with per-question review data.
type AttemptDetail struct {
	Attempt   Attempt        `json:"attempt"`
	ExamTitle string         `json:"exam_title"`
	Answers   []AnswerDetail `json:"answers"`
}

// ExamInput is a new exam definition. Unset optional fields take their defaults.
type ExamInput struct {
	SubjectID       *uuid.UUID `json:"subject_id"`
	CourseID        *uuid.UUID `json:"course_id"`
	Title           string     `json:"title" validate:"required,max=200"`
	QuestionCount   int        `json:"question_count" validate:"min=1"`
	PassingScore    *int       `json:"passing_score" validate:"omitempty,min=0,max=100"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,min=1"`
	MaxAttempts     *int       `json:"max_attempts" validate:"omitempty,min=1"`
}

// ExamPatch changes the settings of an exam. Nil fields are left as they are.
type ExamPatch struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	QuestionCount   *int    `json:"question_count" validate:"omitempty,min=1"`
	PassingScore    *int    `json:"passing_score" validate:"omitempty,min=0,max=100"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=0"` // 0 clears the limit
	MaxAttempts     *int    `json:"max_attempts" validate:"omitempty,min=1"`
}

// QuestionInput is a question as written by an admin or read from an import file.
type QuestionInput struct {
	Text        string        `json:"text" validate:"required"`
	Type        QuestionType  `json:"type" validate:"required"`
	ImageURL    string        `json:"image_url" validate:"omitempty,max=2048"`
	Options     []OptionInput `json:"options" validate:"dive"`
	AnswerParts [][]string    `json:"answer_parts"`
	Answer      string        `json:"answer"` // legacy packed form: parts joined by "|||", alternatives by newlines
}

// OptionInput is one option of a new multiple-choice question.
type OptionInput struct {
	Text    string `json:"text" validate:"required"`
	Correct bool   `json:"correct"`
}
