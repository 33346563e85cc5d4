// Package exam runs the exam attempt lifecycle: starting and resuming
// attempts, building question sets, grading submissions and aggregating
// results.
package exam

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/model"
	"github.com/autoescuela/campus/internal/store"
)

// Store is the persistence the service needs.
type Store interface {
	GetExam(ctx context.Context, id uuid.UUID) (model.Exam, error)
	ListExams(ctx context.Context, courseID *uuid.UUID) ([]model.Exam, error)
	CreateExam(ctx context.Context, e model.Exam) (model.Exam, error)
	UpdateExam(ctx context.Context, e model.Exam) error
	GetSubject(ctx context.Context, id uuid.UUID) (model.Subject, error)
	GetCourse(ctx context.Context, id uuid.UUID) (model.Course, error)
	CountSubjects(ctx context.Context, courseID uuid.UUID) (int, error)
	GetCohort(ctx context.Context, id uuid.UUID) (model.Cohort, error)
	ListUsers(ctx context.Context, f model.UserFilter) ([]model.User, error)
	CohortActivity(ctx context.Context, cohortID uuid.UUID) (map[uuid.UUID]model.Activity, error)

	AddQuestion(ctx context.Context, q model.Question) (model.Question, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (model.Question, error)
	SetAnswerParts(ctx context.Context, id uuid.UUID, parts [][]string) error
	ListBankQuestions(ctx context.Context, subjectID uuid.UUID) ([]model.Question, error)
	ListExamQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error)

	CreateAttempt(ctx context.Context, a model.Attempt, set []model.AttemptQuestion) error
	GetAttempt(ctx context.Context, id uuid.UUID) (model.Attempt, error)
	OpenAttempt(ctx context.Context, examID, userID uuid.UUID) (*model.Attempt, error)
	CountFinishedAttempts(ctx context.Context, examID, userID uuid.UUID) (int, error)
	AttemptQuestions(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptQuestion, error)
	AttemptQuestionDefs(ctx context.Context, attemptID uuid.UUID) ([]model.Question, error)
	FinishAttempt(ctx context.Context, attemptID uuid.UUID, answers []model.AttemptAnswer, score float64, passed bool, at time.Time) error
	AttemptAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error)
	FinishedAttempts(ctx context.Context, f store.AttemptFilter) ([]model.AttemptRecord, error)
}

// Service implements exam operations on top of a Store.
type Service struct {
	store   Store
	shuffle func(n int, swap func(i, j int))
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithShuffle replaces the random permutation used for sampling and option order.
func WithShuffle(fn func(n int, swap func(i, j int))) Option {
	return func(s *Service) { s.shuffle = fn }
}

// WithClock replaces the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) { s.now = fn }
}

// NewService creates a Service.
func NewService(st Store, opts ...Option) *Service {
	s := &Service{
		store:   st,
		shuffle: rand.Shuffle,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
