package exam

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/model"
)

// pool returns the questions an exam draws from: the subject bank in bank
// mode, the exam's own questions in fixed mode.
func (s *Service) pool(ctx context.Context, exam model.Exam) ([]model.Question, error) {
	if exam.Mode() == model.ModeBank {
		return s.store.ListBankQuestions(ctx, *exam.SubjectID)
	}
	return s.store.ListExamQuestions(ctx, exam.ID)
}

// buildSet picks the questions of a new attempt. Bank exams take a uniform
// random sample of min(question_count, pool) questions; fixed exams take
// their questions in authoring order.
func (s *Service) buildSet(ctx context.Context, exam model.Exam) ([]model.Question, error) {
	questions, err := s.pool(ctx, exam)
	if err != nil {
		return nil, fmt.Errorf("load question pool: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("exam %s: %w", exam.ID, model.ErrEmptyBank)
	}

	if exam.Mode() == model.ModeBank {
		questions = slices.Clone(questions)
		s.shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	count := min(exam.QuestionCount, len(questions))
	return questions[:count], nil
}

// optionOrder returns a shuffled presentation order for a multiple-choice question.
func (s *Service) optionOrder(q model.Question) []uuid.UUID {
	if q.Type != model.QuestionMultipleChoice || len(q.Options) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(q.Options))
	for i, o := range q.Options {
		ids[i] = o.ID
	}
	s.shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}
