package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/grading"
	"github.com/autoescuela/campus/internal/model"
)

// Option count bounds for multiple-choice questions.
const (
	MinOptions = 2
	MaxOptions = 6
)

// CreateExam validates and stores a new exam. The scope must name exactly one
// existing subject or course.
func (s *Service) CreateExam(ctx context.Context, in model.ExamInput) (model.Exam, error) {
	e := model.Exam{
		SubjectID:       in.SubjectID,
		CourseID:        in.CourseID,
		Title:           strings.TrimSpace(in.Title),
		QuestionCount:   in.QuestionCount,
		PassingScore:    model.DefaultPassingScore,
		DurationMinutes: in.DurationMinutes,
		MaxAttempts:     model.DefaultMaxAttempts,
	}
	if in.PassingScore != nil {
		e.PassingScore = *in.PassingScore
	}
	if in.MaxAttempts != nil {
		e.MaxAttempts = *in.MaxAttempts
	}

	switch {
	case e.SubjectID != nil && e.CourseID != nil:
		return e, model.Invalid("scope", "set either subject_id or course_id, not both")
	case e.SubjectID != nil:
		if _, err := s.store.GetSubject(ctx, *e.SubjectID); err != nil {
			return e, scopeErr(err, "subject_id")
		}
	case e.CourseID != nil:
		if _, err := s.store.GetCourse(ctx, *e.CourseID); err != nil {
			return e, scopeErr(err, "course_id")
		}
	default:
		return e, model.Invalid("scope", "subject_id or course_id is required")
	}
	if err := validateExam(e); err != nil {
		return e, err
	}

	created, err := s.store.CreateExam(ctx, e)
	if err != nil {
		return created, err
	}
	slog.Info("exam created", "exam", created.ID, "mode", created.Mode(), "title", created.Title)
	return created, nil
}

// UpdateExam applies a patch to an exam's settings.
func (s *Service) UpdateExam(ctx context.Context, id uuid.UUID, p model.ExamPatch) (model.Exam, error) {
	e, err := s.store.GetExam(ctx, id)
	if err != nil {
		return e, err
	}
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.QuestionCount != nil {
		e.QuestionCount = *p.QuestionCount
	}
	if p.PassingScore != nil {
		e.PassingScore = *p.PassingScore
	}
	if p.MaxAttempts != nil {
		e.MaxAttempts = *p.MaxAttempts
	}
	if p.DurationMinutes != nil {
		if *p.DurationMinutes == 0 {
			e.DurationMinutes = nil
		} else {
			d := *p.DurationMinutes
			e.DurationMinutes = &d
		}
	}
	if err := validateExam(e); err != nil {
		return e, err
	}
	if err := s.store.UpdateExam(ctx, e); err != nil {
		return e, err
	}
	return s.store.GetExam(ctx, id)
}

func validateExam(e model.Exam) error {
	switch {
	case e.Title == "":
		return model.Invalid("title", "must not be empty")
	case e.QuestionCount < 1:
		return model.Invalid("question_count", "must be at least 1")
	case e.PassingScore < 0 || e.PassingScore > 100:
		return model.Invalid("passing_score", "must be between 0 and 100")
	case e.MaxAttempts < 1:
		return model.Invalid("max_attempts", "must be at least 1")
	case e.DurationMinutes != nil && *e.DurationMinutes < 1:
		return model.Invalid("duration_minutes", "must be at least 1")
	}
	return nil
}

// scopeErr turns a missing scope target into a validation error.
func scopeErr(err error, field string) error {
	if isNotFound(err) {
		return model.Invalid(field, "does not exist")
	}
	return err
}

// ListQuestions returns the questions an exam draws from, with their answers.
func (s *Service) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	return s.pool(ctx, exam)
}

// AddQuestion adds a question to an exam. Bank exams receive it in their
// subject's bank, fixed exams in their own set.
func (s *Service) AddQuestion(ctx context.Context, examID uuid.UUID, in model.QuestionInput) (model.Question, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return model.Question{}, err
	}
	q, err := BuildQuestion(in)
	if err != nil {
		return q, err
	}
	if exam.Mode() == model.ModeBank {
		q.SubjectID = exam.SubjectID
	} else {
		q.ExamID = &exam.ID
	}
	return s.store.AddQuestion(ctx, q)
}

// AddBankQuestion adds a question to a subject's bank.
func (s *Service) AddBankQuestion(ctx context.Context, subjectID uuid.UUID, in model.QuestionInput) (model.Question, error) {
	if _, err := s.store.GetSubject(ctx, subjectID); err != nil {
		return model.Question{}, err
	}
	q, err := BuildQuestion(in)
	if err != nil {
		return q, err
	}
	q.SubjectID = &subjectID
	return s.store.AddQuestion(ctx, q)
}

// SetAnswerParts replaces the accepted alternatives of an open-text question.
func (s *Service) SetAnswerParts(ctx context.Context, questionID uuid.UUID, parts [][]string) (model.Question, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return q, err
	}
	if q.Type != model.QuestionOpenText {
		return q, model.Invalid("type", "only open_text questions have answer parts")
	}
	cleaned := grading.Clean(parts)
	if err := cleaned.Validate(); err != nil {
		return q, err
	}
	if err := s.store.SetAnswerParts(ctx, q.ID, cleaned); err != nil {
		return q, err
	}
	q.AnswerParts = cleaned
	return q, nil
}

// BuildQuestion validates a question input and turns it into a question
// without scope. Open-text answers may come as answer_parts or in the legacy
// packed form.
func BuildQuestion(in model.QuestionInput) (model.Question, error) {
	q := model.Question{
		Text:     strings.TrimSpace(in.Text),
		Type:     in.Type,
		ImageURL: strings.TrimSpace(in.ImageURL),
	}
	if q.Text == "" {
		return q, model.Invalid("text", "must not be empty")
	}
	if !q.Type.Valid() {
		return q, model.Invalid("type", "unknown question type %q", in.Type)
	}

	if q.Type == model.QuestionMultipleChoice {
		if n := len(in.Options); n < MinOptions || n > MaxOptions {
			return q, model.Invalid("options", "need %d to %d options, got %d", MinOptions, MaxOptions, n)
		}
		correct := 0
		for i, o := range in.Options {
			text := strings.TrimSpace(o.Text)
			if text == "" {
				return q, model.Invalid("options", "option %d has no text", i+1)
			}
			if o.Correct {
				correct++
			}
			q.Options = append(q.Options, model.Option{Text: text, IsCorrect: o.Correct})
		}
		if correct != 1 {
			return q, model.Invalid("options", "exactly one option must be correct, got %d", correct)
		}
		return q, nil
	}

	parts := grading.Clean(in.AnswerParts)
	if len(parts) == 0 && in.Answer != "" {
		parts = grading.ParseDelimited(in.Answer)
	}
	if err := parts.Validate(); err != nil {
		return q, err
	}
	q.AnswerParts = parts
	return q, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}

// ImportQuestions validates every record and then adds them to an exam, or to
// a subject bank when subjectID is set. Nothing is written if any record is
// invalid.
func (s *Service) ImportQuestions(ctx context.Context, examID, subjectID *uuid.UUID, records []model.QuestionInput) (int, error) {
	if (examID == nil) == (subjectID == nil) {
		return 0, model.Invalid("target", "set either an exam or a subject")
	}
	built := make([]model.Question, len(records))
	for i, in := range records {
		q, err := BuildQuestion(in)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i+1, err)
		}
		built[i] = q
	}

	target := subjectID
	if examID != nil {
		exam, err := s.store.GetExam(ctx, *examID)
		if err != nil {
			return 0, err
		}
		if exam.Mode() == model.ModeBank {
			target = exam.SubjectID
		}
	} else if _, err := s.store.GetSubject(ctx, *subjectID); err != nil {
		return 0, err
	}

	for i, q := range built {
		if target != nil {
			q.SubjectID = target
		} else {
			q.ExamID = examID
		}
		if _, err := s.store.AddQuestion(ctx, q); err != nil {
			return i, fmt.Errorf("record %d: %w", i+1, err)
		}
	}
	slog.Info("questions imported", "count", len(built), "exam", examID, "subject", target)
	return len(built), nil
}
